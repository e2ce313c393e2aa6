// Package session provides the in-memory session registry and the reaper
// that retires idle games.
//
// Registry is a thread-safe map of game ID to live session; removing a
// session closes its search adapter exactly once. Reaper sweeps the registry
// on a fixed interval and cancels then removes sessions whose last activity
// is older than the configured threshold, invoking a callback so the
// transport layer can announce the closure.
package session
