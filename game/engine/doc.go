// Package engine implements the Corridors search kernel: board rules for the
// 9x9 wall-placement game (pawn moves, jumps, wall legality including the
// path invariant) and a UCB1 Monte Carlo tree search over them.
//
// Kernel instances are deliberately single-threaded. All concurrent access
// goes through the search adapter in game/search, which serialises calls and
// adds cancellation and deadlines.
package engine
