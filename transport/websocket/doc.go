// Package websocket provides the real-time fan-out for the Corridors server.
//
// A central Hub tracks connections and their game-room subscriptions. Every
// message is a JSON Envelope carrying a type, an optional game id and
// correlation id, a timestamp, and a payload.
//
// Connection lifecycle:
//
//  1. Client connects to /ws (optionally with ?game_id= to subscribe at once)
//  2. The hub sends a hello with the connection id
//  3. The client subscribes and unsubscribes to game rooms by message
//  4. Room events fan out to every subscriber; per-connection ordering is
//     guaranteed by each client's buffered send channel
//  5. Heartbeat pings detect dead peers; a connection silent for a
//     configurable number of intervals, or whose send buffer fills during a
//     broadcast, is pruned. Any inbound frame counts as liveness
//
// Broadcasts settle synchronously: the sender knows every delivery was
// either queued or the target was pruned before the call returns.
package websocket
