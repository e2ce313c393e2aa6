// Package mcp exposes the Corridors server to AI agents over the Model
// Context Protocol.
//
// The client is a thin proxy: every tool call becomes a REST request against
// the server's own API, so agent traffic is validated and broadcast exactly
// like human traffic. Tools cover game creation, moves, legal-move listing,
// board rendering, engine analysis and hints, and resignation, plus a rules
// reference.
//
// The MCP server can be driven over stdio or mounted on an HTTP endpoint;
// main.go wires both modes.
package mcp
