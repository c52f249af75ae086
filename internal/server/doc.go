// Package server implements the MCP (Model Context Protocol) server for the
// card scanner.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - card_detect: Normalized, upright card as base64 PNG plus its corners
//   - card_regions: Pixel boxes of every card region, optionally an overlay
//   - card_crop_region: One region as base64 PNG
//   - card_scan: Full scan with text recognition and database lookup
//   - card_lookup: Scryfall lookup by set and number, name, or query
//
// # Image Caching
//
// The 16 most recently used photographs are cached by path, so asking for the
// regions of a card right after detecting it does not decode the file again.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(wf, server.WithLookup(client))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
