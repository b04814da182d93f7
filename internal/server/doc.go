// Package server implements the MCP (Model Context Protocol) server for
// document layout analysis.
//
// This package provides a JSON-RPC 2.0 server that exposes the layout pipeline
// through the MCP protocol, so an MCP client can ask where the titles, text
// blocks, figures and tables of a page are and get a markdown outline back.
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
// Page Information:
//   - image_load: Load a page and get metadata
//   - image_dimensions: Get width and height
//   - image_evict: Drop one page, or all pages, from the cache
//
// Layout Model:
//   - layout_categories: Category table with display names and colors
//   - layout_letterbox: Letterbox gain and padding for a page size
//
// Layout Analysis:
//   - layout_analyze: Run the detector and post-processing on a page
//   - layout_decode: Post-process a detector output tensor produced elsewhere
//   - layout_render: Draw regions onto a page
//   - layout_crop_region: Cut one region out of a page
//   - layout_export: Write the markdown, an HTML preview and figure/table crops to a directory
//
// # Results
//
// layout_analyze and layout_decode return the pipeline result as JSON with a
// "status" of "ok" or "failed". A failed run (no model loaded, malformed
// tensor) is still a successful tool call; only bad arguments and I/O errors
// become JSON-RPC errors with code -32000.
//
// # Image Caching
//
// Pages loaded by path are cached and shared by all tools until image_evict
// drops them. The layout pipeline itself keeps nothing between calls.
//
// # Usage
//
//	pipeline, err := layout.NewPipeline(session, layout.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	srv := server.New(pipeline, server.WithLogger(logger))
//	return srv.Run(ctx)
package server
