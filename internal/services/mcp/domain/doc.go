// Package domain maps MCP tool calls onto dice evaluation and the roleplay
// read model.
//
// Each tool is a pair: a constructor returning the *mcp.Tool definition and a
// handler factory returning an mcp.ToolHandlerFor over a narrow store
// interface. Input and output structs carry jsonschema tags so clients get a
// typed schema.
package domain
