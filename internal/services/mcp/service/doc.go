// Package service runs the MCP server over stdio or streamable HTTP.
//
// Tool meaning lives in the domain package; this package only registers the
// tools and owns the transport lifecycle.
package service
