// Package mcp exposes a formlink session as Model Context Protocol tools.
//
// The server registers form_write, form_read, form_eval and form_status on
// an official MCP SDK server. Tools can be served over any MCP transport or
// invoked directly with CallTool. Calls are serialised because a session
// runs one operation at a time.
package mcp
