// Package version reports the engine's own build version, surfaced through
// the debug_status MCP tool.
package version

// Version is the current version of the engine.
const Version = "0.1.0"
