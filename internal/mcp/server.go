// Package mcp exposes the debug engine's async API as an MCP tool surface
// over stdio. Each tool is a thin adaptor over one engine method (spec §6);
// the package owns no debugging state of its own.
package mcp

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tacitsys/dncdbg-mcp/internal/config"
	"github.com/tacitsys/dncdbg-mcp/internal/engine"
	"github.com/tacitsys/dncdbg-mcp/internal/version"
)

// Server wraps the MCP server around the process-wide debug engine.
type Server struct {
	mcpServer *server.MCPServer
	engine    *engine.Engine
	config    *config.Config

	// requestSeq backs per-tool-call request correlation ids surfaced in
	// error Details and log lines (see newRequestID).
	requestSeq uint64
}

// NewServer wires an MCP server around eng, registering the tool set
// CanUseControlTools() permits.
func NewServer(cfg *config.Config, eng *engine.Engine) *Server {
	mcpServer := server.NewMCPServer(
		"dncdbg-mcp",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		engine:    eng,
		config:    cfg,
	}

	s.registerTools()
	return s
}

// newRequestID mints a correlation id for one in-flight tool call, attached
// to error Details and log lines so multiple concurrent calls can be told
// apart in a log stream (the teacher keys its session map by UUID; this
// engine has no session map, so the id finds a home here instead — see
// DESIGN.md).
func (s *Server) newRequestID() string {
	seq := atomic.AddUint64(&s.requestSeq, 1)
	return uuid.NewSHA1(requestNamespace, []byte{byte(seq), byte(seq >> 8), byte(seq >> 16), byte(seq >> 24)}).String()
}

var requestNamespace = uuid.NameSpaceOID

// ServeStdio starts the server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close tears down any live debug session so the process can exit cleanly.
func (s *Server) Close() {
	s.engine.Disconnect(contextFromHandler())
}

// GetEngine returns the wrapped engine.
func (s *Server) GetEngine() *engine.Engine {
	return s.engine
}

// GetConfig returns the server configuration.
func (s *Server) GetConfig() *config.Config {
	return s.config
}
