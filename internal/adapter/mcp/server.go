package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/queryguard/internal/core/port"
	"github.com/guillermoBallester/queryguard/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer exposing the guard's tools with logging,
// tracing and duration hooks.
func NewServer(
	version string,
	guard *service.Guard,
	catalog *service.CatalogService,
	logger *slog.Logger,
	tracer trace.Tracer,
	inst port.Instrumentation,
) *server.MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
		server.WithRecovery(),
	)

	RegisterTools(s, guard, catalog, logger)

	return s
}
