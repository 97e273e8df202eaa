package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type inflightCall struct {
	tool  string
	start time.Time
	span  trace.Span
}

// toolCalls tracks tool calls between the before and after hooks, keyed by
// JSON-RPC id.
type toolCalls struct {
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation
	now    func() time.Time

	mu    sync.Mutex
	calls map[any]*inflightCall
}

// ToolCallHooks creates MCP hooks that log every tool call, wrap it in a
// span and record its duration. tracer and inst may be nil.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	tc := &toolCalls{
		logger: logger,
		tracer: tracer,
		inst:   inst,
		now:    time.Now,
		calls:  make(map[any]*inflightCall),
	}

	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(tc.before)
	hooks.AddAfterCallTool(tc.after)
	hooks.AddOnError(tc.onError)
	return hooks
}

func (tc *toolCalls) before(ctx context.Context, id any, req *mcp.CallToolRequest) {
	call := &inflightCall{tool: req.Params.Name, start: tc.now()}
	if tc.tracer != nil {
		_, call.span = tc.tracer.Start(ctx, "mcp.tool.call",
			trace.WithAttributes(attribute.String("mcp.tool", call.tool)),
		)
	}

	tc.mu.Lock()
	tc.calls[id] = call
	tc.mu.Unlock()
}

func (tc *toolCalls) take(id any) *inflightCall {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	call, ok := tc.calls[id]
	if !ok {
		return nil
	}
	delete(tc.calls, id)
	return call
}

func (tc *toolCalls) after(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
	isErr := false
	if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
		isErr = true
	}
	tc.finish(ctx, tc.take(id), req.Params.Name, isErr, "")
}

func (tc *toolCalls) onError(ctx context.Context, id any, _ mcp.MCPMethod, message any, err error) {
	call := tc.take(id)
	tool := ""
	if req, ok := message.(*mcp.CallToolRequest); ok {
		tool = req.Params.Name
	} else if call != nil {
		tool = call.tool
	}
	if tool == "" {
		return
	}
	tc.finish(ctx, call, tool, true, err.Error())
}

func (tc *toolCalls) finish(ctx context.Context, call *inflightCall, tool string, isErr bool, errMsg string) {
	var duration time.Duration
	if call != nil {
		duration = tc.now().Sub(call.start)
	}

	level := slog.LevelInfo
	if isErr {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("rpc.method", "tools/call"),
		slog.String("mcp.tool", tool),
		slog.Duration("duration", duration),
		slog.Bool("error", isErr),
	}
	if errMsg != "" {
		attrs = append(attrs, slog.String("error.message", errMsg))
	}
	tc.logger.LogAttrs(ctx, level, "tool call", attrs...)

	if call == nil {
		return
	}
	tc.inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))

	if call.span != nil {
		if isErr {
			msg := errMsg
			if msg == "" {
				msg = "tool returned error"
			}
			call.span.SetStatus(codes.Error, msg)
		}
		call.span.End()
	}
}
