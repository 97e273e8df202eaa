package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "queryguard"

const (
	defaultSampleLimit = 5
	maxSampleLimit     = 100
)

// Tool descriptions
const (
	descValidateSQL = "Check whether a SQL statement would be admitted without running it. " +
		"Returns {\"allowed\": bool, \"reason\": ..., \"keyword\": ...}. " +
		"Only single read-only SELECT statements are admitted."

	descQuery = "Execute a read-only SQL query and return the rows as JSON objects. " +
		"The statement is validated first and refused with kind \"policy_violation\" if it is not a single SELECT. " +
		"Transient failures (timeouts, dropped connections, deadlocks) are retried with backoff; " +
		"the response reports attempts_made and, on failure, a stable error kind. " +
		"Results are capped at max_rows and flagged truncated when more rows exist. " +
		"Select specific columns and add WHERE clauses rather than relying on the cap."

	descQuerySQL     = "SQL query to execute (SELECT statements only)"
	descQueryMaxRows = "Maximum rows to return (optional, server default applies when omitted)"
	descQueryTimeout = "Per-attempt timeout in seconds (optional, server default applies when omitted)"

	descListTables = "List every table and view the agent may query, as schema-qualified names. " +
		"Call this first to discover what exists."

	descDescribeTable = "Describe a table's columns with types, nullability and business descriptions. " +
		"Use this before writing SQL against a table."

	descTableName = "Table name, optionally schema-qualified (e.g. public.transactions)"

	descSampleRows = "Return a few rows from a table so you can see real value formats. " +
		"Sensitive columns are masked."

	descSampleLimit = "Number of rows to return (default 5, max 100)"
)

// RegisterTools adds the guard's tools to s. catalog may be nil, in which
// case only validate_sql and query are exposed.
func RegisterTools(s *server.MCPServer, guard *service.Guard, catalog *service.CatalogService, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("validate_sql",
			mcp.WithDescription(descValidateSQL),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQuerySQL),
			),
		),
		validateHandler(guard),
	)

	s.AddTool(
		mcp.NewTool("query",
			mcp.WithDescription(descQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQuerySQL),
			),
			mcp.WithNumber("max_rows",
				mcp.Description(descQueryMaxRows),
			),
			mcp.WithNumber("timeout_seconds",
				mcp.Description(descQueryTimeout),
			),
		),
		queryHandler(guard),
	)

	if catalog == nil {
		return
	}

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
		),
		listTablesHandler(catalog, logger),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descTableName),
			),
		),
		describeTableHandler(catalog, logger),
	)

	s.AddTool(
		mcp.NewTool("sample_rows",
			mcp.WithDescription(descSampleRows),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descTableName),
			),
			mcp.WithNumber("limit",
				mcp.Description(descSampleLimit),
			),
		),
		sampleRowsHandler(catalog, logger),
	)
}

func validateHandler(guard *service.Guard) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithToolName(ctx, "validate_sql")
		return jsonResult(guard.Validate(ctx, sql), false)
	}
}

func queryHandler(guard *service.Guard) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		sql, ok := args["sql"].(string)
		if !ok {
			return mcp.NewToolResultError("sql is required"), nil
		}

		maxRows, _ := args["max_rows"].(float64)
		timeout, _ := args["timeout_seconds"].(float64)
		if maxRows < 0 || timeout < 0 {
			return mcp.NewToolResultError("max_rows and timeout_seconds must not be negative"), nil
		}

		ctx = service.WithToolName(ctx, "query")
		res := guard.Execute(ctx, domain.NewQueryRequest(sql, int(maxRows), timeout))

		// Failures keep the structured body so the agent can branch on kind.
		return jsonResult(res, !res.OK())
	}
}

func listTablesHandler(catalog *service.CatalogService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := catalog.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "list tables")), nil
		}
		names := make([]string, 0, len(tables))
		for _, t := range tables {
			names = append(names, t.String())
		}
		return jsonResult(names, false)
	}
}

func describeTableHandler(catalog *service.CatalogService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		schema, err := catalog.DescribeTable(ctx, domain.ParseTableRef(tableName))
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "describe table")), nil
		}
		return jsonResult(schema, false)
	}
}

func sampleRowsHandler(catalog *service.CatalogService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		tableName, ok := args["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		limit := defaultSampleLimit
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = min(int(v), maxSampleLimit)
		}

		set, err := catalog.SampleRows(ctx, domain.ParseTableRef(tableName), limit)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "sample rows")), nil
		}
		return jsonResult(sampleResult{
			Table:   domain.ParseTableRef(tableName).String(),
			Columns: set.Columns,
			Rows:    set.Rows,
		}, false)
	}
}

type sampleResult struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	result := mcp.NewToolResultText(string(data))
	result.IsError = isError
	return result, nil
}

// sanitizeError turns a catalog error into a message safe to show the agent.
// Missing tables and timeouts are reported as such; everything else is
// logged and replaced with a generic message.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	if errors.Is(err, domain.ErrNotFound) {
		return err.Error()
	}
	switch domain.Classify(err) {
	case domain.KindTimeout:
		return op + " timed out"
	case domain.KindCancelled:
		return op + " cancelled"
	}
	logger.Error("tool failed",
		slog.String("operation", op),
		slog.String("error.message", err.Error()),
	)
	return fmt.Sprintf("%s: internal error, check server logs", op)
}
