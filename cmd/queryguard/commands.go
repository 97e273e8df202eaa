package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guillermoBallester/queryguard/internal/adapter/mcp"
	"github.com/guillermoBallester/queryguard/internal/config"
	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/service"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("statement rejected")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "queryguard",
		Short: "Read-only SQL guard for AI agents",
		Long: `queryguard sits between an agent that writes SQL and the database. It admits
only single read-only SELECT statements, runs them under a timeout, retries
transient failures with backoff and reports every failure with a stable kind.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newRunCmd(),
		newSchemaCmd(),
	)
	return root
}

// loadConfig reads env vars and the flags set on cmd. The returned logger
// writes to cmd's stderr.
func loadConfig(cmd *cobra.Command, offline bool) (*config.Config, *slog.Logger, error) {
	o, err := overridesFromFlags(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	load := config.Load
	if offline {
		load = config.LoadOffline
	}
	cfg, err := load(o)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, newLogger(cmd.ErrOrStderr(), cfg), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the guard's tools over MCP (stdio or http)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			logger.Info("starting queryguard",
				slog.String("version", version),
				slog.String("log_level", cfg.LogLevel.String()),
				slog.String("backend", string(cfg.Backend)),
				slog.String("transport", cfg.Transport),
				slog.Int("max_rows", cfg.MaxRows),
				slog.String("query_timeout", cfg.QueryTimeout.String()),
				slog.Bool("dry_run", cfg.DryRun),
			)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("shutdown", slog.String("error", err.Error()))
				}
			}()

			s := mcp.NewServer(version, a.guard, a.catalog, logger, a.tracer, a.inst)

			if cfg.Transport == "http" {
				return serveHTTP(ctx, cfg.HTTPAddr, cfg.HTTPBearerToken, s, logger)
			}

			logger.Info("serving MCP over stdio")
			if err := mcpserver.NewStdioServer(s).Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil &&
				!errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	registerServeFlags(cmd.Flags())
	return cmd
}

func newCheckCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "check [SQL...]",
		Short: "Validate SQL without running it",
		Long: `check validates each argument, or each line of stdin when no arguments are
given, and prints its verdict. It exits non-zero if any statement is rejected.
No database connection is made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}
			pol, err := loadPolicy(cfg, logger)
			if err != nil {
				return err
			}
			validator := newValidator(cfg, pol)

			statements := args
			if len(statements) == 0 {
				if statements, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			rejected := 0
			for _, sql := range statements {
				verdict := validator.Validate(sql)
				if !verdict.Allowed {
					rejected++
				}
				if !quiet {
					fmt.Fprintf(out, "%s\t%s\n", verdict, oneLine(sql))
				}
			}
			if rejected > 0 {
				return fmt.Errorf("%d of %d: %w", rejected, len(statements), errRejected)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing, only set the exit status")
	return cmd
}

func newRunCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "run SQL",
		Short: "Execute one statement through the guard and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			start := time.Now()
			res := a.guard.Execute(service.WithToolName(ctx, "run"), domain.QueryRequest{SQL: args[0]})
			if !res.OK() {
				_ = render(cmd.OutOrStdout(), formatJSON, res)
				return res.Failure.Err()
			}

			if err := render(cmd.OutOrStdout(), format, res); err != nil {
				return err
			}
			if format == formatTable {
				fmt.Fprintln(cmd.ErrOrStderr(), footer(res, time.Since(start)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or csv")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var samples int
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema and sample rows an agent would see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			text, err := a.catalog.PromptContext(ctx, samples)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 3, "sample rows per table, 0 for none")
	return cmd
}

// readLines returns the non-blank, non-comment lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading statements: %w", err)
	}
	return lines, nil
}

func oneLine(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
