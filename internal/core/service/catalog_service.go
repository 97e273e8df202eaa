package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/port"
)

// CatalogService exposes schema and sample data to the agent that writes
// SQL. Sample rows go through the same masker as query results.
type CatalogService struct {
	catalog port.SchemaCatalog
	masker  *domain.Masker
	logger  *slog.Logger
}

func NewCatalogService(catalog port.SchemaCatalog, masker *domain.Masker, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogService{catalog: catalog, masker: masker, logger: logger}
}

func (s *CatalogService) ListTables(ctx context.Context) ([]domain.TableRef, error) {
	return s.catalog.ListTables(ctx)
}

func (s *CatalogService) DescribeTable(ctx context.Context, table domain.TableRef) (*domain.TableSchema, error) {
	return s.catalog.DescribeTable(ctx, table)
}

func (s *CatalogService) SampleRows(ctx context.Context, table domain.TableRef, limit int) (*domain.RowSet, error) {
	set, err := s.catalog.SampleRows(ctx, table, limit)
	if err != nil {
		return nil, err
	}
	s.masker.Apply(set.Rows)
	return set, nil
}

// PromptContext renders every table's columns followed by a few sample rows
// per table. A table whose samples cannot be read is noted and skipped.
func (s *CatalogService) PromptContext(ctx context.Context, sampleLimit int) (string, error) {
	tables, err := s.catalog.ListTables(ctx)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}

	schemas := make([]domain.TableSchema, 0, len(tables))
	for _, t := range tables {
		ts, err := s.catalog.DescribeTable(ctx, t)
		if err != nil {
			return "", fmt.Errorf("describing %s: %w", t, err)
		}
		schemas = append(schemas, *ts)
	}

	var b strings.Builder
	b.WriteString(domain.FormatSchema(schemas))
	if sampleLimit <= 0 {
		return b.String(), nil
	}

	for _, t := range tables {
		b.WriteString("\n")
		set, err := s.SampleRows(ctx, t, sampleLimit)
		if err != nil {
			s.logger.WarnContext(ctx, "sample rows unavailable",
				slog.String("table", t.String()),
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(&b, "Could not retrieve sample data from %s\n", t)
			continue
		}
		b.WriteString(domain.FormatSample(t, set))
	}
	return b.String(), nil
}
