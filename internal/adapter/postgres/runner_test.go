package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/guillermoBallester/queryguard/internal/adapter/postgres"
	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Select(t *testing.T) {
	pool := setupTestDB(t)
	runner := postgres.NewRunner(pool, 100)

	set, err := runner.Run(context.Background(), "SELECT owner, balance FROM accounts ORDER BY id", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "balance"}, set.Columns)
	require.Len(t, set.Rows, 2)
	assert.Equal(t, "alice", set.Rows[0]["owner"])
	assert.Zero(t, set.TotalRows)
}

func TestRunner_FetchLimit(t *testing.T) {
	pool := setupTestDB(t)
	runner := postgres.NewRunner(pool, 10)

	set, err := runner.Run(context.Background(), "SELECT id FROM transactions ORDER BY id;", 10*time.Second)
	require.NoError(t, err)
	assert.Len(t, set.Rows, 10)
	assert.Equal(t, 11, set.TotalRows, "one extra row signals more data")
}

func TestRunner_ReadOnly(t *testing.T) {
	pool := setupTestDB(t)
	runner := postgres.NewRunner(pool, 0)

	_, err := runner.Run(context.Background(), "UPDATE accounts SET balance = 0", 10*time.Second)
	require.Error(t, err)
	assert.Equal(t, domain.KindPermissionDenied, domain.Classify(err))
}

func TestRunner_StatementTimeout(t *testing.T) {
	pool := setupTestDB(t)
	runner := postgres.NewRunner(pool, 100)

	_, err := runner.Run(context.Background(), "SELECT pg_sleep(30)", time.Second)
	require.Error(t, err)
	assert.Equal(t, domain.KindTimeout, domain.Classify(err))
}

func TestRunner_Errors(t *testing.T) {
	pool := setupTestDB(t)
	runner := postgres.NewRunner(pool, 100)
	ctx := context.Background()

	_, err := runner.Run(ctx, "SELECT * FROM missing_table", 10*time.Second)
	assert.Equal(t, domain.KindObjectNotFound, domain.Classify(err))

	_, err = runner.Run(ctx, "SELECT nope FROM accounts", 10*time.Second)
	assert.Equal(t, domain.KindObjectNotFound, domain.Classify(err))

	_, err = runner.Run(ctx, "SELECT FROM WHERE", 10*time.Second)
	assert.Equal(t, domain.KindSyntaxError, domain.Classify(err))
}

func TestExplainOnlyRunner_ReturnsPlan(t *testing.T) {
	pool := setupTestDB(t)
	runner := postgres.NewExplainOnlyRunner(postgres.NewRunner(pool, 100))

	set, err := runner.Run(context.Background(), "SELECT * FROM accounts", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"QUERY PLAN"}, set.Columns)
	assert.NotEmpty(t, set.Rows)
}

func TestGuard_EndToEnd(t *testing.T) {
	pool := setupTestDB(t)
	guard := service.NewGuard(
		domain.NewChainValidator(
			domain.NewKeywordValidator(domain.DefaultDenyList()),
			domain.NewParserValidator(),
		),
		postgres.NewRunner(pool, 50),
		nil,
		service.WithMasker(domain.NewMasker(map[string]domain.MaskType{"account_number": domain.MaskPartial})),
	)
	ctx := context.Background()

	res := guard.Execute(ctx, domain.QueryRequest{SQL: "SELECT owner, account_number AS acct FROM accounts ORDER BY id", MaxRows: 10})
	require.True(t, res.OK(), "failure: %+v", res.Failure)
	assert.Equal(t, "******7890", res.Rows[0]["acct"])

	res = guard.Execute(ctx, domain.QueryRequest{SQL: "SELECT id FROM transactions", MaxRows: 10})
	require.True(t, res.OK())
	assert.Equal(t, 10, res.RowCount)
	assert.True(t, res.Truncated)
	assert.Equal(t, 25, res.TotalRows)

	res = guard.Execute(ctx, domain.QueryRequest{SQL: "DROP TABLE accounts"})
	require.False(t, res.OK())
	assert.Equal(t, domain.KindPolicyViolation, res.Failure.Kind)

	res = guard.Execute(ctx, domain.QueryRequest{SQL: "SELECT * FROM nope"})
	require.False(t, res.OK())
	assert.Equal(t, domain.KindObjectNotFound, res.Failure.Kind)
	assert.Equal(t, 1, res.Failure.Attempts)
}
