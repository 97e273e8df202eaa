package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/guillermoBallester/queryguard/internal/adapter/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testSchema is a small slice of a personal-finance dataset.
const testSchema = `
	CREATE TABLE accounts (
		id             SERIAL PRIMARY KEY,
		owner          TEXT NOT NULL,
		account_number TEXT NOT NULL,
		balance        NUMERIC(12,2) NOT NULL DEFAULT 0
	);

	CREATE TABLE transactions (
		id         SERIAL PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		amount     NUMERIC(12,2) NOT NULL,
		category   TEXT,
		booked_at  DATE NOT NULL
	);

	COMMENT ON TABLE accounts IS 'Bank accounts';
	COMMENT ON COLUMN accounts.balance IS 'Current balance in EUR';

	CREATE SCHEMA reporting;
	CREATE VIEW reporting.monthly_spend AS
		SELECT date_trunc('month', booked_at) AS month, sum(amount) AS total
		FROM transactions GROUP BY 1;

	INSERT INTO accounts (owner, account_number, balance) VALUES
		('alice', '1234567890', 1500.00),
		('bob',   '9876543210', 42.50);

	INSERT INTO transactions (account_id, amount, category, booked_at)
	SELECT (i % 2) + 1, (i * 3.5)::numeric(12,2),
		CASE WHEN i % 3 = 0 THEN NULL ELSE 'groceries' END,
		DATE '2024-01-01' + i
	FROM generate_series(1, 25) AS i;
`

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: connStr, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return pool
}
