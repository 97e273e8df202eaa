package postgres

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// sqlstateKinds maps exact SQLSTATE codes. Whole classes are handled in
// kindForCode.
var sqlstateKinds = map[string]domain.ErrorKind{
	"40P01": domain.KindDeadlock, // deadlock_detected
	"40001": domain.KindDeadlock, // serialization_failure
	"55P03": domain.KindDeadlock, // lock_not_available
	"57014": domain.KindTimeout,  // query_canceled (statement_timeout)
	"42601": domain.KindSyntaxError,
	"42000": domain.KindSyntaxError,
	"42501": domain.KindPermissionDenied,
	"25006": domain.KindPermissionDenied, // read_only_sql_transaction
	"42P01": domain.KindObjectNotFound,   // undefined_table
	"42703": domain.KindObjectNotFound,   // undefined_column
	"42883": domain.KindObjectNotFound,   // undefined_function
	"3F000": domain.KindObjectNotFound,   // invalid_schema_name
	"53300": domain.KindConnectionError,  // too_many_connections
	"57P01": domain.KindConnectionError,  // admin_shutdown
	"57P02": domain.KindConnectionError,  // crash_shutdown
	"57P03": domain.KindConnectionError,  // cannot_connect_now
}

func kindForCode(code string) domain.ErrorKind {
	if k, ok := sqlstateKinds[code]; ok {
		return k
	}
	if strings.HasPrefix(code, "08") {
		return domain.KindConnectionError
	}
	return domain.KindUnknown
}

// ClassifyError wraps a pgx error in a *domain.DBError. Server errors are
// classified by SQLSTATE; client-side failures by their Go type; anything
// else by message.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var dbErr *domain.DBError
	if errors.As(err, &dbErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := kindForCode(pgErr.Code)
		if kind == domain.KindUnknown {
			kind = domain.ClassifyMessage(pgErr.Message)
		}
		return &domain.DBError{Kind: kind, Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}

	switch {
	case pgconn.Timeout(err), errors.Is(err, context.DeadlineExceeded):
		return domain.NewDBError(domain.KindTimeout, "", err)
	case errors.Is(err, context.Canceled):
		return domain.NewDBError(domain.KindCancelled, "", err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return domain.NewDBError(domain.KindConnectionError, "", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.NewDBError(domain.KindTimeout, "", err)
		}
		return domain.NewDBError(domain.KindConnectionError, "", err)
	}

	return domain.NewDBError(domain.Classify(err), "", err)
}
