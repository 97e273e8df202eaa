package sqlite

import (
	"context"
	"errors"
	"strconv"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// kindForCode maps primary SQLite result codes. SQLITE_ERROR is generic and
// left to message inspection.
func kindForCode(code int) domain.ErrorKind {
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return domain.KindDeadlock
	case sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_READONLY:
		return domain.KindPermissionDenied
	case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		return domain.KindConnectionError
	case sqlite3.SQLITE_INTERRUPT:
		return domain.KindTimeout
	}
	return domain.KindUnknown
}

// ClassifyError wraps a driver error in a *domain.DBError.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var dbErr *domain.DBError
	if errors.As(err, &dbErr) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewDBError(domain.KindTimeout, "", err)
	case errors.Is(err, context.Canceled):
		return domain.NewDBError(domain.KindCancelled, "", err)
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		kind := kindForCode(sqlErr.Code())
		if kind == domain.KindUnknown {
			kind = domain.ClassifyMessage(sqlErr.Error())
		}
		return &domain.DBError{Kind: kind, Code: strconv.Itoa(sqlErr.Code()), Message: sqlErr.Error(), Err: err}
	}

	return domain.NewDBError(domain.Classify(err), "", err)
}
