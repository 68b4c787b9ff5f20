package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"taskboard/internal/ordering"
)

// Common repository errors
var (
	// ErrTaskNotFound is returned when a task is not found for its owner
	ErrTaskNotFound = ordering.ErrNotFound

	// ErrEmailTaken is returned when registering an email that already exists
	ErrEmailTaken = errors.New("email already registered")
)

const (
	pgErrUniqueViolation      = "23505"
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	pgErrLockNotAvailable     = "55P03"
	pgErrQueryCanceled        = "57014"
	pgErrAdminShutdown        = "57P01"
	pgErrCannotConnectNow     = "57P03"
)

// translateError maps driver errors onto the ordering error kinds so the
// engine can tell retryable failures from terminal ones.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ordering.ErrNotFound, ordering.ErrConflict, ordering.ErrUnavailable,
		ordering.ErrInvalidPosition, ordering.ErrInvalidStatus,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ordering.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ordering.ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %v", ordering.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgErrUniqueViolation, pgErr.Code == pgErrSerializationFailure,
			pgErr.Code == pgErrDeadlockDetected, pgErr.Code == pgErrLockNotAvailable:
			return fmt.Errorf("%w: %v", ordering.ErrConflict, err)
		case pgErr.Code == pgErrQueryCanceled, pgErr.Code == pgErrAdminShutdown,
			pgErr.Code == pgErrCannotConnectNow, strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %v", ordering.ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if pgconn.Timeout(err) || errors.As(err, &connectErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ordering.ErrUnavailable, err)
	}

	// SQLite reports constraint and lock failures only through the message.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %v", ordering.ErrConflict, err)
	}
	return err
}
