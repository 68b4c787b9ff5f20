package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"taskboard/internal/ordering"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, ordering.ErrNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, ordering.ErrConflict},
		{"unique violation", &pgconn.PgError{Code: pgErrUniqueViolation}, ordering.ErrConflict},
		{"serialization failure", &pgconn.PgError{Code: pgErrSerializationFailure}, ordering.ErrConflict},
		{"deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgErrDeadlockDetected}), ordering.ErrConflict},
		{"admin shutdown", &pgconn.PgError{Code: pgErrAdminShutdown}, ordering.ErrUnavailable},
		{"connection exception", &pgconn.PgError{Code: "08006"}, ordering.ErrUnavailable},
		{"deadline", context.DeadlineExceeded, ordering.ErrUnavailable},
		{"bad conn", driver.ErrBadConn, ordering.ErrUnavailable},
		{"sqlite unique", errors.New("UNIQUE constraint failed: tasks.owner_id, tasks.status, tasks.order_index"), ordering.ErrConflict},
		{"sqlite busy", errors.New("database is locked"), ordering.ErrConflict},
		{"already translated", fmt.Errorf("%w: index 9", ordering.ErrInvalidPosition), ordering.ErrInvalidPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.err), tt.want)
		})
	}
}

func TestTranslateError_PassThrough(t *testing.T) {
	assert.NoError(t, translateError(nil))

	check := &pgconn.PgError{Code: "23514"}
	err := translateError(check)
	assert.Same(t, check, err)
	assert.False(t, ordering.IsRetryable(err))

	plain := errors.New("syntax error")
	assert.Equal(t, plain, translateError(plain))
}
