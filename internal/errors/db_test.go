package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapDBError(t *testing.T) {
	assert.NoError(t, MapDBError(nil))

	plain := errors.New("plain")
	assert.Equal(t, plain, MapDBError(plain))

	assert.Equal(t, ErrCodeTimeout, GetCode(MapDBError(fmt.Errorf("q: %w", context.DeadlineExceeded))))
	assert.Equal(t, ErrCodeCanceled, GetCode(MapDBError(context.Canceled)))
	assert.True(t, IsNotFound(MapDBError(pgx.ErrNoRows)))
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: "users_email_key",
		Detail:         "Key (email)=(a@b.co) already exists.",
	}

	err := MapDBError(fmt.Errorf("insert user: %w", pgErr))

	assert.True(t, IsConflict(err))
	assert.Equal(t, "email", GetField(err))
	assert.ErrorIs(t, err, pgErr)
}

func TestMapDBError_ValidationAndOther(t *testing.T) {
	notNull := &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "name"}
	err := MapDBError(notNull)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "name", GetField(err))

	other := &pgconn.PgError{Code: pgerrcode.SyntaxError}
	assert.Equal(t, ErrCodeInternal, GetCode(MapDBError(other)))
}
