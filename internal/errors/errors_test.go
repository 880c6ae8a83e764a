package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	plain := Validation("bad payload")
	assert.Equal(t, "bad payload", plain.Error())

	cause := stderrors.New("boom")
	wrapped := Storage("write failed", cause)
	assert.Equal(t, "write failed: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeValidation, CodeOf(Validation("v")))
	assert.Equal(t, ErrCodeTransient, CodeOf(Transient("t")))
	assert.Equal(t, ErrCodeConflict, CodeOf(Conflict("c")))

	// Non-AppError falls back to internal.
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))

	// AppError found through a wrap chain.
	wrapped := fmt.Errorf("outer: %w", NotFound("gone"))
	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Validationf("field %s missing", "x")))
	assert.True(t, IsValidation(ValidationWrap("shape", stderrors.New("inner"))))
	assert.False(t, IsValidation(Transient("retry me")))
	assert.False(t, IsValidation(stderrors.New("plain")))
	assert.False(t, IsValidation(nil))
}

func TestMapDBError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, MapDBError(nil))
	})

	t.Run("no rows becomes not found", func(t *testing.T) {
		err := MapDBError(fmt.Errorf("scan: %w", pgx.ErrNoRows))
		assert.Equal(t, ErrCodeNotFound, CodeOf(err))
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		err := MapDBError(fmt.Errorf("exec: %w", context.DeadlineExceeded))
		assert.Equal(t, ErrCodeTimeout, CodeOf(err))
	})

	t.Run("cancellation becomes canceled", func(t *testing.T) {
		err := MapDBError(fmt.Errorf("exec: %w", context.Canceled))
		assert.Equal(t, ErrCodeCanceled, CodeOf(err))
	})

	t.Run("unique violation becomes conflict with field", func(t *testing.T) {
		pgErr := &pgconn.PgError{
			Code:   pgerrcode.UniqueViolation,
			Detail: "Key (external_key)=(WO-1-1-P) already exists.",
		}
		err := MapDBError(pgErr)
		assert.Equal(t, ErrCodeConflict, CodeOf(err))

		var appErr *AppError
		require.True(t, stderrors.As(err, &appErr))
		assert.Equal(t, "external_key", appErr.Field)
	})

	t.Run("check violation becomes validation", func(t *testing.T) {
		err := MapDBError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ColumnName: "status"})
		assert.Equal(t, ErrCodeValidation, CodeOf(err))
	})

	t.Run("other pg error becomes storage", func(t *testing.T) {
		err := MapDBError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
		assert.Equal(t, ErrCodeStorage, CodeOf(err))
	})

	t.Run("unrecognized error returned unchanged", func(t *testing.T) {
		original := stderrors.New("something else")
		assert.Same(t, original, MapDBError(original))
	})
}
