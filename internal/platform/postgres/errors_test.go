package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/atelierhq/atelier-api/internal/store"
)

func pgError(code, constraint, column string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, ConstraintName: constraint, ColumnName: column}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: nil,
		},
		{
			name:     "no rows maps to not found",
			err:      sql.ErrNoRows,
			expected: store.ErrNotFound,
		},
		{
			name:     "wrapped no rows maps to not found",
			err:      fmt.Errorf("query batch: %w", sql.ErrNoRows),
			expected: store.ErrNotFound,
		},
		{
			name:     "unique violation maps to duplicate",
			err:      pgError(uniqueViolationCode, "batches_pkey", ""),
			expected: store.ErrDuplicate,
		},
		{
			name:     "foreign key violation maps to invalid entity",
			err:      pgError(foreignKeyViolationCode, "batch_tasks_batch_id_fkey", ""),
			expected: store.ErrInvalidEntity,
		},
		{
			name:     "check violation maps to invalid entity",
			err:      pgError(checkViolationCode, "batch_tasks_status_check", ""),
			expected: store.ErrInvalidEntity,
		},
		{
			name:     "not null violation maps to invalid entity",
			err:      pgError(notNullViolationCode, "", "prompt"),
			expected: store.ErrInvalidEntity,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mapped := MapError(tc.err)
			if tc.expected == nil {
				assert.NoError(t, mapped)
				return
			}
			assert.ErrorIs(t, mapped, tc.expected)
		})
	}
}

func TestMapError_PassesThroughUnknownErrors(t *testing.T) {
	t.Parallel()

	unknown := errors.New("network unreachable")
	assert.Equal(t, unknown, MapError(unknown))

	// Unrecognized postgres codes pass through untouched too.
	serialization := pgError("40001", "", "")
	assert.Equal(t, error(serialization), MapError(serialization))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(pgError(uniqueViolationCode, "batches_pkey", "")))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgError(uniqueViolationCode, "", ""))))
	assert.False(t, IsUniqueViolation(pgError(foreignKeyViolationCode, "", "")))
	assert.False(t, IsUniqueViolation(errors.New("some error")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsForeignKeyViolation(pgError(foreignKeyViolationCode, "", "")))
	assert.False(t, IsForeignKeyViolation(pgError(uniqueViolationCode, "", "")))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFoundError(sql.ErrNoRows))
	assert.True(t, IsNotFoundError(store.ErrBatchNotFound))
	assert.True(t, IsNotFoundError(MapError(sql.ErrNoRows)))
	assert.False(t, IsNotFoundError(store.ErrDuplicate))
	assert.False(t, IsNotFoundError(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	t.Run("rows affected", func(t *testing.T) {
		t.Parallel()
		err := CheckRowsAffected(sqlmock.NewResult(0, 1), store.ErrBatchNotFound)
		assert.NoError(t, err)
	})

	t.Run("no rows affected returns the not found error", func(t *testing.T) {
		t.Parallel()
		err := CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrBatchNotFound)
		assert.ErrorIs(t, err, store.ErrBatchNotFound)
	})

	t.Run("result error is surfaced", func(t *testing.T) {
		t.Parallel()
		resultErr := errors.New("driver does not support RowsAffected")
		err := CheckRowsAffected(sqlmock.NewErrorResult(resultErr), store.ErrBatchNotFound)
		assert.ErrorIs(t, err, resultErr)
	})
}
