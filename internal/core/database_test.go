// AngelaMos | 2026
// database_test.go

package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("debit xp: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, IsUniqueViolation(wrap("23505")))
	assert.True(t, IsForeignKeyViolation(wrap("23503")))
	assert.True(t, IsCheckViolation(wrap("23514")))
	assert.True(t, IsRetryableTx(wrap("40001")))
	assert.True(t, IsRetryableTx(wrap("40P01")))

	assert.False(t, IsRetryableTx(wrap("23505")))
	assert.False(t, IsRetryableTx(errors.New("plain")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestViolatedConstraint(t *testing.T) {
	err := fmt.Errorf("grant: %w", &pgconn.PgError{
		Code:           "23503",
		ConstraintName: "entitlements_granted_by_user_id_fkey",
	})

	assert.Equal(t, "entitlements_granted_by_user_id_fkey", ViolatedConstraint(err))
	assert.Empty(t, ViolatedConstraint(errors.New("plain")))
	assert.Empty(t, ViolatedConstraint(nil))
}

func TestWithJitterStaysWithinSeventh(t *testing.T) {
	base := time.Hour
	for range 50 {
		got := withJitter(base)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/7)
	}
	assert.Zero(t, withJitter(0))
}
