package status

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesSentinelByKind(t *testing.T) {
	err := Newf(KindInsufficientFunds, "balance %s is less than %s", "150000", "200000")

	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.False(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, New(KindInsufficientFunds, "other message")))
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("purchase: %w", New(KindConflict, "order already fulfilled"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestError_Unwrap(t *testing.T) {
	err := Wrap(KindInternal, "loading order", sql.ErrConnDone)

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Equal(t, "loading order: sql: connection is already closed", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"Plain error", errors.New("boom"), KindInternal},
		{"Validation", New(KindValidation, "quantity must be at least 1"), KindValidation},
		{"Wrapped not found", fmt.Errorf("x: %w", ErrNotFound), KindNotFound},
		{"Unauthorized", ErrUnauthorized, KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestMessage_HidesInternalDetails(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("pq: relation \"wallets\" does not exist")))
	assert.Equal(t, "internal error", Message(Wrap(KindInternal, "scanning wallet", sql.ErrNoRows)))
	assert.Equal(t, "ticket not found", Message(New(KindNotFound, "ticket not found")))
	assert.Equal(t, "conflict", Message(ErrConflict))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "insufficient_stock", KindInsufficientStock.String())
	assert.Equal(t, "internal", Kind(200).String())
}
