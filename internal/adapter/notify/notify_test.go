package notify

import (
	"context"
	"testing"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFormatPaise(t *testing.T) {
	assert.Equal(t, "₹100.00", formatPaise(10000))
	assert.Equal(t, "₹0.01", formatPaise(1))
	assert.Equal(t, "₹123.45", formatPaise(12345))
}

func TestLogNotifier_DoesNotPanic(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	w := &domain.Withdrawal{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Amount:      25000,
		Status:      domain.WithdrawalCompleted,
		PayoutRef:   "WD-test",
		RequestedAt: time.Now(),
	}

	n.WithdrawalCompleted(context.Background(), w.UserID, w)
	n.WithdrawalFailed(context.Background(), w.UserID, w)
}
