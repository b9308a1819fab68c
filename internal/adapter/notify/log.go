package notify

import (
	"context"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogNotifier writes withdrawal outcomes to the structured log. It is
// the fallback when no Telegram token is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) WithdrawalCompleted(_ context.Context, userID uuid.UUID, w *domain.Withdrawal) {
	n.log.Info().
		Str("user_id", userID.String()).
		Str("withdrawal_id", w.ID.String()).
		Int64("amount", w.Amount).
		Str("payout_ref", w.PayoutRef).
		Msg("Withdrawal completed")
}

func (n *LogNotifier) WithdrawalFailed(_ context.Context, userID uuid.UUID, w *domain.Withdrawal) {
	n.log.Warn().
		Str("user_id", userID.String()).
		Str("withdrawal_id", w.ID.String()).
		Int64("amount", w.Amount).
		Str("payout_ref", w.PayoutRef).
		Msg("Withdrawal failed, hold refunded")
}
