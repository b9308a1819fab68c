package notify

import (
	"context"
	"fmt"

	"rewards-ledger/internal/core/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TelegramNotifier posts withdrawal outcomes to an ops Telegram chat.
// Delivery is best-effort: failures are logged and never surfaced to
// the settlement path.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegramNotifier connects to the Telegram Bot API. Returns an
// error if the token is rejected; callers should fall back to the
// log notifier in that case.
func NewTelegramNotifier(token string, chatID int64, log zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}

	log.Info().
		Str("bot", bot.Self.UserName).
		Int64("chat_id", chatID).
		Msg("Telegram notifier enabled")

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		log:    log,
	}, nil
}

func (n *TelegramNotifier) WithdrawalCompleted(_ context.Context, userID uuid.UUID, w *domain.Withdrawal) {
	utr := "-"
	if w.TxID != nil {
		utr = *w.TxID
	}
	n.send(fmt.Sprintf(
		"✅ Withdrawal completed\nUser: %s\nAmount: %s\nRef: %s\nUTR: %s",
		userID, formatPaise(w.Amount), w.PayoutRef, utr,
	))
}

func (n *TelegramNotifier) WithdrawalFailed(_ context.Context, userID uuid.UUID, w *domain.Withdrawal) {
	n.send(fmt.Sprintf(
		"❌ Withdrawal failed, hold refunded\nUser: %s\nAmount: %s\nRef: %s",
		userID, formatPaise(w.Amount), w.PayoutRef,
	))
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error().Err(err).Msg("Failed to send Telegram notification")
	}
}

// formatPaise renders a paise amount as rupees.
func formatPaise(amount int64) string {
	return fmt.Sprintf("₹%d.%02d", amount/100, amount%100)
}
