package handler

import (
	"encoding/json"
	"io"

	"rewards-ledger/config"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"
	"rewards-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// payoutWebhookPayload is the provider-side webhook body. Providers
// sign the raw request body with HMAC-SHA256 over the shared secret.
type payoutWebhookPayload struct {
	EventID     string  `json:"event_id"`
	ReferenceID string  `json:"reference_id"`
	Status      string  `json:"status"`
	UTR         *string `json:"utr,omitempty"`
}

// WebhookHandler ingests payout provider callbacks.
type WebhookHandler struct {
	withdrawalSvc ports.WithdrawalService
	sigSvc        ports.SignatureService
	providers     map[string]config.ProviderConfig
	log           zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(
	withdrawalSvc ports.WithdrawalService,
	sigSvc ports.SignatureService,
	providers map[string]config.ProviderConfig,
	log zerolog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		withdrawalSvc: withdrawalSvc,
		sigSvc:        sigSvc,
		providers:     providers,
		log:           log,
	}
}

// HandlePayout handles POST /webhooks/payouts/:provider.
//
// The signature is verified against the raw body before parsing.
// Replayed or out-of-order events reconcile to a no-op and still
// return 200 so providers stop retrying.
func (h *WebhookHandler) HandlePayout(c *gin.Context) {
	providerName := c.Param("provider")
	provider, ok := h.providers[providerName]
	if !ok {
		response.Error(c, apperror.ErrUnknownProvider(providerName))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	signature := c.GetHeader(provider.SignatureHeader)
	if signature == "" || !h.sigSvc.Verify(provider.Secret, body, signature) {
		h.log.Warn().
			Str("provider", providerName).
			Msg("payout webhook signature rejected")
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	var payload payoutWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.Error(c, apperror.Validation("malformed webhook payload"))
		return
	}

	w, err := h.withdrawalSvc.Reconcile(c.Request.Context(), ports.PayoutEvent{
		Provider:    providerName,
		EventID:     payload.EventID,
		ReferenceID: payload.ReferenceID,
		Status:      payload.Status,
		UTR:         payload.UTR,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWithdrawalResponse(w))
}
