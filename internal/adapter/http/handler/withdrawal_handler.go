package handler

import (
	"time"

	"rewards-ledger/internal/adapter/http/dto"
	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"
	"rewards-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawalHandler handles the user-facing withdrawal endpoint.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WithdrawalHandler) Withdraw(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.withdrawalSvc.Request(c.Request.Context(), userID, req.Amount, req.UpiID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWithdrawalResponse(w))
}

func toWithdrawalResponse(w *domain.Withdrawal) dto.WithdrawalResponse {
	resp := dto.WithdrawalResponse{
		ID:          w.ID.String(),
		Amount:      w.Amount,
		Status:      string(w.Status),
		UpiID:       w.UpiID,
		PayoutRef:   w.PayoutRef,
		TxID:        w.TxID,
		RequestedAt: w.RequestedAt.UTC().Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		s := w.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}
