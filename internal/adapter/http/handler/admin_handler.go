package handler

import (
	"time"

	"rewards-ledger/internal/adapter/http/dto"
	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"
	"rewards-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles the admin review and correction endpoints.
type AdminHandler struct {
	taskSvc     ports.TaskRewardService
	referralSvc ports.ReferralService
	adminWallet ports.AdminWalletService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	taskSvc ports.TaskRewardService,
	referralSvc ports.ReferralService,
	adminWallet ports.AdminWalletService,
) *AdminHandler {
	return &AdminHandler{
		taskSvc:     taskSvc,
		referralSvc: referralSvc,
		adminWallet: adminWallet,
	}
}

// ReviewSubmission handles POST /api/v1/admin/submissions/:id/review.
func (h *AdminHandler) ReviewSubmission(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid submission id"))
		return
	}

	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var sub *domain.TaskSubmission
	switch req.Action {
	case "approve":
		sub, err = h.taskSvc.Approve(c.Request.Context(), submissionID)
	case "reject":
		sub, err = h.taskSvc.Reject(c.Request.Context(), submissionID, req.Reason)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toSubmissionResponse(sub))
}

// ReviewReferral handles POST /api/v1/admin/referrals/:id/review.
func (h *AdminHandler) ReviewReferral(c *gin.Context) {
	referralID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid referral id"))
		return
	}

	var req dto.ReferralReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	switch req.Action {
	case "verify":
		entries, err := h.referralSvc.Verify(c.Request.Context(), referralID, req.CommissionOverride)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{
			"referral_id":      referralID.String(),
			"levels_credited":  len(entries),
			"credited_entries": toEntryResponses(entries),
		})
	case "reject":
		if err := h.referralSvc.Reject(c.Request.Context(), referralID); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{
			"referral_id": referralID.String(),
			"status":      string(domain.ReferralRejected),
		})
	}
}

// AdjustWallet handles POST /api/v1/admin/wallets/adjust.
func (h *AdminHandler) AdjustWallet(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return
	}

	entry, err := h.adminWallet.Adjust(c.Request.Context(), adminID, userID, req.Amount, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toEntryResponses([]domain.LedgerEntry{*entry})[0])
}

func toSubmissionResponse(sub *domain.TaskSubmission) gin.H {
	resp := gin.H{
		"id":      sub.ID.String(),
		"task_id": sub.TaskID.String(),
		"user_id": sub.UserID.String(),
		"status":  string(sub.Status),
	}
	if sub.RejectReason != nil {
		resp["reject_reason"] = *sub.RejectReason
	}
	if sub.ReviewedAt != nil {
		resp["reviewed_at"] = sub.ReviewedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toEntryResponses(entries []domain.LedgerEntry) []dto.LedgerEntryResponse {
	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		items = append(items, dto.LedgerEntryResponse{
			ID:        e.ID.String(),
			Amount:    e.Amount,
			Kind:      string(e.Kind),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items
}
