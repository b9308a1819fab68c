package handler

import (
	"strconv"
	"time"

	"rewards-ledger/internal/adapter/http/dto"
	"rewards-ledger/internal/adapter/http/middleware"
	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"
	"rewards-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet and coin economy endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	coinSvc   ports.CoinService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, coinSvc ports.CoinService) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		coinSvc:   coinSvc,
	}
}

// GetWallet handles GET /api/v1/wallet. Matured coin locks are
// completed lazily on read so the returned snapshot is current.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	if _, err := h.coinSvc.UnlockMatured(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.walletSvc.ListEntries(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

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

	if pageSize < 1 {
		pageSize = 20
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	response.OK(c, dto.LedgerListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Convert handles POST /api/v1/wallet/convert.
func (h *WalletHandler) Convert(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.coinSvc.Convert(c.Request.Context(), userID, req.Coins)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		Balance:       w.Balance,
		Withdrawable:  w.Withdrawable,
		PendingAmount: w.PendingAmount,
		LockedAmount:  w.LockedAmount,
		Coins:         w.Coins,
		LockedCoins:   w.LockedCoins,
		TotalEarned:   w.TotalEarned,
	}
}

// callerID extracts the authenticated user id set by JWTAuth.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middleware.CtxUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
