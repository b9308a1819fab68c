package dto

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username     string  `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password     string  `json:"password" binding:"required,min=8,max=128"`
	ReferralCode *string `json:"referral_code,omitempty"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// WithdrawRequest is the request body for a withdrawal request.
type WithdrawRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	UpiID  string `json:"upi_id" binding:"required,upi_id"`
}

// ConvertRequest is the request body for a coin conversion.
type ConvertRequest struct {
	Coins int64 `json:"coins" binding:"required,gt=0"`
}

// ReviewRequest is the request body for an admin submission review.
type ReviewRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Reason string `json:"reason,omitempty" binding:"max=500"`
}

// ReferralReviewRequest is the request body for an admin referral review.
type ReferralReviewRequest struct {
	Action             string `json:"action" binding:"required,oneof=verify reject"`
	CommissionOverride *int64 `json:"commission_override,omitempty"`
}

// AdjustRequest is the request body for a manual balance correction.
type AdjustRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

// WalletResponse is the response for a wallet query.
type WalletResponse struct {
	Balance       int64 `json:"balance"`
	Withdrawable  int64 `json:"withdrawable"`
	PendingAmount int64 `json:"pending_amount"`
	LockedAmount  int64 `json:"locked_amount"`
	Coins         int64 `json:"coins"`
	LockedCoins   int64 `json:"locked_coins"`
	TotalEarned   int64 `json:"total_earned"`
}

// LedgerEntryResponse is one ledger entry in a transaction history.
type LedgerEntryResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
}

// LedgerListResponse wraps a paginated transaction history.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// WithdrawalResponse is the response for withdrawal operations.
type WithdrawalResponse struct {
	ID          string  `json:"id"`
	Amount      int64   `json:"amount"`
	Status      string  `json:"status"`
	UpiID       string  `json:"upi_id"`
	PayoutRef   string  `json:"payout_ref"`
	TxID        *string `json:"tx_id,omitempty"`
	RequestedAt string  `json:"requested_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}
