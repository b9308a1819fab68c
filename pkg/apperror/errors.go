package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet (WAL) ----

func ErrInsufficientFunds(available, requested int64) *AppError {
	return New("WAL_001",
		fmt.Sprintf("Insufficient balance: available %d, requested %d", available, requested),
		http.StatusBadRequest)
}

func ErrBelowMinimumWithdrawal(minimum int64) *AppError {
	return New("WAL_002",
		fmt.Sprintf("Withdrawal amount below minimum of %d", minimum),
		http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("WAL_003", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Coin economy (COIN) ----

func ErrInsufficientCoins(available, requested int64) *AppError {
	return New("COIN_001",
		fmt.Sprintf("Insufficient coins: available %d, requested %d", available, requested),
		http.StatusBadRequest)
}

func ErrBelowMinimumConversion(minimum int64) *AppError {
	return New("COIN_002",
		fmt.Sprintf("Conversion batch below minimum of %d coins", minimum),
		http.StatusBadRequest)
}

// ---- Referrals (REF) ----

func ErrReferralRejected() *AppError {
	return New("REF_001", "Referral has been rejected and cannot be verified", http.StatusConflict)
}

func ErrReferralAlreadyVerified() *AppError {
	return New("REF_002", "Referral is already verified", http.StatusConflict)
}

// ---- Task submissions (TASK) ----

func ErrSubmissionNotReviewable(status string) *AppError {
	return New("TASK_001",
		fmt.Sprintf("Submission in state %s cannot be reviewed", status),
		http.StatusConflict)
}

// ---- Withdrawals (WDR) ----

func ErrWithdrawalTerminal(status string) *AppError {
	return New("WDR_001",
		fmt.Sprintf("Withdrawal already in terminal state %s", status),
		http.StatusConflict)
}

func ErrUnknownProvider(provider string) *AppError {
	return New("WDR_002", fmt.Sprintf("Unknown payout provider: %s", provider), http.StatusNotFound)
}

func ErrMalformedPayoutReference(err error) *AppError {
	return Wrap("WDR_003", "Malformed payout reference", http.StatusBadRequest, err)
}

// ---- Security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusUnauthorized)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAdminRequired() *AppError {
	return New("AUTH_004", "Admin privileges required", http.StatusForbidden)
}

func ErrInvalidReferralCode() *AppError {
	return New("AUTH_005", "Unknown referral code", http.StatusBadRequest)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error. Storage
// aborts surface here; nothing partial is committed, so callers may
// retry the whole operation.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a generic bad-request validation error.
func Validation(message string) *AppError {
	return New("WAL_003", message, http.StatusBadRequest)
}
