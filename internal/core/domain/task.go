package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the review state of a task submission.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionReviewing SubmissionStatus = "REVIEWING"
	SubmissionApproved  SubmissionStatus = "APPROVED"
	SubmissionRejected  SubmissionStatus = "REJECTED"
)

// Task is a reward-bearing activity. RewardAmount is currency (paise),
// RewardCoins are granted locked and unlock after the configured
// cooldown. Either may be zero.
type Task struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	RewardAmount int64     `json:"reward_amount"`
	RewardCoins  int64     `json:"reward_coins"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskSubmission is a user's proof of task completion awaiting review.
type TaskSubmission struct {
	ID           uuid.UUID        `json:"id"`
	TaskID       uuid.UUID        `json:"task_id"`
	UserID       uuid.UUID        `json:"user_id"`
	Status       SubmissionStatus `json:"status"`
	RejectReason *string          `json:"reject_reason,omitempty"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
}

// Reviewable reports whether the submission can still be approved or
// rejected.
func (s *TaskSubmission) Reviewable() bool {
	return s.Status == SubmissionSubmitted || s.Status == SubmissionReviewing
}
