package models

import (
	"time"

	"github.com/google/uuid"
)

// Result records the outcome of a completed round. Exactly one result
// exists per completed round. PayoutTxHash stays empty until the prize
// payout succeeds; a failed payout leaves it empty for manual
// reconciliation.
type Result struct {
	RoundID            uuid.UUID `json:"round_id"`
	WinnerSubmissionID uuid.UUID `json:"winner_submission_id"`
	WinnerAddress      string    `json:"winner_address"`
	AIReasoning        string    `json:"ai_reasoning"`
	Fallback           bool      `json:"fallback"` // winner picked at random after a judge failure
	PrizeAmount        float64   `json:"prize_amount"`
	PayoutTxHash       string    `json:"payout_tx_hash,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
