package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission represents a single player's roast entry in a round.
// Submissions are immutable once created; (RoundID, PlayerAddress)
// is unique per round.
type Submission struct {
	ID            uuid.UUID `json:"id"`
	RoundID       uuid.UUID `json:"round_id"`
	PlayerAddress string    `json:"player_address"` // lowercased hex address
	RoastText     string    `json:"roast_text"`
	EntryFee      float64   `json:"entry_fee"`
	PaymentTxRef  string    `json:"payment_tx_ref,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
