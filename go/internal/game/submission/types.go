package submission

import (
	"github.com/google/uuid"
)

// Join failure codes. These are state-conflict or validation
// rejections: no state changes, no retry.
const (
	CodeRoundNotFound    = "ROUND_NOT_FOUND"
	CodeRoundNotJoinable = "ROUND_NOT_JOINABLE"
	CodeSubmissionsLocked = "SUBMISSIONS_LOCKED"
	CodeRoundFull        = "ROUND_FULL"
	CodeAlreadySubmitted = "ALREADY_SUBMITTED"
	CodePaymentRequired  = "PAYMENT_REQUIRED"
	CodePaymentInvalid   = "PAYMENT_INVALID"
	CodeInvalidInput     = "INVALID_INPUT"
)

// JoinError is a typed join rejection.
type JoinError struct {
	Code    string
	Message string
}

func (e *JoinError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrRoundNotFound     = &JoinError{Code: CodeRoundNotFound, Message: "no current round"}
	ErrRoundNotJoinable  = &JoinError{Code: CodeRoundNotJoinable, Message: "round is no longer accepting players"}
	ErrSubmissionsLocked = &JoinError{Code: CodeSubmissionsLocked, Message: "submissions are locked for this round"}
	ErrRoundFull         = &JoinError{Code: CodeRoundFull, Message: "round is full"}
	ErrAlreadySubmitted  = &JoinError{Code: CodeAlreadySubmitted, Message: "player already submitted this round"}
	ErrPaymentRequired   = &JoinError{Code: CodePaymentRequired, Message: "entry fee payment reference required"}
)

// JoinRequest carries a player's entry.
type JoinRequest struct {
	PlayerAddress string `json:"player_address"`
	RoastText     string `json:"roast_text"`
	PaymentTxRef  string `json:"payment_tx_ref,omitempty"`
}

// CreateSubmissionRequest persists one entry and credits the prize
// pool in a single transaction.
type CreateSubmissionRequest struct {
	ID            uuid.UUID
	RoundID       uuid.UUID
	PlayerAddress string
	RoastText     string
	EntryFee      float64
	PaymentTxRef  string
}
