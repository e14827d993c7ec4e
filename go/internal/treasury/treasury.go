package treasury

import (
	"context"

	"github.com/google/uuid"
)

// PaymentVerification is the outcome of an entry-fee check.
type PaymentVerification struct {
	Valid  bool
	Amount float64
	Reason string // set when Valid is false
}

// PayoutReceipt describes a sent prize payout.
type PayoutReceipt struct {
	TxHash string
	Amount float64
}

// Treasury verifies entry-fee payments and sends prize payouts. Both
// calls may fail or take arbitrary wall-clock time; callers do not
// retry automatically. The implementation applies the house-fee split
// to payouts internally.
type Treasury interface {
	VerifyEntryFeePayment(ctx context.Context, txRef, playerAddress string, roundID uuid.UUID) (*PaymentVerification, error)
	SendPrizePayout(ctx context.Context, winnerAddress string, roundID uuid.UUID, grossPrizePool float64) (*PayoutReceipt, error)
}
