package round

import (
	"errors"

	"github.com/google/uuid"
	"github.com/roastarena/roastarena/go/internal/models"
)

var (
	// ErrRoundConflict means a non-terminal round already exists; at
	// most one may exist system-wide.
	ErrRoundConflict = errors.New("a non-terminal round already exists")
	// ErrRoundNotFound means no round matched the id.
	ErrRoundNotFound = errors.New("round not found")
	// ErrWrongPhase means the requested transition is not legal from
	// the round's current phase. A second CompleteRound on a finished
	// round surfaces as this and is treated as a no-op by callers.
	ErrWrongPhase = errors.New("round is not in the required phase")
	// ErrNotEnoughPlayers guards StartRound and CompleteRound.
	ErrNotEnoughPlayers = errors.New("not enough players")
)

// CreateRoundRequest carries the parameters for a new round.
type CreateRoundRequest struct {
	ID             uuid.UUID            `json:"id"`
	JudgeCharacter string               `json:"judge_character"`
	Settings       models.RoundSettings `json:"settings"`
}

// CreateResultRequest persists the outcome of a completed round.
type CreateResultRequest struct {
	RoundID            uuid.UUID `json:"round_id"`
	WinnerSubmissionID uuid.UUID `json:"winner_submission_id"`
	WinnerAddress      string    `json:"winner_address"`
	AIReasoning        string    `json:"ai_reasoning"`
	Fallback           bool      `json:"fallback"`
	PrizeAmount        float64   `json:"prize_amount"`
}
