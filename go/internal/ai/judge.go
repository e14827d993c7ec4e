package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roastarena/roastarena/go/internal/models"
)

// ErrJudgeTimeout is returned when the judge does not answer within
// the configured deadline.
var ErrJudgeTimeout = errors.New("judge timed out")

// RoundContext is the input handed to the judge collaborator.
type RoundContext struct {
	RoundID     uuid.UUID
	Judge       models.JudgeCharacter
	Submissions []models.Submission
}

// Verdict is the judge's answer. WinnerID must reference one of the
// round's submissions; callers treat any other id as a failure.
type Verdict struct {
	WinnerID  uuid.UUID
	Reasoning string
	Fallback  bool
}

// Judge picks the winning roast for a round. Implementations may take
// unbounded wall-clock time; callers wrap the call with JudgeWithTimeout.
type Judge interface {
	JudgeRound(ctx context.Context, rc RoundContext) (*Verdict, error)
}

// JudgeWithTimeout races the judge call against a hard deadline. The
// collaborator may ignore context cancellation, so the race is on our
// side: on expiry the in-flight call is abandoned and ErrJudgeTimeout
// returned.
func JudgeWithTimeout(ctx context.Context, judge Judge, rc RoundContext, timeout time.Duration) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		verdict *Verdict
		err     error
	}
	ch := make(chan outcome, 1)

	go func() {
		v, err := judge.JudgeRound(ctx, rc)
		ch <- outcome{verdict: v, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, fmt.Errorf("judge round: %w", out.err)
		}
		return out.verdict, nil
	case <-ctx.Done():
		return nil, ErrJudgeTimeout
	}
}
