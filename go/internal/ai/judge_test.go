package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastarena/roastarena/go/internal/models"
)

type stubJudge struct {
	verdict *Verdict
	err     error
	delay   time.Duration
}

func (s *stubJudge) JudgeRound(ctx context.Context, rc RoundContext) (*Verdict, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.verdict, s.err
}

func TestJudgeWithTimeoutReturnsVerdict(t *testing.T) {
	winner := uuid.New()
	judge := &stubJudge{verdict: &Verdict{WinnerID: winner, Reasoning: "sharpest burn"}}

	verdict, err := JudgeWithTimeout(context.Background(), judge, RoundContext{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, winner, verdict.WinnerID)
	assert.Equal(t, "sharpest burn", verdict.Reasoning)
	assert.False(t, verdict.Fallback)
}

func TestJudgeWithTimeoutExpires(t *testing.T) {
	judge := &stubJudge{
		verdict: &Verdict{WinnerID: uuid.New()},
		delay:   200 * time.Millisecond,
	}

	_, err := JudgeWithTimeout(context.Background(), judge, RoundContext{}, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrJudgeTimeout)
}

func TestJudgeWithTimeoutWrapsJudgeError(t *testing.T) {
	boom := errors.New("model unavailable")
	judge := &stubJudge{err: boom}

	_, err := JudgeWithTimeout(context.Background(), judge, RoundContext{}, time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestCharacterSetGet(t *testing.T) {
	cs := NewCharacterSet(DefaultCharacters)

	c, ok := cs.Get("savage_sam")
	require.True(t, ok)
	assert.Equal(t, "Savage Sam", c.DisplayName)

	_, ok = cs.Get("nobody")
	assert.False(t, ok)
}

func TestPickOrRandomHonorsPreference(t *testing.T) {
	cs := NewCharacterSet(DefaultCharacters)

	c := cs.PickOrRandom("wordplay_wanda")
	assert.Equal(t, "wordplay_wanda", c.ID)
}

func TestPickOrRandomFallsBackToSet(t *testing.T) {
	chars := []models.JudgeCharacter{{ID: "only_one", DisplayName: "Only One"}}
	cs := NewCharacterSet(chars)

	c := cs.PickOrRandom("nobody")
	assert.Equal(t, "only_one", c.ID)
}

func TestEmptyCharacterSetUsesDefaults(t *testing.T) {
	cs := NewCharacterSet(nil)
	assert.Len(t, cs.All(), len(DefaultCharacters))
}
