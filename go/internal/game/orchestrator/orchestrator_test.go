package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastarena/roastarena/go/internal/ai"
	"github.com/roastarena/roastarena/go/internal/game/events"
	"github.com/roastarena/roastarena/go/internal/game/round"
	"github.com/roastarena/roastarena/go/internal/game/submission"
	"github.com/roastarena/roastarena/go/internal/game/timer"
	"github.com/roastarena/roastarena/go/internal/models"
	"github.com/roastarena/roastarena/go/internal/treasury"
)

type fixture struct {
	clock *clockwork.FakeClock
	store *memStore
	subs  *submission.Manager
	orch  *Orchestrator
}

func testSettings() models.RoundSettings {
	return models.RoundSettings{
		EntryFee:         0.025,
		MaxPlayers:       3,
		MinPlayers:       2,
		TimerDurationSec: 15,
		JudgingDelaySec:  2,
		HouseFeeFraction: 0.05,
	}
}

func newFixture(t *testing.T, judge ai.Judge, tr treasury.Treasury) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store := newMemStore(clock)
	emitter := events.NewEmitter(nil, nil)

	rounds := round.NewManager(store, store, ai.NewCharacterSet(nil), judge, tr, emitter, round.Config{
		DefaultSettings: testSettings(),
		JudgeTimeout:    time.Second,
		JudgeEnabled:    judge != nil,
	})
	subs := submission.NewManager(store, store, tr, emitter, submission.PaymentModeTrusted)
	timers := timer.NewManager(clock)

	orch := New(rounds, subs, timers, store, emitter, clock, Config{
		NextRoundDelay:     5 * time.Second,
		AutoStartNextRound: true,
	})
	t.Cleanup(orch.Shutdown)

	return &fixture{clock: clock, store: store, subs: subs, orch: orch}
}

// advanceSeconds moves the fake clock one second at a time, yielding
// between steps so the countdown goroutine consumes each tick.
func (f *fixture) advanceSeconds(n int) {
	for i := 0; i < n; i++ {
		f.clock.Advance(time.Second)
		time.Sleep(3 * time.Millisecond)
	}
}

func (f *fixture) join(t *testing.T, addr string) *submission.JoinResult {
	t.Helper()
	result, err := f.orch.JoinRound(context.Background(), submission.JoinRequest{
		PlayerAddress: addr,
		RoastText:     "your latency has latency",
	})
	require.NoError(t, err)
	return result
}

func TestJoinAutoStartsAtMinPlayers(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	created, err := f.orch.CreateRound(ctx, "")
	require.NoError(t, err)

	f.join(t, "0xplayer1")
	assert.Equal(t, models.RoundPhaseWaiting, f.store.phase(created.ID))

	f.join(t, "0xplayer2")
	assert.Equal(t, models.RoundPhaseActive, f.store.phase(created.ID))

	view, err := f.orch.CurrentRound(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, models.RoundPhaseActive, view.Round.Phase)
	assert.Equal(t, 2, view.PlayerCount)
	assert.Equal(t, 15, view.TimeLeftSec)
	assert.False(t, view.Locked)
	assert.InDelta(t, 0.05, view.Round.PrizePool, 1e-9)
}

func TestFullRoundLifecycle(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	created, err := f.orch.CreateRound(ctx, "")
	require.NoError(t, err)
	f.join(t, "0xplayer1")
	f.join(t, "0xplayer2")

	// Lock window opens 10s before expiry: at 5s for a 15s timer.
	f.advanceSeconds(5)
	require.Eventually(t, func() bool {
		return f.subs.IsLocked(created.ID)
	}, time.Second, 5*time.Millisecond, "submissions never locked")

	_, err = f.orch.JoinRound(ctx, submission.JoinRequest{
		PlayerAddress: "0xlatecomer",
		RoastText:     "too slow to roast",
	})
	var joinErr *submission.JoinError
	require.ErrorAs(t, err, &joinErr)
	assert.Equal(t, submission.CodeSubmissionsLocked, joinErr.Code)

	count, err := f.store.CountByRound(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "locked join must leave no submission")

	// Timer expiry moves the round to judging.
	f.advanceSeconds(10)
	require.Eventually(t, func() bool {
		return f.store.phase(created.ID) == models.RoundPhaseJudging
	}, time.Second, 5*time.Millisecond, "round never reached judging")

	// Completion fires after the judging delay.
	f.advanceSeconds(2)
	require.Eventually(t, func() bool {
		return f.store.phase(created.ID) == models.RoundPhaseCompleted
	}, time.Second, 5*time.Millisecond, "round never completed")

	result, err := f.store.GetResult(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, result.Fallback, "no judge configured, winner must be a random fallback")
	assert.Contains(t, []string{"0xplayer1", "0xplayer2"}, result.WinnerAddress)
	assert.InDelta(t, 0.05*0.95, result.PrizeAmount, 1e-9)

	// The next round is auto-created after the configured delay.
	f.advanceSeconds(5)
	require.Eventually(t, func() bool {
		current, err := f.store.GetCurrentRound(ctx)
		return err == nil && current != nil && current.ID != created.ID &&
			current.Phase == models.RoundPhaseWaiting
	}, time.Second, 5*time.Millisecond, "next round was never auto-created")
}

func TestJudgeFailureFallsBackWithPrizeIntact(t *testing.T) {
	tr := &recordingTreasury{}
	f := newFixture(t, errorJudge{}, tr)
	ctx := context.Background()

	created, err := f.orch.CreateRound(ctx, "")
	require.NoError(t, err)
	f.join(t, "0xplayer1")
	f.join(t, "0xplayer2")

	f.advanceSeconds(15)
	require.Eventually(t, func() bool {
		return f.store.phase(created.ID) == models.RoundPhaseJudging
	}, time.Second, 5*time.Millisecond)

	f.advanceSeconds(2)
	require.Eventually(t, func() bool {
		return f.store.phase(created.ID) == models.RoundPhaseCompleted
	}, time.Second, 5*time.Millisecond)

	result, err := f.store.GetResult(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.InDelta(t, 0.05*0.95, result.PrizeAmount, 1e-9)
	assert.Equal(t, "0xfeed", result.PayoutTxHash)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.payouts, 1)
	assert.InDelta(t, 0.05, tr.payouts[0], 1e-9, "treasury receives the gross pool")
}

func TestCompleteRoundTwiceIsNoOp(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	created, err := f.orch.CreateRound(ctx, "")
	require.NoError(t, err)
	f.join(t, "0xplayer1")
	f.join(t, "0xplayer2")

	_, err = f.orch.ForceComplete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundPhaseCompleted, f.store.phase(created.ID))

	_, err = f.orch.ForceComplete(ctx, created.ID)
	assert.ErrorIs(t, err, round.ErrWrongPhase)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Len(t, f.store.results, 1)
}

func TestRecoveryResumesPartialCountdown(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	startedAt := f.clock.Now().Add(-60 * time.Second)
	r := &models.Round{
		ID:        uuid.New(),
		Phase:     models.RoundPhaseActive,
		Settings:  testSettings(),
		StartedAt: &startedAt,
		PrizePool: 0.05,
	}
	r.Settings.TimerDurationSec = 120
	f.store.seedRound(r)
	f.store.seedSubmission(r.ID, "0xplayer1")
	f.store.seedSubmission(r.ID, "0xplayer2")

	require.NoError(t, f.orch.Recover(ctx))

	view, err := f.orch.CurrentRound(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, 60, view.TimeLeftSec, "remaining time is recomputed from the persisted start")
	assert.False(t, view.Locked)

	// Lock opens at 10s before the recomputed deadline.
	f.clock.Advance(50 * time.Second)
	require.Eventually(t, func() bool {
		return f.subs.IsLocked(r.ID)
	}, time.Second, 5*time.Millisecond)
}

func TestRecoveryElapsedCountdownGoesStraightToJudging(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	startedAt := f.clock.Now().Add(-130 * time.Second)
	r := &models.Round{
		ID:        uuid.New(),
		Phase:     models.RoundPhaseActive,
		Settings:  testSettings(),
		StartedAt: &startedAt,
		PrizePool: 0.05,
	}
	r.Settings.TimerDurationSec = 120
	f.store.seedRound(r)
	f.store.seedSubmission(r.ID, "0xplayer1")
	f.store.seedSubmission(r.ID, "0xplayer2")

	require.NoError(t, f.orch.Recover(ctx))
	assert.Equal(t, models.RoundPhaseJudging, f.store.phase(r.ID))
	assert.True(t, f.subs.IsLocked(r.ID))

	f.advanceSeconds(2)
	require.Eventually(t, func() bool {
		return f.store.phase(r.ID) == models.RoundPhaseCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestRecoveryElapsedJudgingCompletesImmediately(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	judgingStartedAt := f.clock.Now().Add(-30 * time.Second)
	r := &models.Round{
		ID:               uuid.New(),
		Phase:            models.RoundPhaseJudging,
		Settings:         testSettings(),
		JudgingStartedAt: &judgingStartedAt,
		PrizePool:        0.05,
	}
	f.store.seedRound(r)
	f.store.seedSubmission(r.ID, "0xplayer1")
	f.store.seedSubmission(r.ID, "0xplayer2")

	require.NoError(t, f.orch.Recover(ctx))
	assert.Equal(t, models.RoundPhaseCompleted, f.store.phase(r.ID))

	_, err := f.store.GetResult(ctx, r.ID)
	assert.NoError(t, err)
}

func TestRecoveryWaitingRoundWithQuorumStarts(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	r := &models.Round{
		ID:       uuid.New(),
		Phase:    models.RoundPhaseWaiting,
		Settings: testSettings(),
	}
	f.store.seedRound(r)
	f.store.seedSubmission(r.ID, "0xplayer1")
	f.store.seedSubmission(r.ID, "0xplayer2")

	require.NoError(t, f.orch.Recover(ctx))
	assert.Equal(t, models.RoundPhaseActive, f.store.phase(r.ID))

	left, ok := f.orch.timers.TimeLeft(r.ID)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, left)
}

func TestRecoveryWithNoRoundSchedulesNext(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.orch.Recover(ctx))
	assert.Zero(t, f.store.roundCount())

	f.advanceSeconds(5)
	require.Eventually(t, func() bool {
		current, err := f.store.GetCurrentRound(ctx)
		return err == nil && current != nil && current.Phase == models.RoundPhaseWaiting
	}, time.Second, 5*time.Millisecond, "next round was never scheduled")
}

func TestForceCompleteActiveRound(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	created, err := f.orch.CreateRound(ctx, "")
	require.NoError(t, err)
	f.join(t, "0xplayer1")
	f.join(t, "0xplayer2")
	require.Equal(t, models.RoundPhaseActive, f.store.phase(created.ID))

	result, err := f.orch.ForceComplete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundPhaseCompleted, f.store.phase(created.ID))
	assert.InDelta(t, 0.05*0.95, result.PrizeAmount, 1e-9)
	assert.False(t, f.subs.IsLocked(created.ID), "teardown clears the lock flag")
}
