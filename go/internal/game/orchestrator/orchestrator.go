package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/game/events"
	"github.com/roastarena/roastarena/go/internal/game/round"
	"github.com/roastarena/roastarena/go/internal/game/submission"
	"github.com/roastarena/roastarena/go/internal/game/timer"
	"github.com/roastarena/roastarena/go/internal/models"
)

// LockWindow is the span before round-timer expiry during which new
// submissions are rejected.
const LockWindow = 10 * time.Second

// RoundStore is the read access the orchestrator needs beyond the
// managers.
type RoundStore interface {
	GetCurrentRound(ctx context.Context) (*models.Round, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
}

// Config holds orchestrator tunables.
type Config struct {
	// NextRoundDelay is the pause before a fresh round is auto-created
	// after the previous one completes.
	NextRoundDelay time.Duration
	// AutoStartNextRound enables the next-round auto-creation timer.
	AutoStartNextRound bool
}

// CurrentRoundView is the computed view of the current round exposed
// to the transport layer.
type CurrentRoundView struct {
	Round       *models.Round `json:"round"`
	PlayerCount int           `json:"player_count"`
	TimeLeftSec int           `json:"time_left_sec"`
	Locked      bool          `json:"locked"`
}

// Orchestrator composes the round, submission and timer managers into
// the single public game API and performs startup recovery.
type Orchestrator struct {
	rounds  *round.Manager
	subs    *submission.Manager
	timers  *timer.Manager
	store   RoundStore
	emitter *events.Emitter
	clock   clockwork.Clock
	cfg     Config
}

func New(rounds *round.Manager, subs *submission.Manager, timers *timer.Manager, store RoundStore, emitter *events.Emitter, clock clockwork.Clock, cfg Config) *Orchestrator {
	return &Orchestrator{
		rounds:  rounds,
		subs:    subs,
		timers:  timers,
		store:   store,
		emitter: emitter,
		clock:   clock,
		cfg:     cfg,
	}
}

// CreateRound creates a fresh round in phase waiting. Admin surface;
// also invoked by the next-round auto-start timer.
func (o *Orchestrator) CreateRound(ctx context.Context, preferredCharacter string) (*models.Round, error) {
	return o.rounds.CreateRound(ctx, preferredCharacter)
}

// JoinRound records an entry into the current round and starts the
// round when the join satisfies the start condition.
func (o *Orchestrator) JoinRound(ctx context.Context, req submission.JoinRequest) (*submission.JoinResult, error) {
	result, err := o.subs.JoinRound(ctx, req)
	if err != nil {
		return nil, err
	}

	start, err := o.subs.ShouldStart(ctx, result.Round)
	if err != nil {
		log.Error().Err(err).Str("round_id", result.Round.ID.String()).Msg("failed to evaluate start condition")
		return result, nil
	}
	if start {
		if _, err := o.StartRound(ctx, result.Round.ID); err != nil && !errors.Is(err, round.ErrWrongPhase) {
			log.Error().Err(err).Str("round_id", result.Round.ID.String()).Msg("failed to auto-start round")
		}
	}
	return result, nil
}

// StartRound transitions a waiting round to active and arms its
// countdown and submission-lock timers.
func (o *Orchestrator) StartRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	started, err := o.rounds.StartRound(ctx, id)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(started.Settings.TimerDurationSec) * time.Second
	o.armActiveTimers(id, duration)
	o.emitRoundUpdated(ctx, started)
	return started, nil
}

// armActiveTimers starts the countdown and schedules the lock for an
// active round with the given remaining span.
func (o *Orchestrator) armActiveTimers(id uuid.UUID, remaining time.Duration) {
	o.timers.StartCountdown(id, remaining,
		func(left time.Duration) {
			o.emitter.TimerUpdate(id, events.TimerUpdatePayload{
				RoundID:         id.String(),
				TimeLeftSec:     int(left.Seconds()),
				ServerTimestamp: o.clock.Now().UTC(),
			})
		},
		func() { o.onCountdownExpired(id) },
	)

	if remaining > LockWindow {
		o.timers.ScheduleLock(id, remaining-LockWindow, func() {
			o.subs.Lock(id)
		})
	} else {
		o.subs.Lock(id)
	}
}

// onCountdownExpired runs when the round timer hits zero: lock
// submissions, move to judging and schedule the completion callback.
func (o *Orchestrator) onCountdownExpired(id uuid.UUID) {
	ctx := context.Background()

	o.subs.Lock(id)
	o.timers.CancelLock(id)

	judging, err := o.rounds.TransitionToJudging(ctx, id)
	if err != nil {
		if errors.Is(err, round.ErrWrongPhase) {
			log.Debug().Str("round_id", id.String()).Msg("round no longer active at timer expiry")
			return
		}
		log.Error().Err(err).Str("round_id", id.String()).Msg("failed to transition round to judging")
		return
	}

	o.scheduleCompletion(id, time.Duration(judging.Settings.JudgingDelaySec)*time.Second)
}

// scheduleCompletion arms the fixed judging delay after which the
// round completes.
func (o *Orchestrator) scheduleCompletion(id uuid.UUID, delay time.Duration) {
	o.timers.StartCountdown(id, delay, nil, func() {
		if _, err := o.CompleteRound(context.Background(), id); err != nil && !errors.Is(err, round.ErrWrongPhase) {
			log.Error().Err(err).Str("round_id", id.String()).Msg("scheduled round completion failed")
		}
	})
}

// CompleteRound finishes a judging round: winner selection, result,
// payout hand-off. Losing the phase compare-and-set (round already
// completed) is a no-op returning round.ErrWrongPhase.
func (o *Orchestrator) CompleteRound(ctx context.Context, id uuid.UUID) (*models.Result, error) {
	result, err := o.rounds.CompleteRound(ctx, id)
	if err != nil {
		return nil, err
	}

	o.teardownRound(id)
	if o.cfg.AutoStartNextRound {
		o.timers.ScheduleNextRound(o.cfg.NextRoundDelay, o.autoCreateRound)
	}
	return result, nil
}

// ForceComplete is the admin path: an active round is pushed through
// judging and completed immediately; a judging round is completed.
func (o *Orchestrator) ForceComplete(ctx context.Context, id uuid.UUID) (*models.Result, error) {
	r, err := o.store.GetRound(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.Phase == models.RoundPhaseActive {
		if _, err := o.rounds.TransitionToJudging(ctx, id); err != nil && !errors.Is(err, round.ErrWrongPhase) {
			return nil, fmt.Errorf("failed to force round into judging: %w", err)
		}
	}
	return o.CompleteRound(ctx, id)
}

// CurrentRound returns the computed view of the current round: phase,
// live player count, live time left and lock state. Nil when no
// non-terminal round exists.
func (o *Orchestrator) CurrentRound(ctx context.Context) (*CurrentRoundView, error) {
	r, err := o.store.GetCurrentRound(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}

	count, err := o.subs.Count(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	timeLeft := 0
	if left, ok := o.timers.TimeLeft(r.ID); ok {
		timeLeft = int(left.Seconds())
	} else if r.Phase == models.RoundPhaseActive && r.StartedAt != nil {
		deadline := r.StartedAt.Add(time.Duration(r.Settings.TimerDurationSec) * time.Second)
		if left := deadline.Sub(o.clock.Now()); left > 0 {
			timeLeft = int(left.Seconds())
		}
	}

	return &CurrentRoundView{
		Round:       r,
		PlayerCount: count,
		TimeLeftSec: timeLeft,
		Locked:      o.subs.IsLocked(r.ID),
	}, nil
}

// RoundResult returns the persisted outcome of a round, nil while the
// round has not completed.
func (o *Orchestrator) RoundResult(ctx context.Context, roundID uuid.UUID) (*models.Result, error) {
	return o.rounds.Result(ctx, roundID)
}

// Submissions lists a round's entries.
func (o *Orchestrator) Submissions(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error) {
	return o.subs.List(ctx, roundID)
}

// SetNextJudgeVote stores the single-slot judge vote for the next round.
func (o *Orchestrator) SetNextJudgeVote(characterID string) error {
	return o.rounds.SetNextJudgeVote(characterID)
}

// Shutdown cancels every outstanding timer so no callback can fire
// against a closed persistence handle.
func (o *Orchestrator) Shutdown() {
	o.timers.Cleanup()
	log.Info().Msg("orchestrator shut down")
}

func (o *Orchestrator) teardownRound(id uuid.UUID) {
	o.timers.CancelCountdown(id)
	o.timers.CancelLock(id)
	o.subs.ClearLock(id)
}

func (o *Orchestrator) autoCreateRound() {
	ctx := context.Background()
	if _, err := o.CreateRound(ctx, ""); err != nil {
		if errors.Is(err, round.ErrRoundConflict) {
			log.Debug().Msg("skipping auto-create, a round already exists")
			return
		}
		log.Error().Err(err).Msg("failed to auto-create next round")
	}
}

func (o *Orchestrator) emitRoundUpdated(ctx context.Context, r *models.Round) {
	count, err := o.subs.Count(ctx, r.ID)
	if err != nil {
		log.Error().Err(err).Str("round_id", r.ID.String()).Msg("failed to count submissions for update event")
		return
	}
	timeLeft := 0
	if left, ok := o.timers.TimeLeft(r.ID); ok {
		timeLeft = int(left.Seconds())
	}
	o.emitter.RoundUpdated(r.ID, events.RoundUpdatedPayload{
		RoundID:     r.ID.String(),
		Phase:       string(r.Phase),
		PlayerCount: count,
		PrizePool:   r.PrizePool,
		TimeLeftSec: timeLeft,
		UpdatedAt:   o.clock.Now().UTC(),
	})
}
