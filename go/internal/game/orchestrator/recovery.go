package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/game/round"
	"github.com/roastarena/roastarena/go/internal/models"
)

// Recover rebuilds timer and lock state from persisted rounds after a
// process restart. Elapsed time is recomputed from the stored
// timestamps, so a countdown that ran out while the process was down
// moves straight to judging instead of restarting.
func (o *Orchestrator) Recover(ctx context.Context) error {
	current, err := o.store.GetCurrentRound(ctx)
	if err != nil {
		return fmt.Errorf("failed to load current round for recovery: %w", err)
	}

	if current == nil {
		log.Info().Msg("no round to recover")
		if o.cfg.AutoStartNextRound {
			o.timers.ScheduleNextRound(o.cfg.NextRoundDelay, o.autoCreateRound)
		}
		return nil
	}

	log.Info().
		Str("round_id", current.ID.String()).
		Str("phase", string(current.Phase)).
		Msg("recovering round")

	switch current.Phase {
	case models.RoundPhaseWaiting:
		return o.recoverWaiting(ctx, current)
	case models.RoundPhaseActive:
		return o.recoverActive(ctx, current)
	case models.RoundPhaseJudging:
		o.recoverJudging(current)
		return nil
	default:
		return nil
	}
}

// recoverWaiting starts the round if it already has enough players.
func (o *Orchestrator) recoverWaiting(ctx context.Context, r *models.Round) error {
	start, err := o.subs.ShouldStart(ctx, r)
	if err != nil {
		return err
	}
	if !start {
		return nil
	}
	if _, err := o.StartRound(ctx, r.ID); err != nil && !errors.Is(err, round.ErrWrongPhase) {
		return fmt.Errorf("failed to start recovered round: %w", err)
	}
	return nil
}

// recoverActive resumes the countdown from the persisted start time.
// A fully elapsed window transitions directly to judging; a partially
// elapsed one resumes, re-arming the lock only if its window is still
// ahead.
func (o *Orchestrator) recoverActive(ctx context.Context, r *models.Round) error {
	if r.StartedAt == nil {
		return fmt.Errorf("active round %s has no start time", r.ID)
	}

	duration := time.Duration(r.Settings.TimerDurationSec) * time.Second
	elapsed := o.clock.Now().Sub(*r.StartedAt)
	remaining := duration - elapsed

	if remaining <= 0 {
		log.Info().
			Str("round_id", r.ID.String()).
			Dur("elapsed", elapsed).
			Msg("round timer elapsed while down, moving to judging")
		o.onCountdownExpired(r.ID)
		return nil
	}

	log.Info().
		Str("round_id", r.ID.String()).
		Dur("remaining", remaining).
		Msg("resuming round countdown")
	o.armActiveTimers(r.ID, remaining)
	return nil
}

// recoverJudging re-schedules the completion callback for whatever is
// left of the judging delay; an elapsed delay completes immediately.
func (o *Orchestrator) recoverJudging(r *models.Round) {
	o.subs.Lock(r.ID)

	delay := time.Duration(r.Settings.JudgingDelaySec) * time.Second
	remaining := delay
	if r.JudgingStartedAt != nil {
		remaining = delay - o.clock.Now().Sub(*r.JudgingStartedAt)
	}

	if remaining <= 0 {
		log.Info().Str("round_id", r.ID.String()).Msg("judging delay elapsed while down, completing now")
		if _, err := o.CompleteRound(context.Background(), r.ID); err != nil && !errors.Is(err, round.ErrWrongPhase) {
			log.Error().Err(err).Str("round_id", r.ID.String()).Msg("failed to complete recovered round")
		}
		return
	}
	o.scheduleCompletion(r.ID, remaining)
}
