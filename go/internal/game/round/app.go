package round

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/ai"
	"github.com/roastarena/roastarena/go/internal/game/events"
	"github.com/roastarena/roastarena/go/internal/models"
	"github.com/roastarena/roastarena/go/internal/treasury"
)

// RoundRepository defines what the round manager needs from persistence.
type RoundRepository interface {
	CreateRound(ctx context.Context, req CreateRoundRequest) (*models.Round, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetCurrentRound(ctx context.Context) (*models.Round, error)
	StartRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	MarkJudging(ctx context.Context, id uuid.UUID) (*models.Round, error)
	CompleteRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	CreateResult(ctx context.Context, req CreateResultRequest) (*models.Result, error)
	GetResult(ctx context.Context, roundID uuid.UUID) (*models.Result, error)
	SetPayoutTxHash(ctx context.Context, roundID uuid.UUID, txHash string) error
}

// SubmissionSource is the read side of the submission store.
type SubmissionSource interface {
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error)
}

// Config holds round manager tunables.
type Config struct {
	DefaultSettings models.RoundSettings
	JudgeTimeout    time.Duration
	JudgeEnabled    bool
}

// Manager owns round phase transitions, winner selection and the
// payout hand-off.
type Manager struct {
	repo       RoundRepository
	subs       SubmissionSource
	characters *ai.CharacterSet
	judge      ai.Judge
	treasury   treasury.Treasury
	emitter    *events.Emitter
	cfg        Config

	mu            sync.Mutex
	rnd           *rand.Rand
	nextJudgeVote string
}

func NewManager(repo RoundRepository, subs SubmissionSource, characters *ai.CharacterSet, judge ai.Judge, tr treasury.Treasury, emitter *events.Emitter, cfg Config) *Manager {
	return &Manager{
		repo:       repo,
		subs:       subs,
		characters: characters,
		judge:      judge,
		treasury:   tr,
		emitter:    emitter,
		cfg:        cfg,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRound creates a new round in phase waiting. It fails with
// ErrRoundConflict while a non-terminal round exists. The judge
// character is the explicit preference when valid, else the consumed
// next-judge vote, else uniform-random.
func (m *Manager) CreateRound(ctx context.Context, preferredCharacter string) (*models.Round, error) {
	current, err := m.repo.GetCurrentRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check current round: %w", err)
	}
	if current != nil {
		return nil, ErrRoundConflict
	}

	choice := preferredCharacter
	if _, ok := m.characters.Get(choice); !ok {
		if vote, voted := m.ConsumeNextJudgeVote(); voted {
			choice = vote
		}
	}
	character := m.characters.PickOrRandom(choice)

	created, err := m.repo.CreateRound(ctx, CreateRoundRequest{
		ID:             uuid.New(),
		JudgeCharacter: character.ID,
		Settings:       m.cfg.DefaultSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	log.Info().
		Str("round_id", created.ID.String()).
		Str("judge_character", character.ID).
		Msg("round created")

	m.emitter.RoundCreated(created.ID, events.RoundCreatedPayload{
		RoundID:          created.ID.String(),
		JudgeCharacter:   created.JudgeCharacter,
		EntryFee:         created.Settings.EntryFee,
		MaxPlayers:       created.Settings.MaxPlayers,
		TimerDurationSec: created.Settings.TimerDurationSec,
		CreatedAt:        created.CreatedAt,
	})
	return created, nil
}

// StartRound moves a waiting round to active once enough players have
// joined. The caller is responsible for starting timers.
func (m *Manager) StartRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	subs, err := m.subs.ListByRound(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	current, err := m.repo.GetRound(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(subs) < current.Settings.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	started, err := m.repo.StartRound(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("round_id", id.String()).
		Int("players", len(subs)).
		Msg("round started")
	return started, nil
}

// TransitionToJudging moves an active round to judging and stamps
// judgingStartedAt. The orchestrator schedules the completion callback.
func (m *Manager) TransitionToJudging(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	judging, err := m.repo.MarkJudging(ctx, id)
	if err != nil {
		return nil, err
	}

	subs, err := m.subs.ListByRound(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	log.Info().
		Str("round_id", id.String()).
		Str("judge_character", judging.JudgeCharacter).
		Int("submissions", len(subs)).
		Msg("judging started")

	var at time.Time
	if judging.JudgingStartedAt != nil {
		at = *judging.JudgingStartedAt
	}
	m.emitter.JudgingStarted(id, events.JudgingStartedPayload{
		RoundID:          id.String(),
		JudgeCharacter:   judging.JudgeCharacter,
		SubmissionCount:  len(subs),
		JudgingStartedAt: at,
	})
	return judging, nil
}

// CompleteRound selects a winner, atomically moves the round from
// judging to completed, persists the result and hands off the payout.
// A concurrent or repeated call loses the compare-and-set and returns
// ErrWrongPhase without creating a second result. The round reaches
// completed even when the payout fails; that failure goes to admins.
func (m *Manager) CompleteRound(ctx context.Context, id uuid.UUID) (*models.Result, error) {
	current, err := m.repo.GetRound(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Phase != models.RoundPhaseJudging {
		return nil, ErrWrongPhase
	}

	subs, err := m.subs.ListByRound(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	if len(subs) < current.Settings.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	winner, reasoning, fallback := m.selectWinner(ctx, current, subs)
	prize := current.PrizePool * (1 - current.Settings.HouseFeeFraction)

	// The atomic guard: whoever wins this transition owns the result.
	completed, err := m.repo.CompleteRound(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := m.repo.CreateResult(ctx, CreateResultRequest{
		RoundID:            id,
		WinnerSubmissionID: winner.ID,
		WinnerAddress:      winner.PlayerAddress,
		AIReasoning:        reasoning,
		Fallback:           fallback,
		PrizeAmount:        prize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}

	log.Info().
		Str("round_id", id.String()).
		Str("winner", winner.PlayerAddress).
		Float64("prize", prize).
		Bool("fallback", fallback).
		Msg("round completed")

	var completedAt time.Time
	if completed.CompletedAt != nil {
		completedAt = *completed.CompletedAt
	}
	m.emitter.RoundCompleted(id, events.RoundCompletedPayload{
		RoundID:            id.String(),
		WinnerSubmissionID: winner.ID.String(),
		WinnerAddress:      winner.PlayerAddress,
		AIReasoning:        reasoning,
		Fallback:           fallback,
		PrizeAmount:        prize,
		CompletedAt:        completedAt,
	})

	m.payout(ctx, completed, result)
	return result, nil
}

// selectWinner asks the AI judge under a hard timeout and falls back
// to uniform-random selection on timeout, error or an unknown winner
// id.
func (m *Manager) selectWinner(ctx context.Context, r *models.Round, subs []models.Submission) (models.Submission, string, bool) {
	if m.judge != nil && m.cfg.JudgeEnabled {
		character, _ := m.characters.Get(r.JudgeCharacter)
		verdict, err := ai.JudgeWithTimeout(ctx, m.judge, ai.RoundContext{
			RoundID:     r.ID,
			Judge:       character,
			Submissions: subs,
		}, m.cfg.JudgeTimeout)
		if err == nil {
			for _, sub := range subs {
				if sub.ID == verdict.WinnerID {
					return sub, verdict.Reasoning, verdict.Fallback
				}
			}
			err = fmt.Errorf("judge returned unknown winner id %s", verdict.WinnerID)
		}
		log.Warn().
			Err(err).
			Str("round_id", r.ID.String()).
			Msg("judge failed, falling back to random winner")
	}

	m.mu.Lock()
	winner := subs[m.rnd.Intn(len(subs))]
	m.mu.Unlock()
	return winner, "Winner selected at random (judge unavailable).", true
}

// payout hands the prize off to the treasury. Failure is reported to
// admins and leaves the payout hash empty for manual reconciliation;
// there is no automatic retry.
func (m *Manager) payout(ctx context.Context, r *models.Round, result *models.Result) {
	if m.treasury == nil {
		log.Warn().Str("round_id", r.ID.String()).Msg("no treasury configured, skipping payout")
		return
	}

	receipt, err := m.treasury.SendPrizePayout(ctx, result.WinnerAddress, r.ID, r.PrizePool)
	if err != nil {
		log.Error().
			Err(err).
			Str("round_id", r.ID.String()).
			Str("winner", result.WinnerAddress).
			Msg("prize payout failed")
		m.emitter.AdminError(r.ID, "PAYOUT_FAILED", err.Error())
		return
	}

	if err := m.repo.SetPayoutTxHash(ctx, r.ID, receipt.TxHash); err != nil {
		log.Error().Err(err).Str("round_id", r.ID.String()).Msg("failed to record payout tx hash")
		m.emitter.AdminError(r.ID, "PAYOUT_RECORD_FAILED", err.Error())
		return
	}

	m.emitter.PrizeDistributed(r.ID, events.PrizeDistributedPayload{
		RoundID:       r.ID.String(),
		WinnerAddress: result.WinnerAddress,
		Amount:        receipt.Amount,
		TxHash:        receipt.TxHash,
		DistributedAt: time.Now().UTC(),
	})
}

// Result returns the persisted result for a round, nil when the round
// has not completed.
func (m *Manager) Result(ctx context.Context, roundID uuid.UUID) (*models.Result, error) {
	return m.repo.GetResult(ctx, roundID)
}

// SetNextJudgeVote stores the community's pick for the next round's
// judge. Single slot; the next CreateRound consumes it.
func (m *Manager) SetNextJudgeVote(characterID string) error {
	if _, ok := m.characters.Get(characterID); !ok {
		return errors.New("unknown judge character")
	}
	m.mu.Lock()
	m.nextJudgeVote = characterID
	m.mu.Unlock()
	return nil
}

// NextJudgeVote reads the pending vote without consuming it.
func (m *Manager) NextJudgeVote() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextJudgeVote, m.nextJudgeVote != ""
}

// ConsumeNextJudgeVote reads and clears the pending vote.
func (m *Manager) ConsumeNextJudgeVote() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vote := m.nextJudgeVote
	m.nextJudgeVote = ""
	return vote, vote != ""
}

// ClearNextJudgeVote drops any pending vote.
func (m *Manager) ClearNextJudgeVote() {
	m.mu.Lock()
	m.nextJudgeVote = ""
	m.mu.Unlock()
}
