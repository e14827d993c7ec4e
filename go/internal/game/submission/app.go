package submission

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/game/events"
	"github.com/roastarena/roastarena/go/internal/models"
	"github.com/roastarena/roastarena/go/internal/treasury"
)

// PaymentMode controls whether entry-fee payment verification is
// enforced. An explicit mode, never an environment sniff.
type PaymentMode string

const (
	// PaymentModeRequired rejects joins without a verified payment.
	PaymentModeRequired PaymentMode = "required"
	// PaymentModeTrusted skips verification when no reference is
	// supplied (development and local play).
	PaymentModeTrusted PaymentMode = "trusted"
)

// SubmissionRepository defines what the manager needs from persistence.
type SubmissionRepository interface {
	CreateWithEntryFee(ctx context.Context, req CreateSubmissionRequest) (*models.Submission, error)
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error)
	CountByRound(ctx context.Context, roundID uuid.UUID) (int, error)
	HasPlayerSubmission(ctx context.Context, roundID uuid.UUID, playerAddress string) (bool, error)
}

// RoundSource is the read side of the round store.
type RoundSource interface {
	GetCurrentRound(ctx context.Context) (*models.Round, error)
}

// JoinResult is returned on a successful join.
type JoinResult struct {
	Submission  *models.Submission
	Round       *models.Round
	PlayerCount int
}

// Manager validates and records player entries and owns the transient
// per-round submission-lock flag.
type Manager struct {
	repo     SubmissionRepository
	rounds   RoundSource
	treasury treasury.Treasury
	emitter  *events.Emitter
	payMode  PaymentMode

	mu     sync.Mutex
	locked map[uuid.UUID]bool
}

func NewManager(repo SubmissionRepository, rounds RoundSource, tr treasury.Treasury, emitter *events.Emitter, payMode PaymentMode) *Manager {
	return &Manager{
		repo:     repo,
		rounds:   rounds,
		treasury: tr,
		emitter:  emitter,
		payMode:  payMode,
		locked:   make(map[uuid.UUID]bool),
	}
}

// JoinRound validates and records an entry into the current round.
// Rejections are typed *JoinError values and leave no partial state.
func (m *Manager) JoinRound(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	addr := strings.ToLower(strings.TrimSpace(req.PlayerAddress))
	if addr == "" {
		return nil, &JoinError{Code: CodeInvalidInput, Message: "player address is required"}
	}
	if strings.TrimSpace(req.RoastText) == "" {
		return nil, &JoinError{Code: CodeInvalidInput, Message: "roast text is required"}
	}

	current, err := m.rounds.GetCurrentRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load current round: %w", err)
	}
	if current == nil {
		return nil, ErrRoundNotFound
	}
	if current.Phase != models.RoundPhaseWaiting && current.Phase != models.RoundPhaseActive {
		return nil, ErrRoundNotJoinable
	}
	if m.IsLocked(current.ID) {
		return nil, ErrSubmissionsLocked
	}

	count, err := m.repo.CountByRound(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	if count >= current.Settings.MaxPlayers {
		return nil, ErrRoundFull
	}

	exists, err := m.repo.HasPlayerSubmission(ctx, current.ID, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing submission: %w", err)
	}
	if exists {
		return nil, ErrAlreadySubmitted
	}

	if err := m.verifyPayment(ctx, current, addr, req.PaymentTxRef); err != nil {
		return nil, err
	}

	sub, err := m.repo.CreateWithEntryFee(ctx, CreateSubmissionRequest{
		ID:            uuid.New(),
		RoundID:       current.ID,
		PlayerAddress: addr,
		RoastText:     req.RoastText,
		EntryFee:      current.Settings.EntryFee,
		PaymentTxRef:  req.PaymentTxRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	playerCount := count + 1
	log.Info().
		Str("round_id", current.ID.String()).
		Str("player", addr).
		Int("players", playerCount).
		Msg("player joined round")

	m.emitter.PlayerJoined(current.ID, events.PlayerJoinedPayload{
		RoundID:       current.ID.String(),
		PlayerAddress: addr,
		PlayerCount:   playerCount,
		PrizePool:     current.PrizePool + current.Settings.EntryFee,
		JoinedAt:      sub.SubmittedAt,
	})

	return &JoinResult{Submission: sub, Round: current, PlayerCount: playerCount}, nil
}

// verifyPayment checks the entry fee through the treasury. A payment
// reference is verified in every mode; its absence is only acceptable
// in trusted mode.
func (m *Manager) verifyPayment(ctx context.Context, r *models.Round, addr, txRef string) error {
	if txRef == "" {
		if m.payMode == PaymentModeRequired {
			return ErrPaymentRequired
		}
		return nil
	}
	if m.treasury == nil {
		if m.payMode == PaymentModeRequired {
			return &JoinError{Code: CodePaymentInvalid, Message: "payment verification unavailable"}
		}
		return nil
	}

	verification, err := m.treasury.VerifyEntryFeePayment(ctx, txRef, addr, r.ID)
	if err != nil {
		return fmt.Errorf("failed to verify entry fee payment: %w", err)
	}
	if !verification.Valid {
		return &JoinError{Code: CodePaymentInvalid, Message: verification.Reason}
	}
	if verification.Amount < r.Settings.EntryFee {
		return &JoinError{
			Code:    CodePaymentInvalid,
			Message: fmt.Sprintf("payment %.4f below entry fee %.4f", verification.Amount, r.Settings.EntryFee),
		}
	}
	return nil
}

// Lock sets the submission-lock flag for the final pre-end window.
// Idempotent; the broadcast fires only on an actual change.
func (m *Manager) Lock(roundID uuid.UUID) {
	m.setLocked(roundID, true)
}

// Unlock clears the submission-lock flag. Idempotent.
func (m *Manager) Unlock(roundID uuid.UUID) {
	m.setLocked(roundID, false)
}

func (m *Manager) setLocked(roundID uuid.UUID, locked bool) {
	m.mu.Lock()
	changed := m.locked[roundID] != locked
	if locked {
		m.locked[roundID] = true
	} else {
		delete(m.locked, roundID)
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	log.Info().Str("round_id", roundID.String()).Bool("locked", locked).Msg("submission lock changed")
	m.emitter.SubmissionsLocked(roundID, locked)
}

// IsLocked reports the transient lock flag.
func (m *Manager) IsLocked(roundID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked[roundID]
}

// ClearLock drops the flag without broadcasting, for recovery and
// round teardown.
func (m *Manager) ClearLock(roundID uuid.UUID) {
	m.mu.Lock()
	delete(m.locked, roundID)
	m.mu.Unlock()
}

// Count returns the number of submissions in a round.
func (m *Manager) Count(ctx context.Context, roundID uuid.UUID) (int, error) {
	return m.repo.CountByRound(ctx, roundID)
}

// List returns a round's submissions in submission order.
func (m *Manager) List(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error) {
	return m.repo.ListByRound(ctx, roundID)
}

// ShouldStart reports whether the round is waiting with enough players
// to begin. The orchestrator asks after every join.
func (m *Manager) ShouldStart(ctx context.Context, r *models.Round) (bool, error) {
	if r.Phase != models.RoundPhaseWaiting {
		return false, nil
	}
	count, err := m.repo.CountByRound(ctx, r.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count >= r.Settings.MinPlayers, nil
}
