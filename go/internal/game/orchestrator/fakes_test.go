package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/roastarena/roastarena/go/internal/ai"
	"github.com/roastarena/roastarena/go/internal/game/round"
	"github.com/roastarena/roastarena/go/internal/game/submission"
	"github.com/roastarena/roastarena/go/internal/models"
	"github.com/roastarena/roastarena/go/internal/treasury"
)

// memStore is an in-memory store backing both managers in tests. It
// mirrors the SQL layer's semantics: phase transitions are
// compare-and-set, submission insert and prize-pool credit are one
// atomic step, and all timestamps come from the fake clock.
type memStore struct {
	clock clockwork.Clock

	mu      sync.Mutex
	rounds  map[uuid.UUID]*models.Round
	subs    map[uuid.UUID][]models.Submission
	results map[uuid.UUID]*models.Result
}

func newMemStore(clock clockwork.Clock) *memStore {
	return &memStore{
		clock:   clock,
		rounds:  make(map[uuid.UUID]*models.Round),
		subs:    make(map[uuid.UUID][]models.Submission),
		results: make(map[uuid.UUID]*models.Result),
	}
}

func (s *memStore) CreateRound(_ context.Context, req round.CreateRoundRequest) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	r := &models.Round{
		ID:             req.ID,
		JudgeCharacter: req.JudgeCharacter,
		Phase:          models.RoundPhaseWaiting,
		Settings:       req.Settings,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.rounds[r.ID] = r
	cp := *r
	return &cp, nil
}

func (s *memStore) GetRound(_ context.Context, id uuid.UUID) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return nil, round.ErrRoundNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) GetCurrentRound(_ context.Context) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if !r.Phase.Terminal() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) transition(id uuid.UUID, from, to models.RoundPhase) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return nil, round.ErrRoundNotFound
	}
	if r.Phase != from {
		return nil, round.ErrWrongPhase
	}
	now := s.clock.Now()
	r.Phase = to
	r.UpdatedAt = now
	switch to {
	case models.RoundPhaseActive:
		r.StartedAt = &now
	case models.RoundPhaseJudging:
		r.JudgingStartedAt = &now
	case models.RoundPhaseCompleted:
		r.CompletedAt = &now
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) StartRound(_ context.Context, id uuid.UUID) (*models.Round, error) {
	return s.transition(id, models.RoundPhaseWaiting, models.RoundPhaseActive)
}

func (s *memStore) MarkJudging(_ context.Context, id uuid.UUID) (*models.Round, error) {
	return s.transition(id, models.RoundPhaseActive, models.RoundPhaseJudging)
}

func (s *memStore) CompleteRound(_ context.Context, id uuid.UUID) (*models.Round, error) {
	return s.transition(id, models.RoundPhaseJudging, models.RoundPhaseCompleted)
}

func (s *memStore) CreateResult(_ context.Context, req round.CreateResultRequest) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[req.RoundID]; exists {
		return nil, errors.New("duplicate result")
	}
	res := &models.Result{
		RoundID:            req.RoundID,
		WinnerSubmissionID: req.WinnerSubmissionID,
		WinnerAddress:      req.WinnerAddress,
		AIReasoning:        req.AIReasoning,
		Fallback:           req.Fallback,
		PrizeAmount:        req.PrizeAmount,
		CreatedAt:          s.clock.Now(),
	}
	s.results[req.RoundID] = res
	cp := *res
	return &cp, nil
}

func (s *memStore) GetResult(_ context.Context, roundID uuid.UUID) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[roundID]
	if !ok {
		return nil, round.ErrRoundNotFound
	}
	cp := *res
	return &cp, nil
}

func (s *memStore) SetPayoutTxHash(_ context.Context, roundID uuid.UUID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[roundID]; ok {
		res.PayoutTxHash = txHash
	}
	return nil
}

func (s *memStore) CreateWithEntryFee(_ context.Context, req submission.CreateSubmissionRequest) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := models.Submission{
		ID:            req.ID,
		RoundID:       req.RoundID,
		PlayerAddress: req.PlayerAddress,
		RoastText:     req.RoastText,
		EntryFee:      req.EntryFee,
		PaymentTxRef:  req.PaymentTxRef,
		SubmittedAt:   s.clock.Now(),
	}
	s.subs[req.RoundID] = append(s.subs[req.RoundID], sub)
	if r, ok := s.rounds[req.RoundID]; ok {
		r.PrizePool += req.EntryFee
	}
	return &sub, nil
}

func (s *memStore) ListByRound(_ context.Context, roundID uuid.UUID) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Submission(nil), s.subs[roundID]...), nil
}

func (s *memStore) CountByRound(_ context.Context, roundID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[roundID]), nil
}

func (s *memStore) HasPlayerSubmission(_ context.Context, roundID uuid.UUID, playerAddress string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[roundID] {
		if sub.PlayerAddress == playerAddress {
			return true, nil
		}
	}
	return false, nil
}

// seedRound installs a round directly, for recovery scenarios.
func (s *memStore) seedRound(r *models.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rounds[r.ID] = &cp
}

func (s *memStore) seedSubmission(roundID uuid.UUID, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[roundID] = append(s.subs[roundID], models.Submission{
		ID:            uuid.New(),
		RoundID:       roundID,
		PlayerAddress: addr,
		RoastText:     "seeded roast",
		SubmittedAt:   s.clock.Now(),
	})
}

func (s *memStore) phase(id uuid.UUID) models.RoundPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rounds[id]; ok {
		return r.Phase
	}
	return ""
}

func (s *memStore) roundCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rounds)
}

type errorJudge struct{}

func (errorJudge) JudgeRound(_ context.Context, _ ai.RoundContext) (*ai.Verdict, error) {
	return nil, errors.New("model unavailable")
}

type recordingTreasury struct {
	mu      sync.Mutex
	payouts []float64
}

func (r *recordingTreasury) VerifyEntryFeePayment(_ context.Context, _, _ string, _ uuid.UUID) (*treasury.PaymentVerification, error) {
	return &treasury.PaymentVerification{Valid: true, Amount: 1}, nil
}

func (r *recordingTreasury) SendPrizePayout(_ context.Context, _ string, _ uuid.UUID, gross float64) (*treasury.PayoutReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, gross)
	return &treasury.PayoutReceipt{TxHash: "0xfeed", Amount: gross * 0.95}, nil
}
