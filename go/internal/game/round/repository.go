package round

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/roastarena/roastarena/go/internal/models"
	"github.com/roastarena/roastarena/go/internal/sqlutil"
)

// Repository persists rounds and results in Postgres. All phase
// transitions are compare-and-set UPDATEs so a lost race surfaces as
// ErrWrongPhase instead of a double transition.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const roundColumns = `id, judge_character, phase, prize_pool, settings, started_at, judging_started_at, completed_at, created_at, updated_at`

func (r *Repository) CreateRound(ctx context.Context, req CreateRoundRequest) (*models.Round, error) {
	settingsBytes, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal round settings: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO rounds (id, judge_character, phase, prize_pool, settings, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, now(), now())
		RETURNING `+roundColumns,
		req.ID, req.JudgeCharacter, models.RoundPhaseWaiting,
		pqtype.NullRawMessage{RawMessage: settingsBytes, Valid: len(settingsBytes) > 0},
	)

	round, err := scanRound(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}
	return round, nil
}

func (r *Repository) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

// GetCurrentRound returns the single non-terminal round, or nil when
// none exists.
func (r *Repository) GetCurrentRound(ctx context.Context) (*models.Round, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE phase != $1
		ORDER BY created_at DESC
		LIMIT 1`,
		models.RoundPhaseCompleted,
	)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current round: %w", err)
	}
	return round, nil
}

// StartRound moves waiting -> active, stamping started_at.
func (r *Repository) StartRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return r.transition(ctx, id, models.RoundPhaseWaiting, models.RoundPhaseActive, "started_at")
}

// MarkJudging moves active -> judging, stamping judging_started_at.
func (r *Repository) MarkJudging(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return r.transition(ctx, id, models.RoundPhaseActive, models.RoundPhaseJudging, "judging_started_at")
}

// CompleteRound moves judging -> completed, stamping completed_at.
// This is the atomic guard against a double completion: only one
// caller ever sees the row transition.
func (r *Repository) CompleteRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return r.transition(ctx, id, models.RoundPhaseJudging, models.RoundPhaseCompleted, "completed_at")
}

func (r *Repository) transition(ctx context.Context, id uuid.UUID, from, to models.RoundPhase, stampColumn string) (*models.Round, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE rounds
		SET phase = $1, `+stampColumn+` = now(), updated_at = now()
		WHERE id = $2 AND phase = $3
		RETURNING `+roundColumns,
		to, id, from,
	)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Row exists in another phase, or not at all.
		if _, getErr := r.GetRound(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrWrongPhase
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition round to %s: %w", to, err)
	}
	return round, nil
}

// AddToPrizePool increments the pool by the entry fee. Exposed for the
// submission repository's join transaction.
func AddToPrizePool(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount float64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE rounds SET prize_pool = prize_pool + $1, updated_at = now() WHERE id = $2`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update prize pool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoundNotFound
	}
	return nil
}

func (r *Repository) CreateResult(ctx context.Context, req CreateResultRequest) (*models.Result, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO results (round_id, winner_submission_id, winner_address, ai_reasoning, fallback, prize_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING round_id, winner_submission_id, winner_address, ai_reasoning, fallback, prize_amount, payout_tx_hash, created_at`,
		req.RoundID, req.WinnerSubmissionID, req.WinnerAddress, req.AIReasoning, req.Fallback, req.PrizeAmount,
	)
	result, err := scanResult(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}
	return result, nil
}

func (r *Repository) GetResult(ctx context.Context, roundID uuid.UUID) (*models.Result, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT round_id, winner_submission_id, winner_address, ai_reasoning, fallback, prize_amount, payout_tx_hash, created_at
		FROM results WHERE round_id = $1`,
		roundID,
	)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return result, nil
}

// SetPayoutTxHash records the payout tx on an existing result.
func (r *Repository) SetPayoutTxHash(ctx context.Context, roundID uuid.UUID, txHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE results SET payout_tx_hash = $1 WHERE round_id = $2`,
		txHash, roundID,
	)
	if err != nil {
		return fmt.Errorf("failed to set payout tx hash: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*models.Round, error) {
	var (
		m                models.Round
		settings         pqtype.NullRawMessage
		startedAt        sql.NullTime
		judgingStartedAt sql.NullTime
		completedAt      sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.JudgeCharacter, &m.Phase, &m.PrizePool, &settings,
		&startedAt, &judgingStartedAt, &completedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if settings.Valid {
		if err := json.Unmarshal(settings.RawMessage, &m.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal round settings: %w", err)
		}
	}
	m.StartedAt = sqlutil.FromSqlTime(startedAt)
	m.JudgingStartedAt = sqlutil.FromSqlTime(judgingStartedAt)
	m.CompletedAt = sqlutil.FromSqlTime(completedAt)
	return &m, nil
}

func scanResult(row rowScanner) (*models.Result, error) {
	var (
		m      models.Result
		txHash sql.NullString
	)
	err := row.Scan(
		&m.RoundID, &m.WinnerSubmissionID, &m.WinnerAddress, &m.AIReasoning,
		&m.Fallback, &m.PrizeAmount, &txHash, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.PayoutTxHash = sqlutil.FromSqlString(txHash, "")
	return &m, nil
}
