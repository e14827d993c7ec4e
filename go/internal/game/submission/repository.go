package submission

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roastarena/roastarena/go/internal/game/round"
	"github.com/roastarena/roastarena/go/internal/models"
	"github.com/roastarena/roastarena/go/internal/sqlutil"
)

// Repository persists submissions in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const submissionColumns = `id, round_id, player_address, roast_text, entry_fee, payment_tx_ref, submitted_at`

// txQueries binds submission writes to one transaction.
type txQueries struct {
	tx *sql.Tx
}

func newTxQueries(tx *sql.Tx) *txQueries {
	return &txQueries{tx: tx}
}

func (q *txQueries) insertSubmission(ctx context.Context, req CreateSubmissionRequest) (*models.Submission, error) {
	row := q.tx.QueryRowContext(ctx, `
		INSERT INTO submissions (id, round_id, player_address, roast_text, entry_fee, payment_tx_ref, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+submissionColumns,
		req.ID, req.RoundID, req.PlayerAddress, req.RoastText, req.EntryFee, req.PaymentTxRef,
	)
	return scanSubmission(row)
}

// CreateWithEntryFee inserts the submission and credits the round's
// prize pool atomically. A duplicate (round, player) pair fails on the
// unique index and rolls the whole join back.
func (r *Repository) CreateWithEntryFee(ctx context.Context, req CreateSubmissionRequest) (*models.Submission, error) {
	var created *models.Submission
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q *txQueries) error {
		sub, err := q.insertSubmission(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to insert submission: %w", err)
		}
		if err := round.AddToPrizePool(ctx, q.tx, req.RoundID, req.EntryFee); err != nil {
			return err
		}
		created = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE round_id = $1
		ORDER BY submitted_at`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (r *Repository) CountByRound(ctx context.Context, roundID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM submissions WHERE round_id = $1`, roundID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

func (r *Repository) HasPlayerSubmission(ctx context.Context, roundID uuid.UUID, playerAddress string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM submissions WHERE round_id = $1 AND player_address = $2)`,
		roundID, playerAddress,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check player submission: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		m     models.Submission
		txRef sql.NullString
	)
	err := row.Scan(&m.ID, &m.RoundID, &m.PlayerAddress, &m.RoastText, &m.EntryFee, &txRef, &m.SubmittedAt)
	if err != nil {
		return nil, err
	}
	m.PaymentTxRef = sqlutil.FromSqlString(txRef, "")
	return &m, nil
}
