package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// LedgerRepository appends to the immutable ledger entry log backing the
// student balance and credit projections.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append writes one ledger entry within the caller's transaction. Entries are
// never updated or deleted.
func (r *LedgerRepository) Append(ctx context.Context, ext sqlx.ExtContext, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ledger_entries (id, student_id, direction, amount, source, source_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := ext.ExecContext(ctx, query,
		entry.ID, entry.StudentID, entry.Direction, entry.Amount, entry.Source, entry.SourceID, entry.CreatedAt); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListByStudent returns a student's entries, oldest first.
func (r *LedgerRepository) ListByStudent(ctx context.Context, studentID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, student_id, direction, amount, source, source_id, created_at
        FROM ledger_entries WHERE student_id = $1 ORDER BY created_at`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}
