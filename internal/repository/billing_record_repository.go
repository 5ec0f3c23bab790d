package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const billingRecordColumns = `id, billing_config_id, student_id, amount, total_amount, status, paid_at, created_at, updated_at`

// BillingRecordRepository manages persistence for obligations. The table
// carries a unique index on (billing_config_id, student_id); generation
// relies on it to stay idempotent under concurrent runs.
type BillingRecordRepository struct {
	db *sqlx.DB
}

// NewBillingRecordRepository constructs a BillingRecordRepository.
func NewBillingRecordRepository(db *sqlx.DB) *BillingRecordRepository {
	return &BillingRecordRepository{db: db}
}

// FindByID fetches a record by ID.
func (r *BillingRecordRepository) FindByID(ctx context.Context, id string) (*models.BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_records WHERE id = $1`, billingRecordColumns)
	var record models.BillingRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByConfigAndStudent fetches the single record for an idempotency pair.
func (r *BillingRecordRepository) FindByConfigAndStudent(ctx context.Context, configID, studentID string) (*models.BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_records WHERE billing_config_id = $1 AND student_id = $2`, billingRecordColumns)
	var record models.BillingRecord
	if err := r.db.GetContext(ctx, &record, query, configID, studentID); err != nil {
		return nil, err
	}
	return &record, nil
}

// InsertIfAbsent inserts a new obligation unless one already exists for the
// (billing_config_id, student_id) pair. ON CONFLICT DO NOTHING makes a lost
// race indistinguishable from an ordinary skip, so two concurrent generation
// runs can never double-create. Returns false when nothing was inserted.
func (r *BillingRecordRepository) InsertIfAbsent(ctx context.Context, ext sqlx.ExtContext, record *models.BillingRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO billing_records (id, billing_config_id, student_id, amount, total_amount, status, paid_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (billing_config_id, student_id) DO NOTHING`
	res, err := ext.ExecContext(ctx, query,
		record.ID, record.BillingConfigID, record.StudentID, record.Amount, record.TotalAmount,
		record.Status, record.PaidAt, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert billing record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert billing record rows: %w", err)
	}
	return affected == 1, nil
}

// LockByID loads a record under FOR UPDATE inside the caller's transaction so
// concurrent settlements of the same obligation serialize.
func (r *BillingRecordRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_records WHERE id = $1 FOR UPDATE`, billingRecordColumns)
	var record models.BillingRecord
	if err := tx.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ApplySettlement persists the settled remaining amount, status, and paid
// timestamp within the caller's transaction.
func (r *BillingRecordRepository) ApplySettlement(ctx context.Context, ext sqlx.ExtContext, id string, total decimal.Decimal, status models.RecordStatus, paidAt *time.Time) error {
	const query = `UPDATE billing_records SET total_amount = $2, status = $3, paid_at = $4, updated_at = $5 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, query, id, total, status, paidAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply settlement: %w", err)
	}
	return nil
}

// MarkOverdueByConfig transitions every still-pending record under a policy
// to overdue and reports how many rows changed. Running it twice is a no-op
// the second time. Partial records are deliberately left alone.
func (r *BillingRecordRepository) MarkOverdueByConfig(ctx context.Context, configID string) (int, error) {
	const query = `UPDATE billing_records SET status = $2, updated_at = $3 WHERE billing_config_id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, configID, models.RecordStatusOverdue, time.Now().UTC(), models.RecordStatusPending)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue rows: %w", err)
	}
	return int(affected), nil
}

// ListOpenByStudent returns a student's unresolved obligations with the
// policy context the statement view needs.
func (r *BillingRecordRepository) ListOpenByStudent(ctx context.Context, studentID string) ([]models.BillingRecordDetail, error) {
	const query = `SELECT r.id, r.billing_config_id, r.student_id, r.amount, r.total_amount, r.status, r.paid_at, r.created_at, r.updated_at,
        c.name AS policy_name, c.start_date AS policy_start_date, c.end_date AS policy_end_date
        FROM billing_records r
        JOIN billing_configs c ON c.id = r.billing_config_id
        WHERE r.student_id = $1 AND r.status <> $2
        ORDER BY r.created_at`
	var records []models.BillingRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID, models.RecordStatusCompleted); err != nil {
		return nil, fmt.Errorf("list open records: %w", err)
	}
	return records, nil
}

// StatusCount is one row of the per-policy status breakdown.
type StatusCount struct {
	Status models.RecordStatus `db:"status"`
	Count  int                 `db:"count"`
}

// CountByStatus aggregates record counts per status for a policy.
func (r *BillingRecordRepository) CountByStatus(ctx context.Context, configID string) ([]StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM billing_records WHERE billing_config_id = $1 GROUP BY status`
	var counts []StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, configID); err != nil {
		return nil, fmt.Errorf("count records by status: %w", err)
	}
	return counts, nil
}

// CollectionTotals holds billed vs collected sums for a policy. Collected is
// measured against the records (amount minus remaining), so overpayment
// absorbed as student credit does not inflate it.
type CollectionTotals struct {
	Billed    decimal.Decimal `db:"billed"`
	Collected decimal.Decimal `db:"collected"`
}

// SumCollection aggregates billed and collected totals for a policy.
func (r *BillingRecordRepository) SumCollection(ctx context.Context, configID string) (*CollectionTotals, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) AS billed, COALESCE(SUM(amount - total_amount), 0) AS collected
        FROM billing_records WHERE billing_config_id = $1`
	var totals CollectionTotals
	if err := r.db.GetContext(ctx, &totals, query, configID); err != nil {
		return nil, fmt.Errorf("sum collection: %w", err)
	}
	return &totals, nil
}
