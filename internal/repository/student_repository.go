package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const studentColumns = `id, nis, full_name, school_id, cycle_id, group_id, active, balance, credit, created_at, updated_at`

// StudentRepository manages persistence for student records, including the
// balance and credit projections maintained by the ledger.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListActiveBySchoolCycle returns every active student in a school cycle.
func (r *StudentRepository) ListActiveBySchoolCycle(ctx context.Context, schoolID, cycleID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE school_id = $1 AND cycle_id = $2 AND active = true ORDER BY full_name`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, schoolID, cycleID); err != nil {
		return nil, fmt.Errorf("list students by school cycle: %w", err)
	}
	return students, nil
}

// ListActiveByGroups returns active students whose group is in the given set.
func (r *StudentRepository) ListActiveByGroups(ctx context.Context, schoolID, cycleID string, groupIDs []string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE school_id = $1 AND cycle_id = $2 AND active = true AND group_id = ANY($3) ORDER BY full_name`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, schoolID, cycleID, pq.Array(groupIDs)); err != nil {
		return nil, fmt.Errorf("list students by groups: %w", err)
	}
	return students, nil
}

// ListActiveByIDs returns the subset of the given students still active in
// the school cycle. Inactive or relocated students silently drop out.
func (r *StudentRepository) ListActiveByIDs(ctx context.Context, schoolID, cycleID string, ids []string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE school_id = $1 AND cycle_id = $2 AND active = true AND id = ANY($3) ORDER BY full_name`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, schoolID, cycleID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students by ids: %w", err)
	}
	return students, nil
}

// AdjustBalance applies a relative balance change. The delta form keeps
// concurrent writers commutative instead of racing a read-modify-write.
// Callers pass the surrounding transaction so the adjustment commits with the
// record that caused it.
func (r *StudentRepository) AdjustBalance(ctx context.Context, ext sqlx.ExtContext, studentID string, delta decimal.Decimal) error {
	const query = `UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, query, studentID, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	return nil
}

// AdjustCredit applies a relative credit change within the caller's
// transaction.
func (r *StudentRepository) AdjustCredit(ctx context.Context, ext sqlx.ExtContext, studentID string, delta decimal.Decimal) error {
	const query = `UPDATE students SET credit = credit + $2, updated_at = $3 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, query, studentID, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("adjust credit: %w", err)
	}
	return nil
}
