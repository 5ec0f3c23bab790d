package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const billingConfigColumns = `id, school_id, cycle_id, name, amount, scope, target_group_ids, target_grades, target_student_ids,
        status, recurrence, start_date, end_date, rule_description, created_by, created_at, updated_at`

// BillingConfigRepository manages persistence for billing policies.
type BillingConfigRepository struct {
	db *sqlx.DB
}

// NewBillingConfigRepository constructs a BillingConfigRepository.
func NewBillingConfigRepository(db *sqlx.DB) *BillingConfigRepository {
	return &BillingConfigRepository{db: db}
}

// FindByID fetches a policy by ID.
func (r *BillingConfigRepository) FindByID(ctx context.Context, id string) (*models.BillingConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_configs WHERE id = $1`, billingConfigColumns)
	var cfg models.BillingConfig
	if err := r.db.GetContext(ctx, &cfg, query, id); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// List returns policies matching the provided filters.
func (r *BillingConfigRepository) List(ctx context.Context, filter models.BillingConfigFilter) ([]models.BillingConfig, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.CycleID != "" {
		conditions = append(conditions, fmt.Sprintf("cycle_id = $%d", len(args)+1))
		args = append(args, filter.CycleID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Scope != nil {
		conditions = append(conditions, fmt.Sprintf("scope = $%d", len(args)+1))
		args = append(args, *filter.Scope)
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM billing_configs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		billingConfigColumns, where, size, offset)

	var configs []models.BillingConfig
	if err := r.db.SelectContext(ctx, &configs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list billing configs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM billing_configs WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count billing configs: %w", err)
	}
	return configs, total, nil
}

// ListExpiredActive returns non-inactive policies whose end date has passed.
// The background sweeper uses this to find sweep candidates.
func (r *BillingConfigRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]models.BillingConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_configs WHERE status <> $1 AND end_date IS NOT NULL AND end_date < $2`, billingConfigColumns)
	var configs []models.BillingConfig
	if err := r.db.SelectContext(ctx, &configs, query, models.BillingStatusInactive, now); err != nil {
		return nil, fmt.Errorf("list expired billing configs: %w", err)
	}
	return configs, nil
}

// Create inserts a new policy.
func (r *BillingConfigRepository) Create(ctx context.Context, cfg *models.BillingConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	const query = `INSERT INTO billing_configs (id, school_id, cycle_id, name, amount, scope, target_group_ids, target_grades, target_student_ids,
        status, recurrence, start_date, end_date, rule_description, created_by, created_at, updated_at)
        VALUES (:id, :school_id, :cycle_id, :name, :amount, :scope, :target_group_ids, :target_grades, :target_student_ids,
        :status, :recurrence, :start_date, :end_date, :rule_description, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("create billing config: %w", err)
	}
	return nil
}

// Update modifies an existing policy.
func (r *BillingConfigRepository) Update(ctx context.Context, cfg *models.BillingConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE billing_configs SET name = :name, amount = :amount, scope = :scope, target_group_ids = :target_group_ids,
        target_grades = :target_grades, target_student_ids = :target_student_ids, status = :status, recurrence = :recurrence,
        start_date = :start_date, end_date = :end_date, rule_description = :rule_description, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("update billing config: %w", err)
	}
	return nil
}

// SetStatus changes only the policy status.
func (r *BillingConfigRepository) SetStatus(ctx context.Context, id string, status models.BillingStatus) error {
	const query = `UPDATE billing_configs SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set billing config status: %w", err)
	}
	return nil
}
