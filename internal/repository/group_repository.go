package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// GroupRepository reads roster groups. The ledger never mutates them.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID fetches a group by ID.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, grade, school_id, cycle_id, created_at, updated_at FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListIDsByGrades returns the ids of groups in a school cycle whose grade is
// in the given set.
func (r *GroupRepository) ListIDsByGrades(ctx context.Context, schoolID, cycleID string, grades []string) ([]string, error) {
	const query = `SELECT id FROM groups WHERE school_id = $1 AND cycle_id = $2 AND grade = ANY($3)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, schoolID, cycleID, pq.Array(grades)); err != nil {
		return nil, fmt.Errorf("list group ids by grades: %w", err)
	}
	return ids, nil
}
