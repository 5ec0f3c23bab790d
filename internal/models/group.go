package models

import "time"

// Group is a class-like roster unit students belong to. Grade is the academic
// level used by grade-scoped billing policies.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Grade     string    `db:"grade" json:"grade"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	CycleID   string    `db:"cycle_id" json:"cycle_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
