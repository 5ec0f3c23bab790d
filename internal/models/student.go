package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student represents a learner registered in the institution.
//
// Balance is a signed running total: negative means the student owes money,
// positive means prepaid. Credit accumulates overpayment not yet consumed and
// never goes negative. Balance is debited only by obligation generation and
// credit is granted only by settlement.
type Student struct {
	ID        string          `db:"id" json:"id"`
	NIS       string          `db:"nis" json:"nis"`
	FullName  string          `db:"full_name" json:"full_name"`
	SchoolID  string          `db:"school_id" json:"school_id"`
	CycleID   string          `db:"cycle_id" json:"cycle_id"`
	GroupID   *string         `db:"group_id" json:"group_id,omitempty"`
	Active    bool            `db:"active" json:"active"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Credit    decimal.Decimal `db:"credit" json:"credit"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	SchoolID string
	CycleID  string
	GroupID  string
	Active   *bool
	Page     int
	PageSize int
}
