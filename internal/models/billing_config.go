package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// BillingScope narrows which students a billing policy targets. The set is
// closed: resolver and validation switch over it exhaustively so a new scope
// cannot be added without touching every branch.
type BillingScope string

const (
	ScopeAllStudents      BillingScope = "all_students"
	ScopeSpecificGroups   BillingScope = "specific_groups"
	ScopeSpecificGrades   BillingScope = "specific_grades"
	ScopeSpecificStudents BillingScope = "specific_students"
)

// BillingStatus is the enforcement strength of a policy. Only required
// policies debit student balances at generation time.
type BillingStatus string

const (
	BillingStatusRequired BillingStatus = "required"
	BillingStatusOptional BillingStatus = "optional"
	BillingStatusInactive BillingStatus = "inactive"
)

// RecurrenceType describes how often a policy is expected to be generated.
type RecurrenceType string

const (
	RecurrenceOneTime RecurrenceType = "one_time"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceTermly  RecurrenceType = "termly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

// BillingConfig is an institutional charge policy: who owes money, how much,
// and under what enforcement strength. Created by administrators; read-only to
// the ledger logic.
type BillingConfig struct {
	ID               string          `db:"id" json:"id"`
	SchoolID         string          `db:"school_id" json:"school_id"`
	CycleID          string          `db:"cycle_id" json:"cycle_id"`
	Name             string          `db:"name" json:"name"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Scope            BillingScope    `db:"scope" json:"scope"`
	TargetGroupIDs   pq.StringArray  `db:"target_group_ids" json:"target_group_ids,omitempty"`
	TargetGrades     pq.StringArray  `db:"target_grades" json:"target_grades,omitempty"`
	TargetStudentIDs pq.StringArray  `db:"target_student_ids" json:"target_student_ids,omitempty"`
	Status           BillingStatus   `db:"status" json:"status"`
	Recurrence       RecurrenceType  `db:"recurrence" json:"recurrence"`
	StartDate        *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate          *time.Time      `db:"end_date" json:"end_date,omitempty"`
	RuleDescription  string          `db:"rule_description" json:"rule_description,omitempty"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ScopeConsistent reports whether the scope and its matching target field
// agree. A policy failing this check resolves to zero targets at generation
// time, so writes reject it up front.
func (c *BillingConfig) ScopeConsistent() bool {
	switch c.Scope {
	case ScopeAllStudents:
		return true
	case ScopeSpecificGroups:
		return len(c.TargetGroupIDs) > 0
	case ScopeSpecificGrades:
		return len(c.TargetGrades) > 0
	case ScopeSpecificStudents:
		return len(c.TargetStudentIDs) > 0
	default:
		return false
	}
}

// Expired reports whether the policy's end date has passed at the given time.
// Policies without an end date never expire.
func (c *BillingConfig) Expired(now time.Time) bool {
	return c.EndDate != nil && now.After(*c.EndDate)
}

// BillingConfigFilter captures list query parameters for policies.
type BillingConfigFilter struct {
	SchoolID string
	CycleID  string
	Status   *BillingStatus
	Scope    *BillingScope
	Page     int
	PageSize int
}
