package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordStatus is the lifecycle state of an obligation.
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusPartial   RecordStatus = "partial"
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusOverdue   RecordStatus = "overdue"
)

// BillingRecord is a single student's materialized debt under one policy.
// The (billing_config_id, student_id) pair is unique: it is the idempotency
// key for obligation generation, enforced by a storage-level unique index.
// Amount is the original charge; TotalAmount is the remaining balance and is
// clamped at zero, never negative.
type BillingRecord struct {
	ID              string          `db:"id" json:"id"`
	BillingConfigID string          `db:"billing_config_id" json:"billing_config_id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status          RecordStatus    `db:"status" json:"status"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// SettlementChange is the persisted effect of applying one payment against a
// record: the clamped remaining amount, the resulting status, the paid
// timestamp when resolved, and any overpayment routed to student credit.
type SettlementChange struct {
	NewTotal decimal.Decimal
	Status   RecordStatus
	PaidAt   *time.Time
	Credit   decimal.Decimal
}

// BillingRecordDetail joins a record with the policy context reporting needs.
type BillingRecordDetail struct {
	BillingRecord
	PolicyName      string     `db:"policy_name" json:"policy_name"`
	PolicyStartDate *time.Time `db:"policy_start_date" json:"policy_start_date,omitempty"`
	PolicyEndDate   *time.Time `db:"policy_end_date" json:"policy_end_date,omitempty"`
}

// Open reports whether the record still carries an outstanding amount.
func (r *BillingRecord) Open() bool {
	return r.Status == RecordStatusPending || r.Status == RecordStatusPartial || r.Status == RecordStatusOverdue
}

// DueDate computes the effective due date of a record under its policy,
// falling back through the policy end date, start date + 30d, and finally the
// record creation time + 30d when configuration dates are absent.
func (r *BillingRecord) DueDate(policy *BillingConfig) time.Time {
	const gracePeriod = 30 * 24 * time.Hour
	if policy != nil {
		if policy.EndDate != nil {
			return *policy.EndDate
		}
		if policy.StartDate != nil {
			return policy.StartDate.Add(gracePeriod)
		}
	}
	return r.CreatedAt.Add(gracePeriod)
}
