package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// ObligationSummary describes one record created by a generation run.
type ObligationSummary struct {
	BillingRecordID string          `json:"billing_record_id"`
	StudentID       string          `json:"student_id"`
	Amount          decimal.Decimal `json:"amount"`
	Debited         bool            `json:"debited"`
}

// SkippedStudent explains why a targeted student produced no new record.
type SkippedStudent struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// GenerateResult is the per-student outcome report of a generation run.
// NoOpReason is set when the whole run was a valid no-op, e.g. an inactive
// policy.
type GenerateResult struct {
	BillingConfigID string              `json:"billing_config_id"`
	Created         []ObligationSummary `json:"created"`
	Skipped         []SkippedStudent    `json:"skipped"`
	NoOpReason      string              `json:"no_op_reason,omitempty"`
}

// SettleRequest is the payment confirmation event delivered by the external
// processor. Delivery is at-least-once; PaymentIntentRef deduplicates.
type SettleRequest struct {
	PaymentIntentRef string               `json:"payment_intent_ref" validate:"required"`
	BillingRecordID  string               `json:"billing_record_id" validate:"required"`
	StudentID        string               `json:"student_id" validate:"required"`
	Amount           decimal.Decimal      `json:"amount" validate:"required"`
	Method           models.PaymentMethod `json:"method" validate:"required,oneof=card transfer cash"`
	ChargeRef        *string              `json:"charge_ref,omitempty"`
	TransferRef      *string              `json:"transfer_ref,omitempty"`
}

// SettleResult reports the outcome of applying (or replaying) a payment.
type SettleResult struct {
	PaymentID     string              `json:"payment_id"`
	RecordStatus  models.RecordStatus `json:"record_status"`
	Remaining     decimal.Decimal     `json:"remaining"`
	CreditGranted decimal.Decimal     `json:"credit_granted"`
	Replayed      bool                `json:"replayed"`
}

// AttachInvoiceRequest annotates a payment with the external invoice it was
// issued under.
type AttachInvoiceRequest struct {
	InvoiceRef string `json:"invoice_ref" validate:"required"`
}

// SweepResult reports how many pending records were reclassified as overdue.
type SweepResult struct {
	BillingConfigID string    `json:"billing_config_id,omitempty"`
	Updated         int       `json:"updated"`
	SweptAt         time.Time `json:"swept_at"`
}

// CreateBillingConfigRequest is the policy authoring payload.
type CreateBillingConfigRequest struct {
	SchoolID         string                `json:"school_id" validate:"required"`
	CycleID          string                `json:"cycle_id" validate:"required"`
	Name             string                `json:"name" validate:"required"`
	Amount           decimal.Decimal       `json:"amount" validate:"required"`
	Scope            models.BillingScope   `json:"scope" validate:"required,oneof=all_students specific_groups specific_grades specific_students"`
	TargetGroupIDs   []string              `json:"target_group_ids,omitempty"`
	TargetGrades     []string              `json:"target_grades,omitempty"`
	TargetStudentIDs []string              `json:"target_student_ids,omitempty"`
	Status           models.BillingStatus  `json:"status" validate:"required,oneof=required optional inactive"`
	Recurrence       models.RecurrenceType `json:"recurrence" validate:"required,oneof=one_time monthly termly yearly"`
	StartDate        *time.Time            `json:"start_date,omitempty"`
	EndDate          *time.Time            `json:"end_date,omitempty"`
	RuleDescription  string                `json:"rule_description,omitempty"`
}

// UpdateBillingConfigRequest mirrors the create payload for edits.
type UpdateBillingConfigRequest struct {
	Name             string                `json:"name" validate:"required"`
	Amount           decimal.Decimal       `json:"amount" validate:"required"`
	Scope            models.BillingScope   `json:"scope" validate:"required,oneof=all_students specific_groups specific_grades specific_students"`
	TargetGroupIDs   []string              `json:"target_group_ids,omitempty"`
	TargetGrades     []string              `json:"target_grades,omitempty"`
	TargetStudentIDs []string              `json:"target_student_ids,omitempty"`
	Status           models.BillingStatus  `json:"status" validate:"required,oneof=required optional inactive"`
	Recurrence       models.RecurrenceType `json:"recurrence" validate:"required,oneof=one_time monthly termly yearly"`
	StartDate        *time.Time            `json:"start_date,omitempty"`
	EndDate          *time.Time            `json:"end_date,omitempty"`
	RuleDescription  string                `json:"rule_description,omitempty"`
}
