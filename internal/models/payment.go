package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod labels how a payment was collected.
type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
	MethodCash     PaymentMethod = "cash"
)

// InvoiceStatus tracks the external invoicing annotation on a payment.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoiceIssued  InvoiceStatus = "issued"
)

// Payment records one application of money against a billing record. Exactly
// one payment exists per external payment-intent reference; the unique index
// on payment_intent_ref makes replayed processor webhooks idempotent. A
// payment is immutable after creation except for invoice annotations.
type Payment struct {
	ID               string          `db:"id" json:"id"`
	BillingRecordID  string          `db:"billing_record_id" json:"billing_record_id"`
	StudentID        string          `db:"student_id" json:"student_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Method           PaymentMethod   `db:"method" json:"method"`
	PaymentIntentRef string          `db:"payment_intent_ref" json:"payment_intent_ref"`
	ChargeRef        *string         `db:"charge_ref" json:"charge_ref,omitempty"`
	TransferRef      *string         `db:"transfer_ref" json:"transfer_ref,omitempty"`
	InvoiceStatus    InvoiceStatus   `db:"invoice_status" json:"invoice_status"`
	InvoiceRef       *string         `db:"invoice_ref" json:"invoice_ref,omitempty"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
