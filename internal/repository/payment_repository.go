package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const paymentColumns = `id, billing_record_id, student_id, amount, method, payment_intent_ref, charge_ref, transfer_ref,
        invoice_status, invoice_ref, created_by, created_at, updated_at`

// PaymentRepository manages persistence for settlement payments. The table
// carries a unique index on payment_intent_ref so a replayed processor
// webhook cannot insert a second row.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID fetches a payment by ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIntentRef fetches the payment recorded for an external intent
// reference, if any.
func (r *PaymentRepository) FindByIntentRef(ctx context.Context, ref string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE payment_intent_ref = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, ref); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Insert records a payment within the caller's transaction. A unique
// violation on payment_intent_ref surfaces as ErrDuplicate so the caller can
// fall back to the already-recorded result.
func (r *PaymentRepository) Insert(ctx context.Context, ext sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.InvoiceStatus == "" {
		payment.InvoiceStatus = models.InvoicePending
	}
	const query = `INSERT INTO payments (id, billing_record_id, student_id, amount, method, payment_intent_ref, charge_ref, transfer_ref,
        invoice_status, invoice_ref, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := ext.ExecContext(ctx, query,
		payment.ID, payment.BillingRecordID, payment.StudentID, payment.Amount, payment.Method,
		payment.PaymentIntentRef, payment.ChargeRef, payment.TransferRef,
		payment.InvoiceStatus, payment.InvoiceRef, payment.CreatedBy, payment.CreatedAt, payment.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// UpdateInvoice annotates a payment with its external invoice reference.
func (r *PaymentRepository) UpdateInvoice(ctx context.Context, id string, status models.InvoiceStatus, invoiceRef *string) error {
	const query = `UPDATE payments SET invoice_status = $2, invoice_ref = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, invoiceRef, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment invoice: %w", err)
	}
	return nil
}
