package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// LedgerStore coordinates the multi-row writes the ledger must keep atomic:
// an obligation insert with its balance debit, and a settlement with its
// payment row and credit grant. The backing store only guarantees atomicity
// within one transaction, so each of these is exactly one transaction.
type LedgerStore struct {
	db       *sqlx.DB
	records  *BillingRecordRepository
	payments *PaymentRepository
	students *StudentRepository
	entries  *LedgerRepository
}

// NewLedgerStore constructs a LedgerStore over the shared repositories.
func NewLedgerStore(db *sqlx.DB, records *BillingRecordRepository, payments *PaymentRepository, students *StudentRepository, entries *LedgerRepository) *LedgerStore {
	return &LedgerStore{db: db, records: records, payments: payments, students: students, entries: entries}
}

// CreateObligation inserts the record and, when debit is set, debits the
// student balance and appends the matching ledger entry, all in one
// transaction. It returns false without error when the unique index reports
// the (policy, student) obligation already exists; in that case no balance
// effect happens, which is what keeps concurrent generation runs from
// double-charging.
func (s *LedgerStore) CreateObligation(ctx context.Context, record *models.BillingRecord, debit bool) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin obligation tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	created, err := s.records.InsertIfAbsent(ctx, tx, record)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	if debit {
		if err := s.students.AdjustBalance(ctx, tx, record.StudentID, record.Amount.Neg()); err != nil {
			return false, err
		}
		entry := &models.LedgerEntry{
			StudentID: record.StudentID,
			Direction: models.LedgerDebit,
			Amount:    record.Amount,
			Source:    models.LedgerSourceObligation,
			SourceID:  record.ID,
		}
		if err := s.entries.Append(ctx, tx, entry); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit obligation tx: %w", err)
	}
	return true, nil
}

// ApplyPayment locks the billing record, lets compute derive the settlement
// change from its current state, then persists the record update, the payment
// row, and any credit grant with its ledger entry atomically. A duplicate
// payment_intent_ref rolls everything back and surfaces ErrDuplicate, leaving
// the prior settlement untouched.
func (s *LedgerStore) ApplyPayment(ctx context.Context, payment *models.Payment, compute func(record *models.BillingRecord) (models.SettlementChange, error)) (*models.BillingRecord, models.SettlementChange, error) {
	var change models.SettlementChange

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, change, fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	record, err := s.records.LockByID(ctx, tx, payment.BillingRecordID)
	if err != nil {
		return nil, change, err
	}

	change, err = compute(record)
	if err != nil {
		return nil, change, err
	}

	if err := s.records.ApplySettlement(ctx, tx, record.ID, change.NewTotal, change.Status, change.PaidAt); err != nil {
		return nil, change, err
	}

	if err := s.payments.Insert(ctx, tx, payment); err != nil {
		return nil, change, err
	}

	if change.Credit.IsPositive() {
		if err := s.students.AdjustCredit(ctx, tx, payment.StudentID, change.Credit); err != nil {
			return nil, change, err
		}
		entry := &models.LedgerEntry{
			StudentID: payment.StudentID,
			Direction: models.LedgerCredit,
			Amount:    change.Credit,
			Source:    models.LedgerSourceSettlement,
			SourceID:  payment.ID,
		}
		if err := s.entries.Append(ctx, tx, entry); err != nil {
			return nil, change, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, change, fmt.Errorf("commit settlement tx: %w", err)
	}

	record.TotalAmount = change.NewTotal
	record.Status = change.Status
	record.PaidAt = change.PaidAt
	return record, change, nil
}
