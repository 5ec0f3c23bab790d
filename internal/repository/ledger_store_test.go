package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func TestCreateObligationDebitsRequired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewLedgerStore(db, NewBillingRecordRepository(db), NewPaymentRepository(db), NewStudentRepository(db), NewLedgerRepository(db))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO billing_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE students SET balance = balance").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &models.BillingRecord{
		BillingConfigID: "cfg-1",
		StudentID:       "stu-1",
		Amount:          decimal.NewFromInt(2500),
		TotalAmount:     decimal.NewFromInt(2500),
		Status:          models.RecordStatusPending,
	}
	created, err := store.CreateObligation(context.Background(), record, true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateObligationOptionalSkipsDebit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewLedgerStore(db, NewBillingRecordRepository(db), NewPaymentRepository(db), NewStudentRepository(db), NewLedgerRepository(db))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO billing_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &models.BillingRecord{
		BillingConfigID: "cfg-1",
		StudentID:       "stu-1",
		Amount:          decimal.NewFromInt(500),
		TotalAmount:     decimal.NewFromInt(500),
		Status:          models.RecordStatusPending,
	}
	created, err := store.CreateObligation(context.Background(), record, false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateObligationExistingIsNoOp(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewLedgerStore(db, NewBillingRecordRepository(db), NewPaymentRepository(db), NewStudentRepository(db), NewLedgerRepository(db))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO billing_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	record := &models.BillingRecord{
		BillingConfigID: "cfg-1",
		StudentID:       "stu-1",
		Amount:          decimal.NewFromInt(2500),
		TotalAmount:     decimal.NewFromInt(2500),
		Status:          models.RecordStatusPending,
	}
	created, err := store.CreateObligation(context.Background(), record, true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func billingRecordRows(total string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "billing_config_id", "student_id", "amount", "total_amount", "status", "paid_at", "created_at", "updated_at"}).
		AddRow("rec-1", "cfg-1", "stu-1", "2500", total, string(models.RecordStatusPending), nil, now, now)
}

func TestApplyPaymentPartial(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewLedgerStore(db, NewBillingRecordRepository(db), NewPaymentRepository(db), NewStudentRepository(db), NewLedgerRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM billing_records WHERE id = \\$1 FOR UPDATE").
		WithArgs("rec-1").
		WillReturnRows(billingRecordRows("2500"))
	mock.ExpectExec("UPDATE billing_records SET total_amount").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.Payment{
		BillingRecordID:  "rec-1",
		StudentID:        "stu-1",
		Amount:           decimal.NewFromInt(1000),
		Method:           models.MethodTransfer,
		PaymentIntentRef: "pi_1",
	}
	record, change, err := store.ApplyPayment(context.Background(), payment, func(record *models.BillingRecord) (models.SettlementChange, error) {
		return models.SettlementChange{
			NewTotal: record.TotalAmount.Sub(payment.Amount),
			Status:   models.RecordStatusPartial,
			Credit:   decimal.Zero,
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusPartial, record.Status)
	assert.True(t, change.NewTotal.Equal(decimal.NewFromInt(1500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPaymentOverpayGrantsCredit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewLedgerStore(db, NewBillingRecordRepository(db), NewPaymentRepository(db), NewStudentRepository(db), NewLedgerRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM billing_records WHERE id = \\$1 FOR UPDATE").
		WithArgs("rec-1").
		WillReturnRows(billingRecordRows("1500"))
	mock.ExpectExec("UPDATE billing_records SET total_amount").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE students SET credit = credit").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	payment := &models.Payment{
		BillingRecordID:  "rec-1",
		StudentID:        "stu-1",
		Amount:           decimal.NewFromInt(2000),
		Method:           models.MethodCard,
		PaymentIntentRef: "pi_2",
	}
	record, change, err := store.ApplyPayment(context.Background(), payment, func(record *models.BillingRecord) (models.SettlementChange, error) {
		return models.SettlementChange{
			NewTotal: decimal.Zero,
			Status:   models.RecordStatusCompleted,
			PaidAt:   &now,
			Credit:   decimal.NewFromInt(500),
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusCompleted, record.Status)
	assert.True(t, record.TotalAmount.IsZero())
	assert.True(t, change.Credit.Equal(decimal.NewFromInt(500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPaymentDuplicateIntentRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewLedgerStore(db, NewBillingRecordRepository(db), NewPaymentRepository(db), NewStudentRepository(db), NewLedgerRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM billing_records WHERE id = \\$1 FOR UPDATE").
		WithArgs("rec-1").
		WillReturnRows(billingRecordRows("2500"))
	mock.ExpectExec("UPDATE billing_records SET total_amount").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	payment := &models.Payment{
		BillingRecordID:  "rec-1",
		StudentID:        "stu-1",
		Amount:           decimal.NewFromInt(1000),
		Method:           models.MethodCash,
		PaymentIntentRef: "pi_replay",
	}
	_, _, err := store.ApplyPayment(context.Background(), payment, func(record *models.BillingRecord) (models.SettlementChange, error) {
		return models.SettlementChange{
			NewTotal: record.TotalAmount.Sub(payment.Amount),
			Status:   models.RecordStatusPartial,
			Credit:   decimal.Zero,
		}, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}
