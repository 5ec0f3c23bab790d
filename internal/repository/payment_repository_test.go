package repository

import (
	"context"
	"database/sql"
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

func TestPaymentInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{
		BillingRecordID:  "rec-1",
		StudentID:        "stu-1",
		Amount:           decimal.NewFromInt(1000),
		Method:           models.MethodTransfer,
		PaymentIntentRef: "pi_123",
	}
	err := repo.Insert(context.Background(), db, payment)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, models.InvoicePending, payment.InvoiceStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentInsertDuplicateIntent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").WillReturnError(&pq.Error{Code: "23505"})

	payment := &models.Payment{
		BillingRecordID:  "rec-1",
		StudentID:        "stu-1",
		Amount:           decimal.NewFromInt(1000),
		Method:           models.MethodCard,
		PaymentIntentRef: "pi_123",
	}
	err := repo.Insert(context.Background(), db, payment)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIntentRef(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "billing_record_id", "student_id", "amount", "method", "payment_intent_ref", "charge_ref", "transfer_ref", "invoice_status", "invoice_ref", "created_by", "created_at", "updated_at"}).
		AddRow("pay-1", "rec-1", "stu-1", "1000", string(models.MethodCard), "pi_123", nil, nil, string(models.InvoicePending), nil, "usr-1", now, now)
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE payment_intent_ref").
		WithArgs("pi_123").
		WillReturnRows(rows)

	payment, err := repo.FindByIntentRef(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIntentRefMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE payment_intent_ref").
		WithArgs("pi_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIntentRef(context.Background(), "pi_missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
