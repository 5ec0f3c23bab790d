package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

// mockSettlementStore mimics the transactional store: it applies the computed
// change to its in-memory record and rejects duplicate intent refs the way the
// unique index would.
type mockSettlementStore struct {
	records  map[string]*models.BillingRecord
	payments map[string]*models.Payment
	applied  int
}

func (m *mockSettlementStore) ApplyPayment(ctx context.Context, payment *models.Payment, compute func(record *models.BillingRecord) (models.SettlementChange, error)) (*models.BillingRecord, models.SettlementChange, error) {
	record, ok := m.records[payment.BillingRecordID]
	if !ok {
		return nil, models.SettlementChange{}, sql.ErrNoRows
	}
	change, err := compute(record)
	if err != nil {
		return nil, change, err
	}
	record.TotalAmount = change.NewTotal
	record.Status = change.Status
	record.PaidAt = change.PaidAt
	payment.ID = "pay-" + payment.PaymentIntentRef
	if m.payments == nil {
		m.payments = make(map[string]*models.Payment)
	}
	m.payments[payment.PaymentIntentRef] = payment
	m.applied++
	return record, change, nil
}

func (m *mockSettlementStore) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	for _, p := range m.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSettlementStore) FindByIntentRef(ctx context.Context, ref string) (*models.Payment, error) {
	if p, ok := m.payments[ref]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSettlementStore) UpdateInvoice(ctx context.Context, id string, status models.InvoiceStatus, invoiceRef *string) error {
	for _, p := range m.payments {
		if p.ID == id {
			p.InvoiceStatus = status
			p.InvoiceRef = invoiceRef
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockRecordReader struct {
	records map[string]*models.BillingRecord
}

func (m *mockRecordReader) FindByID(ctx context.Context, id string) (*models.BillingRecord, error) {
	if record, ok := m.records[id]; ok {
		cp := *record
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockSettlementMetrics struct {
	settled int
}

func (m *mockSettlementMetrics) RecordPaymentSettled() { m.settled++ }

func newSettlementFixture() (*mockSettlementStore, *SettlementService, *mockSettlementMetrics) {
	records := map[string]*models.BillingRecord{
		"rec-1": {
			ID:              "rec-1",
			BillingConfigID: "cfg-1",
			StudentID:       "stu-1",
			Amount:          decimal.NewFromInt(2500),
			TotalAmount:     decimal.NewFromInt(2500),
			Status:          models.RecordStatusPending,
		},
	}
	store := &mockSettlementStore{records: records}
	metrics := &mockSettlementMetrics{}
	svc := NewSettlementService(store, store, &mockRecordReader{records: records}, nil, metrics, validator.New(), zap.NewNop())
	return store, svc, metrics
}

func settleReq(ref string, amount int64) dto.SettleRequest {
	return dto.SettleRequest{
		PaymentIntentRef: ref,
		BillingRecordID:  "rec-1",
		StudentID:        "stu-1",
		Amount:           decimal.NewFromInt(amount),
		Method:           models.MethodTransfer,
	}
}

func TestSettlePartialPayment(t *testing.T) {
	_, svc, metrics := newSettlementFixture()

	result, err := svc.Settle(context.Background(), settleReq("pi_1", 1000), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusPartial, result.RecordStatus)
	assert.True(t, result.Remaining.Equal(decimal.NewFromInt(1500)))
	assert.True(t, result.CreditGranted.IsZero())
	assert.False(t, result.Replayed)
	assert.Equal(t, 1, metrics.settled)
}

func TestSettleExactCompletes(t *testing.T) {
	store, svc, _ := newSettlementFixture()

	result, err := svc.Settle(context.Background(), settleReq("pi_1", 2500), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusCompleted, result.RecordStatus)
	assert.True(t, result.Remaining.IsZero())
	assert.True(t, result.CreditGranted.IsZero())
	assert.NotNil(t, store.records["rec-1"].PaidAt)
}

func TestSettleOverpayGrantsCredit(t *testing.T) {
	store, svc, _ := newSettlementFixture()

	_, err := svc.Settle(context.Background(), settleReq("pi_1", 1000), "usr-1")
	require.NoError(t, err)

	result, err := svc.Settle(context.Background(), settleReq("pi_2", 2000), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusCompleted, result.RecordStatus)
	assert.True(t, result.Remaining.IsZero())
	assert.True(t, result.CreditGranted.Equal(decimal.NewFromInt(500)))
	// The remaining amount is clamped, never negative.
	assert.True(t, store.records["rec-1"].TotalAmount.IsZero())
}

func TestSettleReplayedIntentIsNoOp(t *testing.T) {
	store, svc, metrics := newSettlementFixture()

	first, err := svc.Settle(context.Background(), settleReq("pi_1", 1000), "usr-1")
	require.NoError(t, err)

	replay, err := svc.Settle(context.Background(), settleReq("pi_1", 1000), "usr-1")
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.PaymentID, replay.PaymentID)
	assert.True(t, replay.Remaining.Equal(decimal.NewFromInt(1500)))
	// Arithmetic ran exactly once.
	assert.Equal(t, 1, store.applied)
	assert.Equal(t, 1, metrics.settled)
}

func TestSettleRejectsNonPositiveAmount(t *testing.T) {
	_, svc, _ := newSettlementFixture()

	_, err := svc.Settle(context.Background(), settleReq("pi_1", 0), "usr-1")
	require.Error(t, err)

	_, err = svc.Settle(context.Background(), settleReq("pi_2", -100), "usr-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidAmount.Code, appErr.Code)
}

func TestSettleWrongStudentFails(t *testing.T) {
	_, svc, _ := newSettlementFixture()

	req := settleReq("pi_1", 1000)
	req.StudentID = "stu-other"
	_, err := svc.Settle(context.Background(), req, "usr-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestSettleMissingRecordFails(t *testing.T) {
	_, svc, _ := newSettlementFixture()

	req := settleReq("pi_1", 1000)
	req.BillingRecordID = "rec-missing"
	_, err := svc.Settle(context.Background(), req, "usr-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttachInvoice(t *testing.T) {
	_, svc, _ := newSettlementFixture()

	result, err := svc.Settle(context.Background(), settleReq("pi_1", 1000), "usr-1")
	require.NoError(t, err)

	payment, err := svc.AttachInvoice(context.Background(), result.PaymentID, dto.AttachInvoiceRequest{InvoiceRef: "inv-42"})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceIssued, payment.InvoiceStatus)
	require.NotNil(t, payment.InvoiceRef)
	assert.Equal(t, "inv-42", *payment.InvoiceRef)
}

func TestComputeSettlement(t *testing.T) {
	now := time.Now().UTC()

	partial := computeSettlement(decimal.NewFromInt(2500), decimal.NewFromInt(1000), now)
	assert.Equal(t, models.RecordStatusPartial, partial.Status)
	assert.True(t, partial.NewTotal.Equal(decimal.NewFromInt(1500)))
	assert.Nil(t, partial.PaidAt)

	exact := computeSettlement(decimal.NewFromInt(1500), decimal.NewFromInt(1500), now)
	assert.Equal(t, models.RecordStatusCompleted, exact.Status)
	assert.True(t, exact.NewTotal.IsZero())
	assert.NotNil(t, exact.PaidAt)
	assert.True(t, exact.Credit.IsZero())

	over := computeSettlement(decimal.NewFromInt(1500), decimal.NewFromInt(2000), now)
	assert.Equal(t, models.RecordStatusCompleted, over.Status)
	assert.True(t, over.NewTotal.IsZero())
	assert.True(t, over.Credit.Equal(decimal.NewFromInt(500)))
}
