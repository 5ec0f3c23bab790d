package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type settlementStore interface {
	ApplyPayment(ctx context.Context, payment *models.Payment, compute func(record *models.BillingRecord) (models.SettlementChange, error)) (*models.BillingRecord, models.SettlementChange, error)
}

type settlementPaymentReader interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByIntentRef(ctx context.Context, ref string) (*models.Payment, error)
	UpdateInvoice(ctx context.Context, id string, status models.InvoiceStatus, invoiceRef *string) error
}

type settlementRecordReader interface {
	FindByID(ctx context.Context, id string) (*models.BillingRecord, error)
}

type settlementMetrics interface {
	RecordPaymentSettled()
}

// SettlementService applies external payment events against obligations. The
// processor delivers events at least once, so every entry point is keyed on
// the payment-intent reference: a replay returns the recorded outcome without
// touching any arithmetic.
type SettlementService struct {
	store     settlementStore
	payments  settlementPaymentReader
	records   settlementRecordReader
	cache     *CacheService
	metrics   settlementMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettlementService constructs a SettlementService.
func NewSettlementService(store settlementStore, payments settlementPaymentReader, records settlementRecordReader, cache *CacheService, metrics settlementMetrics, validate *validator.Validate, logger *zap.Logger) *SettlementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{store: store, payments: payments, records: records, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Settle applies one payment event. The record update, the payment insert and
// any credit grant commit in a single transaction or not at all.
func (s *SettlementService) Settle(ctx context.Context, req dto.SettleRequest, createdBy string) (*dto.SettleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settlement payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "payment amount must be positive")
	}

	if existing, err := s.payments.FindByIntentRef(ctx, req.PaymentIntentRef); err == nil {
		return s.replayedResult(ctx, existing)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payment intent")
	}

	payment := &models.Payment{
		BillingRecordID:  req.BillingRecordID,
		StudentID:        req.StudentID,
		Amount:           req.Amount,
		Method:           req.Method,
		PaymentIntentRef: req.PaymentIntentRef,
		ChargeRef:        req.ChargeRef,
		TransferRef:      req.TransferRef,
		CreatedBy:        createdBy,
	}

	_, change, err := s.store.ApplyPayment(ctx, payment, func(record *models.BillingRecord) (models.SettlementChange, error) {
		if record.StudentID != req.StudentID {
			return models.SettlementChange{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "billing record does not belong to student")
		}
		return computeSettlement(record.TotalAmount, req.Amount, time.Now().UTC()), nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race against a concurrent delivery of the same
			// intent; the unique index kept the arithmetic single-shot.
			existing, ferr := s.payments.FindByIntentRef(ctx, req.PaymentIntentRef)
			if ferr != nil {
				return nil, appErrors.Wrap(ferr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replayed payment")
			}
			return s.replayedResult(ctx, existing)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing record not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply payment")
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentSettled()
	}
	s.invalidateReports(ctx, payment)

	s.logger.Info("payment settled",
		zap.String("payment_id", payment.ID),
		zap.String("billing_record_id", payment.BillingRecordID),
		zap.String("status", string(change.Status)))

	return &dto.SettleResult{
		PaymentID:     payment.ID,
		RecordStatus:  change.Status,
		Remaining:     change.NewTotal,
		CreditGranted: change.Credit,
	}, nil
}

// AttachInvoice annotates a settled payment with the invoice reference issued
// by the external invoicing service.
func (s *SettlementService) AttachInvoice(ctx context.Context, paymentID string, req dto.AttachInvoiceRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if err := s.payments.UpdateInvoice(ctx, payment.ID, models.InvoiceIssued, &req.InvoiceRef); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach invoice")
	}
	payment.InvoiceStatus = models.InvoiceIssued
	payment.InvoiceRef = &req.InvoiceRef
	return payment, nil
}

// GetPayment returns a payment by ID.
func (s *SettlementService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

func (s *SettlementService) replayedResult(ctx context.Context, payment *models.Payment) (*dto.SettleResult, error) {
	record, err := s.records.FindByID(ctx, payment.BillingRecordID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing record for replay")
	}
	return &dto.SettleResult{
		PaymentID:     payment.ID,
		RecordStatus:  record.Status,
		Remaining:     record.TotalAmount,
		CreditGranted: decimal.Zero,
		Replayed:      true,
	}, nil
}

func (s *SettlementService) invalidateReports(ctx context.Context, payment *models.Payment) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, "reports:statement:"+payment.StudentID)
	_ = s.cache.Invalidate(ctx, "reports:policy:*")
}

// computeSettlement derives the effect of applying amount against the
// record's remaining total. The stored remainder is clamped at zero; a
// negative remainder becomes student credit instead.
func computeSettlement(total, amount decimal.Decimal, now time.Time) models.SettlementChange {
	newTotal := total.Sub(amount)
	switch {
	case newTotal.IsZero():
		return models.SettlementChange{
			NewTotal: decimal.Zero,
			Status:   models.RecordStatusCompleted,
			PaidAt:   &now,
			Credit:   decimal.Zero,
		}
	case newTotal.IsNegative():
		return models.SettlementChange{
			NewTotal: decimal.Zero,
			Status:   models.RecordStatusCompleted,
			PaidAt:   &now,
			Credit:   newTotal.Abs(),
		}
	default:
		return models.SettlementChange{
			NewTotal: newTotal,
			Status:   models.RecordStatusPartial,
			Credit:   decimal.Zero,
		}
	}
}
