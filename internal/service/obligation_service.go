package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type obligationPolicyReader interface {
	FindByID(ctx context.Context, id string) (*models.BillingConfig, error)
}

type targetResolver interface {
	Resolve(ctx context.Context, policy *models.BillingConfig) ([]models.Student, error)
}

type obligationStore interface {
	CreateObligation(ctx context.Context, record *models.BillingRecord, debit bool) (bool, error)
}

type obligationMetrics interface {
	RecordObligationsGenerated(n int)
}

// ObligationService materializes billing records from policies. Obligation
// existence and balance effect are decoupled by policy status: every targeted
// student gets at most one record, but only required policies debit the
// balance.
type ObligationService struct {
	policies obligationPolicyReader
	resolver targetResolver
	store    obligationStore
	cache    *CacheService
	metrics  obligationMetrics
	logger   *zap.Logger
}

// NewObligationService constructs an ObligationService.
func NewObligationService(policies obligationPolicyReader, resolver targetResolver, store obligationStore, cache *CacheService, metrics obligationMetrics, logger *zap.Logger) *ObligationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObligationService{policies: policies, resolver: resolver, store: store, cache: cache, metrics: metrics, logger: logger}
}

// Generate materializes obligations for every student the policy targets.
// Safe to re-run: students who already carry a record for the policy are
// skipped without any balance effect, so a rerun only tops up newly-eligible
// students. A missing policy is fatal; an inactive policy is a valid no-op
// with an explanatory result.
func (s *ObligationService) Generate(ctx context.Context, policyID string) (*dto.GenerateResult, error) {
	policy, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing config not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing config")
	}

	result := &dto.GenerateResult{BillingConfigID: policy.ID}

	if policy.Status == models.BillingStatusInactive {
		result.NoOpReason = "billing config is inactive"
		return result, nil
	}

	targets, err := s.resolver.Resolve(ctx, policy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve policy targets")
	}

	debit := policy.Status == models.BillingStatusRequired
	for _, student := range targets {
		record := &models.BillingRecord{
			BillingConfigID: policy.ID,
			StudentID:       student.ID,
			Amount:          policy.Amount,
			TotalAmount:     policy.Amount,
			Status:          models.RecordStatusPending,
		}
		created, err := s.store.CreateObligation(ctx, record, debit)
		if err != nil {
			s.logger.Error("failed to create obligation",
				zap.String("billing_config_id", policy.ID),
				zap.String("student_id", student.ID),
				zap.Error(err))
			result.Skipped = append(result.Skipped, dto.SkippedStudent{StudentID: student.ID, Reason: "write failed"})
			continue
		}
		if !created {
			result.Skipped = append(result.Skipped, dto.SkippedStudent{StudentID: student.ID, Reason: "obligation already exists"})
			continue
		}
		result.Created = append(result.Created, dto.ObligationSummary{
			BillingRecordID: record.ID,
			StudentID:       student.ID,
			Amount:          policy.Amount,
			Debited:         debit,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordObligationsGenerated(len(result.Created))
	}
	if len(result.Created) > 0 {
		s.invalidateReports(ctx, policy.ID)
	}

	s.logger.Info("obligations generated",
		zap.String("billing_config_id", policy.ID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *ObligationService) invalidateReports(ctx context.Context, policyID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, "reports:policy:"+policyID)
	_ = s.cache.Invalidate(ctx, "reports:statement:*")
}
