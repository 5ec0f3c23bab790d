package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type sweeperPolicyReader interface {
	FindByID(ctx context.Context, id string) (*models.BillingConfig, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]models.BillingConfig, error)
}

type sweeperRecordWriter interface {
	MarkOverdueByConfig(ctx context.Context, configID string) (int, error)
}

type sweeperMetrics interface {
	RecordRecordsSwept(n int)
}

// SweeperService reclassifies stale pending obligations as overdue once their
// policy's end date has passed. Only pending records are swept; partial
// records keep their status. Sweeping is idempotent: a second run over the
// same policy reports zero updates.
type SweeperService struct {
	policies sweeperPolicyReader
	records  sweeperRecordWriter
	cache    *CacheService
	metrics  sweeperMetrics
	logger   *zap.Logger
}

// NewSweeperService constructs a SweeperService.
func NewSweeperService(policies sweeperPolicyReader, records sweeperRecordWriter, cache *CacheService, metrics sweeperMetrics, logger *zap.Logger) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweeperService{policies: policies, records: records, cache: cache, metrics: metrics, logger: logger}
}

// Sweep runs the overdue transition for one policy. A policy that has not
// expired (or has no end date) is a no-op reporting zero updates.
func (s *SweeperService) Sweep(ctx context.Context, policyID string) (*dto.SweepResult, error) {
	policy, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing config not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing config")
	}

	now := time.Now().UTC()
	result := &dto.SweepResult{BillingConfigID: policy.ID, SweptAt: now}
	if !policy.Expired(now) {
		return result, nil
	}

	updated, err := s.records.MarkOverdueByConfig(ctx, policy.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep billing records")
	}
	result.Updated = updated

	s.afterSweep(ctx, policy.ID, updated)
	return result, nil
}

// SweepExpired runs the overdue transition across every expired policy. The
// background scheduler invokes this on an interval.
func (s *SweeperService) SweepExpired(ctx context.Context) (*dto.SweepResult, error) {
	now := time.Now().UTC()
	policies, err := s.policies.ListExpiredActive(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired billing configs")
	}

	result := &dto.SweepResult{SweptAt: now}
	for _, policy := range policies {
		updated, err := s.records.MarkOverdueByConfig(ctx, policy.ID)
		if err != nil {
			s.logger.Error("sweep failed for policy", zap.String("billing_config_id", policy.ID), zap.Error(err))
			continue
		}
		result.Updated += updated
		s.afterSweep(ctx, policy.ID, updated)
	}
	return result, nil
}

func (s *SweeperService) afterSweep(ctx context.Context, policyID string, updated int) {
	if updated == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordRecordsSwept(updated)
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "reports:policy:"+policyID)
		_ = s.cache.Invalidate(ctx, "reports:statement:*")
	}
	s.logger.Info("records swept to overdue", zap.String("billing_config_id", policyID), zap.Int("updated", updated))
}
