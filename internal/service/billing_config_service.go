package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type billingConfigRepository interface {
	FindByID(ctx context.Context, id string) (*models.BillingConfig, error)
	List(ctx context.Context, filter models.BillingConfigFilter) ([]models.BillingConfig, int, error)
	Create(ctx context.Context, cfg *models.BillingConfig) error
	Update(ctx context.Context, cfg *models.BillingConfig) error
	SetStatus(ctx context.Context, id string, status models.BillingStatus) error
}

// BillingConfigService owns the policy store's write surface. Scope and
// target consistency is checked here, at authoring time, so a misconfigured
// policy that would silently resolve to zero obligations never gets written.
type BillingConfigService struct {
	repo      billingConfigRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBillingConfigService constructs a BillingConfigService.
func NewBillingConfigService(repo billingConfigRepository, validate *validator.Validate, logger *zap.Logger) *BillingConfigService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingConfigService{repo: repo, validator: validate, logger: logger}
}

// List returns policies with pagination metadata.
func (s *BillingConfigService) List(ctx context.Context, filter models.BillingConfigFilter) ([]models.BillingConfig, *models.Pagination, error) {
	configs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list billing configs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return configs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one policy.
func (s *BillingConfigService) Get(ctx context.Context, id string) (*models.BillingConfig, error) {
	cfg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing config not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing config")
	}
	return cfg, nil
}

// Create validates and persists a new policy.
func (s *BillingConfigService) Create(ctx context.Context, req dto.CreateBillingConfigRequest, createdBy string) (*models.BillingConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid billing config payload")
	}

	cfg := &models.BillingConfig{
		SchoolID:         req.SchoolID,
		CycleID:          req.CycleID,
		Name:             req.Name,
		Amount:           req.Amount,
		Scope:            req.Scope,
		TargetGroupIDs:   pq.StringArray(req.TargetGroupIDs),
		TargetGrades:     pq.StringArray(req.TargetGrades),
		TargetStudentIDs: pq.StringArray(req.TargetStudentIDs),
		Status:           req.Status,
		Recurrence:       req.Recurrence,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		RuleDescription:  req.RuleDescription,
		CreatedBy:        createdBy,
	}
	if err := s.checkPolicy(cfg); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create billing config")
	}
	s.logger.Info("billing config created", zap.String("billing_config_id", cfg.ID), zap.String("scope", string(cfg.Scope)))
	return cfg, nil
}

// Update validates and persists edits to an existing policy.
func (s *BillingConfigService) Update(ctx context.Context, id string, req dto.UpdateBillingConfigRequest) (*models.BillingConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid billing config payload")
	}
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg.Name = req.Name
	cfg.Amount = req.Amount
	cfg.Scope = req.Scope
	cfg.TargetGroupIDs = pq.StringArray(req.TargetGroupIDs)
	cfg.TargetGrades = pq.StringArray(req.TargetGrades)
	cfg.TargetStudentIDs = pq.StringArray(req.TargetStudentIDs)
	cfg.Status = req.Status
	cfg.Recurrence = req.Recurrence
	cfg.StartDate = req.StartDate
	cfg.EndDate = req.EndDate
	cfg.RuleDescription = req.RuleDescription

	if err := s.checkPolicy(cfg); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update billing config")
	}
	return cfg, nil
}

// Deactivate retires a policy. Obligation generation treats it as a no-op
// afterwards; existing records keep settling normally.
func (s *BillingConfigService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, models.BillingStatusInactive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate billing config")
	}
	return nil
}

func (s *BillingConfigService) checkPolicy(cfg *models.BillingConfig) error {
	if !cfg.Amount.IsPositive() {
		return appErrors.Clone(appErrors.ErrInvalidAmount, "billing amount must be positive")
	}
	if !cfg.ScopeConsistent() {
		return appErrors.Clone(appErrors.ErrInvalidScope, "scope does not match its target set")
	}
	if cfg.StartDate != nil && cfg.EndDate != nil && cfg.EndDate.Before(*cfg.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	return nil
}
