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

type mockConfigRepo struct {
	items      map[string]*models.BillingConfig
	statusSets map[string]models.BillingStatus
}

func (m *mockConfigRepo) FindByID(ctx context.Context, id string) (*models.BillingConfig, error) {
	if cfg, ok := m.items[id]; ok {
		cp := *cfg
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConfigRepo) List(ctx context.Context, filter models.BillingConfigFilter) ([]models.BillingConfig, int, error) {
	var out []models.BillingConfig
	for _, cfg := range m.items {
		out = append(out, *cfg)
	}
	return out, len(out), nil
}

func (m *mockConfigRepo) Create(ctx context.Context, cfg *models.BillingConfig) error {
	if m.items == nil {
		m.items = make(map[string]*models.BillingConfig)
	}
	if cfg.ID == "" {
		cfg.ID = "generated"
	}
	cp := *cfg
	m.items[cfg.ID] = &cp
	return nil
}

func (m *mockConfigRepo) Update(ctx context.Context, cfg *models.BillingConfig) error {
	cp := *cfg
	m.items[cfg.ID] = &cp
	return nil
}

func (m *mockConfigRepo) SetStatus(ctx context.Context, id string, status models.BillingStatus) error {
	if m.statusSets == nil {
		m.statusSets = make(map[string]models.BillingStatus)
	}
	m.statusSets[id] = status
	if cfg, ok := m.items[id]; ok {
		cfg.Status = status
	}
	return nil
}

func timeMustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}

func validCreateReq() dto.CreateBillingConfigRequest {
	return dto.CreateBillingConfigRequest{
		SchoolID:   "sch-1",
		CycleID:    "cyc-1",
		Name:       "Term Fee",
		Amount:     decimal.NewFromInt(2500),
		Scope:      models.ScopeAllStudents,
		Status:     models.BillingStatusRequired,
		Recurrence: models.RecurrenceTermly,
	}
}

func TestBillingConfigCreateValid(t *testing.T) {
	repo := &mockConfigRepo{}
	svc := NewBillingConfigService(repo, validator.New(), zap.NewNop())

	cfg, err := svc.Create(context.Background(), validCreateReq(), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "Term Fee", cfg.Name)
	assert.Equal(t, "usr-1", cfg.CreatedBy)
	assert.Len(t, repo.items, 1)
}

func TestBillingConfigCreateRejectsMismatchedScope(t *testing.T) {
	svc := NewBillingConfigService(&mockConfigRepo{}, validator.New(), zap.NewNop())

	req := validCreateReq()
	req.Scope = models.ScopeSpecificGroups // no target groups given
	_, err := svc.Create(context.Background(), req, "usr-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidScope.Code, appErr.Code)
}

func TestBillingConfigCreateRejectsNonPositiveAmount(t *testing.T) {
	svc := NewBillingConfigService(&mockConfigRepo{}, validator.New(), zap.NewNop())

	req := validCreateReq()
	req.Amount = decimal.NewFromInt(-10)
	_, err := svc.Create(context.Background(), req, "usr-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidAmount.Code, appErr.Code)
}

func TestBillingConfigCreateRejectsInvertedDates(t *testing.T) {
	svc := NewBillingConfigService(&mockConfigRepo{}, validator.New(), zap.NewNop())

	req := validCreateReq()
	start := timeMustParse(t, "2026-09-01")
	end := timeMustParse(t, "2026-08-01")
	req.StartDate = &start
	req.EndDate = &end
	_, err := svc.Create(context.Background(), req, "usr-1")
	require.Error(t, err)
}

func TestBillingConfigUpdateRevalidatesScope(t *testing.T) {
	repo := &mockConfigRepo{}
	svc := NewBillingConfigService(repo, validator.New(), zap.NewNop())

	created, err := svc.Create(context.Background(), validCreateReq(), "usr-1")
	require.NoError(t, err)

	update := dto.UpdateBillingConfigRequest{
		Name:       "Term Fee",
		Amount:     decimal.NewFromInt(2500),
		Scope:      models.ScopeSpecificStudents, // no target students
		Status:     models.BillingStatusRequired,
		Recurrence: models.RecurrenceTermly,
	}
	_, err = svc.Update(context.Background(), created.ID, update)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidScope.Code, appErr.Code)
}

func TestBillingConfigDeactivate(t *testing.T) {
	repo := &mockConfigRepo{}
	svc := NewBillingConfigService(repo, validator.New(), zap.NewNop())

	created, err := svc.Create(context.Background(), validCreateReq(), "usr-1")
	require.NoError(t, err)

	err = svc.Deactivate(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusInactive, repo.statusSets[created.ID])
}

func TestBillingConfigDeactivateMissing(t *testing.T) {
	svc := NewBillingConfigService(&mockConfigRepo{}, validator.New(), zap.NewNop())

	err := svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
