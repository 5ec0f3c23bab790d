package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type mockPolicyReader struct {
	policies map[string]*models.BillingConfig
}

func (m *mockPolicyReader) FindByID(ctx context.Context, id string) (*models.BillingConfig, error) {
	if policy, ok := m.policies[id]; ok {
		cp := *policy
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockResolver struct {
	students []models.Student
}

func (m *mockResolver) Resolve(ctx context.Context, policy *models.BillingConfig) ([]models.Student, error) {
	return m.students, nil
}

type mockObligationStore struct {
	existing map[string]bool
	created  []*models.BillingRecord
	debits   []bool
}

func (m *mockObligationStore) CreateObligation(ctx context.Context, record *models.BillingRecord, debit bool) (bool, error) {
	key := record.BillingConfigID + "/" + record.StudentID
	if m.existing[key] {
		return false, nil
	}
	if m.existing == nil {
		m.existing = make(map[string]bool)
	}
	m.existing[key] = true
	record.ID = "rec-" + record.StudentID
	m.created = append(m.created, record)
	m.debits = append(m.debits, debit)
	return true, nil
}

type mockObligationMetrics struct {
	generated int
}

func (m *mockObligationMetrics) RecordObligationsGenerated(n int) { m.generated += n }

func requiredPolicy() *models.BillingConfig {
	return &models.BillingConfig{
		ID:       "cfg-1",
		SchoolID: "sch-1",
		CycleID:  "cyc-1",
		Name:     "Term Fee",
		Amount:   decimal.NewFromInt(2500),
		Scope:    models.ScopeAllStudents,
		Status:   models.BillingStatusRequired,
	}
}

func TestGenerateCreatesAndDebits(t *testing.T) {
	policies := &mockPolicyReader{policies: map[string]*models.BillingConfig{"cfg-1": requiredPolicy()}}
	resolver := &mockResolver{students: []models.Student{{ID: "s1"}, {ID: "s2"}}}
	store := &mockObligationStore{}
	metrics := &mockObligationMetrics{}
	svc := NewObligationService(policies, resolver, store, nil, metrics, zap.NewNop())

	result, err := svc.Generate(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 2, metrics.generated)
	for _, debited := range store.debits {
		assert.True(t, debited)
	}
	for _, summary := range result.Created {
		assert.True(t, summary.Debited)
	}
}

func TestGenerateOptionalPolicyDoesNotDebit(t *testing.T) {
	policy := requiredPolicy()
	policy.Status = models.BillingStatusOptional
	policies := &mockPolicyReader{policies: map[string]*models.BillingConfig{"cfg-1": policy}}
	resolver := &mockResolver{students: []models.Student{{ID: "s1"}}}
	store := &mockObligationStore{}
	svc := NewObligationService(policies, resolver, store, nil, nil, zap.NewNop())

	result, err := svc.Generate(context.Background(), "cfg-1")
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.False(t, result.Created[0].Debited)
	require.Len(t, store.debits, 1)
	assert.False(t, store.debits[0])
}

func TestGenerateIsIdempotent(t *testing.T) {
	policies := &mockPolicyReader{policies: map[string]*models.BillingConfig{"cfg-1": requiredPolicy()}}
	resolver := &mockResolver{students: []models.Student{{ID: "s1"}, {ID: "s2"}}}
	store := &mockObligationStore{}
	svc := NewObligationService(policies, resolver, store, nil, nil, zap.NewNop())

	first, err := svc.Generate(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Len(t, first.Created, 2)

	second, err := svc.Generate(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Len(t, second.Skipped, 2)
	for _, skipped := range second.Skipped {
		assert.Equal(t, "obligation already exists", skipped.Reason)
	}
	// No additional store writes happened on the rerun.
	assert.Len(t, store.created, 2)
}

func TestGenerateRerunTopsUpNewStudents(t *testing.T) {
	policies := &mockPolicyReader{policies: map[string]*models.BillingConfig{"cfg-1": requiredPolicy()}}
	resolver := &mockResolver{students: []models.Student{{ID: "s1"}}}
	store := &mockObligationStore{}
	svc := NewObligationService(policies, resolver, store, nil, nil, zap.NewNop())

	_, err := svc.Generate(context.Background(), "cfg-1")
	require.NoError(t, err)

	resolver.students = []models.Student{{ID: "s1"}, {ID: "s2"}}
	result, err := svc.Generate(context.Background(), "cfg-1")
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "s2", result.Created[0].StudentID)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "s1", result.Skipped[0].StudentID)
}

func TestGenerateInactivePolicyIsNoOp(t *testing.T) {
	policy := requiredPolicy()
	policy.Status = models.BillingStatusInactive
	policies := &mockPolicyReader{policies: map[string]*models.BillingConfig{"cfg-1": policy}}
	store := &mockObligationStore{}
	svc := NewObligationService(policies, &mockResolver{}, store, nil, nil, zap.NewNop())

	result, err := svc.Generate(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.NotEmpty(t, result.NoOpReason)
	assert.Empty(t, store.created)
}

func TestGenerateMissingPolicyFails(t *testing.T) {
	svc := NewObligationService(&mockPolicyReader{}, &mockResolver{}, &mockObligationStore{}, nil, nil, zap.NewNop())

	_, err := svc.Generate(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
