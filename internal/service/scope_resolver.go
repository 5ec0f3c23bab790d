package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

type scopeStudentReader interface {
	ListActiveBySchoolCycle(ctx context.Context, schoolID, cycleID string) ([]models.Student, error)
	ListActiveByGroups(ctx context.Context, schoolID, cycleID string, groupIDs []string) ([]models.Student, error)
	ListActiveByIDs(ctx context.Context, schoolID, cycleID string, ids []string) ([]models.Student, error)
}

type scopeGroupReader interface {
	ListIDsByGrades(ctx context.Context, schoolID, cycleID string, grades []string) ([]string, error)
}

// ScopeResolver computes the exact set of students a billing policy targets.
// Resolution is read-only and always confined to the policy's school and
// cycle; only active students are ever targeted.
type ScopeResolver struct {
	students scopeStudentReader
	groups   scopeGroupReader
	logger   *zap.Logger
}

// NewScopeResolver constructs a ScopeResolver.
func NewScopeResolver(students scopeStudentReader, groups scopeGroupReader, logger *zap.Logger) *ScopeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeResolver{students: students, groups: groups, logger: logger}
}

// Resolve returns the students targeted by the policy. A policy whose scope
// and target fields disagree resolves to the empty set rather than erroring;
// authoring-time validation keeps such policies from being written, but
// legacy rows may still carry the mismatch.
func (s *ScopeResolver) Resolve(ctx context.Context, policy *models.BillingConfig) ([]models.Student, error) {
	switch policy.Scope {
	case models.ScopeAllStudents:
		return s.students.ListActiveBySchoolCycle(ctx, policy.SchoolID, policy.CycleID)

	case models.ScopeSpecificGroups:
		if len(policy.TargetGroupIDs) == 0 {
			s.logger.Warn("group-scoped policy has no target groups", zap.String("billing_config_id", policy.ID))
			return nil, nil
		}
		return s.students.ListActiveByGroups(ctx, policy.SchoolID, policy.CycleID, policy.TargetGroupIDs)

	case models.ScopeSpecificGrades:
		if len(policy.TargetGrades) == 0 {
			s.logger.Warn("grade-scoped policy has no target grades", zap.String("billing_config_id", policy.ID))
			return nil, nil
		}
		groupIDs, err := s.groups.ListIDsByGrades(ctx, policy.SchoolID, policy.CycleID, policy.TargetGrades)
		if err != nil {
			return nil, err
		}
		if len(groupIDs) == 0 {
			return nil, nil
		}
		return s.students.ListActiveByGroups(ctx, policy.SchoolID, policy.CycleID, groupIDs)

	case models.ScopeSpecificStudents:
		if len(policy.TargetStudentIDs) == 0 {
			s.logger.Warn("student-scoped policy has no target students", zap.String("billing_config_id", policy.ID))
			return nil, nil
		}
		return s.students.ListActiveByIDs(ctx, policy.SchoolID, policy.CycleID, policy.TargetStudentIDs)

	default:
		s.logger.Warn("unknown billing scope", zap.String("billing_config_id", policy.ID), zap.String("scope", string(policy.Scope)))
		return nil, nil
	}
}
