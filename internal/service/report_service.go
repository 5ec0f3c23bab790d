package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/export"
)

type reportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type reportRecordReader interface {
	ListOpenByStudent(ctx context.Context, studentID string) ([]models.BillingRecordDetail, error)
	CountByStatus(ctx context.Context, configID string) ([]repository.StatusCount, error)
	SumCollection(ctx context.Context, configID string) (*repository.CollectionTotals, error)
}

type reportPolicyReader interface {
	FindByID(ctx context.Context, id string) (*models.BillingConfig, error)
}

type statementExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type csvExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

// ReportService builds the read-only aggregations consumed by dashboards.
// Views are recomputed on read and never mutate ledger state; redis caching
// with TTL keeps repeated dashboard polls cheap.
type ReportService struct {
	students reportStudentReader
	records  reportRecordReader
	policies reportPolicyReader
	cache    *CacheService
	cacheTTL time.Duration
	pdf      statementExporter
	csv      csvExporter
	logger   *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(students reportStudentReader, records reportRecordReader, policies reportPolicyReader, cache *CacheService, cacheTTL time.Duration, pdf statementExporter, csv csvExporter, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{students: students, records: records, policies: policies, cache: cache, cacheTTL: cacheTTL, pdf: pdf, csv: csv, logger: logger}
}

// StudentStatement aggregates a student's outstanding obligations with due
// dates and lateness.
func (s *ReportService) StudentStatement(ctx context.Context, studentID string) (*dto.StudentStatement, error) {
	cacheKey := "reports:statement:" + studentID
	if s.cache != nil {
		var cached dto.StudentStatement
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	details, err := s.records.ListOpenByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load obligations")
	}

	now := time.Now().UTC()
	statement := &dto.StudentStatement{
		StudentID:   student.ID,
		FullName:    student.FullName,
		Balance:     student.Balance,
		Credit:      student.Credit,
		Outstanding: decimal.Zero,
		GeneratedAt: now,
	}
	for _, detail := range details {
		policyDates := &models.BillingConfig{StartDate: detail.PolicyStartDate, EndDate: detail.PolicyEndDate}
		dueDate := detail.DueDate(policyDates)
		statement.Lines = append(statement.Lines, dto.StatementLine{
			BillingRecordID: detail.ID,
			PolicyName:      detail.PolicyName,
			Amount:          detail.Amount,
			Remaining:       detail.TotalAmount,
			Status:          detail.Status,
			DueDate:         dueDate,
			DaysLate:        daysLate(dueDate, now),
		})
		statement.Outstanding = statement.Outstanding.Add(detail.TotalAmount)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, statement, s.cacheTTL)
	}
	return statement, nil
}

// PolicyStats summarizes collection progress for one policy.
func (s *ReportService) PolicyStats(ctx context.Context, configID string) (*dto.PolicyCollectionStats, error) {
	cacheKey := "reports:policy:" + configID
	if s.cache != nil {
		var cached dto.PolicyCollectionStats
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	policy, err := s.policies.FindByID(ctx, configID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing config not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing config")
	}

	counts, err := s.records.CountByStatus(ctx, configID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count records")
	}
	totals, err := s.records.SumCollection(ctx, configID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum collection")
	}

	stats := &dto.PolicyCollectionStats{
		BillingConfigID: policy.ID,
		PolicyName:      policy.Name,
		CountsByStatus:  make(map[models.RecordStatus]int, len(counts)),
		TotalBilled:     totals.Billed,
		TotalCollected:  totals.Collected,
		GeneratedAt:     time.Now().UTC(),
	}
	for _, c := range counts {
		stats.CountsByStatus[c.Status] = c.Count
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, stats, s.cacheTTL)
	}
	return stats, nil
}

// ExportStatement renders a student statement as CSV or PDF bytes.
func (s *ReportService) ExportStatement(ctx context.Context, studentID, format string) ([]byte, string, error) {
	statement, err := s.StudentStatement(ctx, studentID)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"Policy", "Amount", "Remaining", "Status", "Due Date", "Days Late"}
	rows := make([]map[string]string, 0, len(statement.Lines))
	for _, line := range statement.Lines {
		rows = append(rows, map[string]string{
			"Policy":    line.PolicyName,
			"Amount":    line.Amount.String(),
			"Remaining": line.Remaining.String(),
			"Status":    string(line.Status),
			"Due Date":  line.DueDate.Format("2006-01-02"),
			"Days Late": fmt.Sprintf("%d", line.DaysLate),
		})
	}
	data := export.Dataset{Headers: headers, Rows: rows}

	switch format {
	case "csv":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv statement")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(data, "Statement "+statement.FullName)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf statement")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func daysLate(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}
