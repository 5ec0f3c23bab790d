package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// StatementLine is one open obligation on a student statement.
type StatementLine struct {
	BillingRecordID string              `json:"billing_record_id"`
	PolicyName      string              `json:"policy_name"`
	Amount          decimal.Decimal     `json:"amount"`
	Remaining       decimal.Decimal     `json:"remaining"`
	Status          models.RecordStatus `json:"status"`
	DueDate         time.Time           `json:"due_date"`
	DaysLate        int                 `json:"days_late"`
}

// StudentStatement aggregates a student's outstanding position.
type StudentStatement struct {
	StudentID   string          `json:"student_id"`
	FullName    string          `json:"full_name"`
	Balance     decimal.Decimal `json:"balance"`
	Credit      decimal.Decimal `json:"credit"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Lines       []StatementLine `json:"lines"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// PolicyCollectionStats summarizes collection progress for one policy.
type PolicyCollectionStats struct {
	BillingConfigID string                      `json:"billing_config_id"`
	PolicyName      string                      `json:"policy_name"`
	CountsByStatus  map[models.RecordStatus]int `json:"counts_by_status"`
	TotalBilled     decimal.Decimal             `json:"total_billed"`
	TotalCollected  decimal.Decimal             `json:"total_collected"`
	GeneratedAt     time.Time                   `json:"generated_at"`
}
