package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerDirection distinguishes the two balance-affecting movements.
type LedgerDirection string

const (
	LedgerDebit  LedgerDirection = "debit"
	LedgerCredit LedgerDirection = "credit"
)

// LedgerSource names the component that produced a ledger entry.
type LedgerSource string

const (
	LedgerSourceObligation LedgerSource = "obligation"
	LedgerSourceSettlement LedgerSource = "settlement"
)

// LedgerEntry is one immutable movement on a student's balance or credit.
// The student scalars are cached projections of this append-only log; every
// scalar adjustment writes its entry in the same transaction so the log can
// always rebuild the projection.
type LedgerEntry struct {
	ID        string          `db:"id" json:"id"`
	StudentID string          `db:"student_id" json:"student_id"`
	Direction LedgerDirection `db:"direction" json:"direction"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Source    LedgerSource    `db:"source" json:"source"`
	SourceID  string          `db:"source_id" json:"source_id"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
