package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type studentProjection struct {
	StudentID       string          `db:"id"`
	Balance         decimal.Decimal `db:"balance"`
	Credit          decimal.Decimal `db:"credit"`
	ExpectedBalance decimal.Decimal `db:"expected_balance"`
	ExpectedCredit  decimal.Decimal `db:"expected_credit"`
}

type recordProjection struct {
	RecordID    string          `db:"id"`
	StudentID   string          `db:"student_id"`
	Status      string          `db:"status"`
	Amount      decimal.Decimal `db:"amount"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Paid        decimal.Decimal `db:"paid"`
}

type drift struct {
	Kind     string
	Subject  string
	Stored   string
	Expected string
}

func main() {
	var (
		dsn     string
		timeout time.Duration
	)

	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall query timeout")
	flag.Parse()

	if dsn == "" {
		log.Fatal("no DSN given: pass -dsn or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close()

	var drifts []drift

	studentDrifts, err := auditStudents(ctx, db)
	if err != nil {
		log.Fatalf("student audit failed: %v", err)
	}
	drifts = append(drifts, studentDrifts...)

	recordDrifts, err := auditRecords(ctx, db)
	if err != nil {
		log.Fatalf("record audit failed: %v", err)
	}
	drifts = append(drifts, recordDrifts...)

	printReport(drifts)
	if len(drifts) > 0 {
		os.Exit(1)
	}
}

// auditStudents rebuilds each student's balance and credit from the ledger
// entry log and compares them against the stored scalar projections.
func auditStudents(ctx context.Context, db *sqlx.DB) ([]drift, error) {
	const query = `SELECT s.id, s.balance, s.credit,
            COALESCE(-SUM(l.amount) FILTER (WHERE l.direction = 'debit'), 0) AS expected_balance,
            COALESCE(SUM(l.amount) FILTER (WHERE l.direction = 'credit'), 0) AS expected_credit
        FROM students s
        LEFT JOIN ledger_entries l ON l.student_id = s.id
        GROUP BY s.id, s.balance, s.credit`

	var projections []studentProjection
	if err := db.SelectContext(ctx, &projections, query); err != nil {
		return nil, err
	}

	var drifts []drift
	for _, p := range projections {
		if !p.Balance.Equal(p.ExpectedBalance) {
			drifts = append(drifts, drift{
				Kind:     "balance",
				Subject:  "student " + p.StudentID,
				Stored:   p.Balance.String(),
				Expected: p.ExpectedBalance.String(),
			})
		}
		if !p.Credit.Equal(p.ExpectedCredit) {
			drifts = append(drifts, drift{
				Kind:     "credit",
				Subject:  "student " + p.StudentID,
				Stored:   p.Credit.String(),
				Expected: p.ExpectedCredit.String(),
			})
		}
	}
	return drifts, nil
}

// auditRecords recomputes each billing record's remaining amount from its
// settled payments. The remaining amount never goes below zero and a
// completed record has nothing left to pay.
func auditRecords(ctx context.Context, db *sqlx.DB) ([]drift, error) {
	const query = `SELECT r.id, r.student_id, r.status, r.amount, r.total_amount,
            COALESCE(SUM(p.amount), 0) AS paid
        FROM billing_records r
        LEFT JOIN payments p ON p.billing_record_id = r.id
        GROUP BY r.id, r.student_id, r.status, r.amount, r.total_amount`

	var projections []recordProjection
	if err := db.SelectContext(ctx, &projections, query); err != nil {
		return nil, err
	}

	var drifts []drift
	for _, p := range projections {
		expected := p.Amount.Sub(p.Paid)
		if expected.IsNegative() {
			expected = decimal.Zero
		}
		if !p.TotalAmount.Equal(expected) {
			drifts = append(drifts, drift{
				Kind:     "remaining",
				Subject:  fmt.Sprintf("record %s (student %s)", p.RecordID, p.StudentID),
				Stored:   p.TotalAmount.String(),
				Expected: expected.String(),
			})
			continue
		}
		if p.Status == "completed" && !p.TotalAmount.IsZero() {
			drifts = append(drifts, drift{
				Kind:     "status",
				Subject:  fmt.Sprintf("record %s (student %s)", p.RecordID, p.StudentID),
				Stored:   "completed with remaining " + p.TotalAmount.String(),
				Expected: "completed with remaining 0",
			})
		}
	}
	return drifts, nil
}

func printReport(drifts []drift) {
	fmt.Println("Ledger Audit Report")
	fmt.Println("===================")
	if len(drifts) == 0 {
		fmt.Println("All projections match the ledger.")
		return
	}
	for _, d := range drifts {
		fmt.Printf("[DRIFT] %s: %s\n", d.Kind, d.Subject)
		fmt.Printf("  Stored: %s | Expected: %s\n", d.Stored, d.Expected)
	}
	fmt.Printf("Drifts found: %d\n", len(drifts))
}
