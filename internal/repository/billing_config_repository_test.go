package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func billingConfigColumnsList() []string {
	return []string{"id", "school_id", "cycle_id", "name", "amount", "scope", "target_group_ids", "target_grades", "target_student_ids",
		"status", "recurrence", "start_date", "end_date", "rule_description", "created_by", "created_at", "updated_at"}
}

func TestBillingConfigFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingConfigRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(billingConfigColumnsList()).
		AddRow("cfg-1", "sch-1", "cyc-1", "Term Fee", "2500", string(models.ScopeAllStudents),
			pq.StringArray(nil), pq.StringArray(nil), pq.StringArray(nil),
			string(models.BillingStatusRequired), string(models.RecurrenceTermly), now, now, "", "usr-1", now, now)
	mock.ExpectQuery("SELECT (.+) FROM billing_configs WHERE id").
		WithArgs("cfg-1").
		WillReturnRows(rows)

	cfg, err := repo.FindByID(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, "Term Fee", cfg.Name)
	assert.Equal(t, models.ScopeAllStudents, cfg.Scope)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingConfigListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingConfigRepository(db)

	now := time.Now()
	status := models.BillingStatusRequired
	rows := sqlmock.NewRows(billingConfigColumnsList()).
		AddRow("cfg-1", "sch-1", "cyc-1", "Term Fee", "2500", string(models.ScopeAllStudents),
			pq.StringArray(nil), pq.StringArray(nil), pq.StringArray(nil),
			string(status), string(models.RecurrenceTermly), now, now, "", "usr-1", now, now)
	mock.ExpectQuery("SELECT (.+) FROM billing_configs WHERE 1=1 AND school_id").
		WithArgs("sch-1", string(status)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM billing_configs WHERE 1=1")).
		WithArgs("sch-1", string(status)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	configs, total, err := repo.List(context.Background(), models.BillingConfigFilter{SchoolID: "sch-1", Status: &status})
	require.NoError(t, err)
	assert.Len(t, configs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingConfigListExpiredActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingConfigRepository(db)

	now := time.Now()
	past := now.Add(-48 * time.Hour)
	rows := sqlmock.NewRows(billingConfigColumnsList()).
		AddRow("cfg-1", "sch-1", "cyc-1", "Old Fee", "2500", string(models.ScopeAllStudents),
			pq.StringArray(nil), pq.StringArray(nil), pq.StringArray(nil),
			string(models.BillingStatusRequired), string(models.RecurrenceOneTime), past, past, "", "usr-1", past, past)
	mock.ExpectQuery("SELECT (.+) FROM billing_configs WHERE status <> \\$1 AND end_date IS NOT NULL").
		WithArgs(string(models.BillingStatusInactive), now).
		WillReturnRows(rows)

	configs, err := repo.ListExpiredActive(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "cfg-1", configs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingConfigCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingConfigRepository(db)

	mock.ExpectExec("INSERT INTO billing_configs").WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := &models.BillingConfig{
		SchoolID:   "sch-1",
		CycleID:    "cyc-1",
		Name:       "Lab Fee",
		Scope:      models.ScopeSpecificGroups,
		Status:     models.BillingStatusOptional,
		Recurrence: models.RecurrenceOneTime,
		CreatedBy:  "usr-1",
	}
	err := repo.Create(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingConfigSetStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingConfigRepository(db)

	mock.ExpectExec("UPDATE billing_configs SET status").
		WithArgs("cfg-1", string(models.BillingStatusInactive), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetStatus(context.Background(), "cfg-1", models.BillingStatusInactive)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
