package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"ccm_server/core/domain"
	"ccm_server/pkg/apperr"
)

func newMockAdapter(t *testing.T) (*MissionaryAdapter, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewMissionaryAdapter(sqlx.NewDb(mockDB, "pgx")), mock
}

func record(id int64) *domain.MissionaryRecord {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	return &domain.MissionaryRecord{
		ID:        id,
		Branch:    14,
		District:  "District 10A",
		Name:      "Smith, John",
		Arrival:   "2025-01-10",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertNewBatchSkipsExisting(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM ccm_generaciones WHERE id IN").
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec("INSERT INTO ccm_generaciones").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ccm_generaciones").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, skipped, err := adapter.InsertNewBatch(context.Background(),
		[]*domain.MissionaryRecord{record(1), record(2), record(3)})
	if err != nil {
		t.Fatalf("InsertNewBatch: %v", err)
	}
	if inserted != 2 || skipped != 1 {
		t.Fatalf("inserted=%d skipped=%d, want 2/1", inserted, skipped)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertNewBatchEmpty(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	inserted, skipped, err := adapter.InsertNewBatch(context.Background(), nil)
	if err != nil || inserted != 0 || skipped != 0 {
		t.Fatalf("got %d/%d/%v, want 0/0/nil", inserted, skipped, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertNewBatchRollsBackOnFailure(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM ccm_generaciones WHERE id IN").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO ccm_generaciones").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, _, err := adapter.InsertNewBatch(context.Background(), []*domain.MissionaryRecord{record(1)})
	if apperr.CodeOf(err) != apperr.CodeDBInsertFailed {
		t.Fatalf("code = %q, want %q", apperr.CodeOf(err), apperr.CodeDBInsertFailed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
