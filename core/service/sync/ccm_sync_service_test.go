package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
	"ccm_server/pkg/apperr"
)

func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func headerRow() []any {
	header := make([]any, 35)
	for i := range header {
		header[i] = fmt.Sprintf("col%d", i)
	}
	return header
}

func bodyRow(id int, name string) []any {
	row := make([]any, 35)
	for i := range row {
		row[i] = ""
	}
	row[colID] = fmt.Sprintf("%d", id)
	row[colBranch] = "14"
	row[colName] = name
	row[colArrival] = "10/1/2025"
	row[colEndowed] = "VERDADERO"
	return row
}

func sheetWithIDs(t *testing.T, ids ...int) []byte {
	rows := [][]any{headerRow()}
	for _, id := range ids {
		rows = append(rows, bodyRow(id, fmt.Sprintf("Elder %d", id)))
	}
	return workbookBytes(t, rows)
}

type fakeDrive struct {
	files         []out.DriveFile
	contents      map[string][]byte
	failDownloads map[string]int
	downloads     map[string]int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		contents:      make(map[string][]byte),
		failDownloads: make(map[string]int),
		downloads:     make(map[string]int),
	}
}

func (f *fakeDrive) addFile(id, name string, data []byte) {
	f.files = append(f.files, out.DriveFile{ID: id, Name: name, Size: int64(len(data))})
	f.contents[id] = data
}

func (f *fakeDrive) EnsureFolder(_ context.Context, _, _ string) (string, error) { return "", nil }

func (f *fakeDrive) Upload(_ context.Context, _, _ string, _ []byte, _ string) (*domain.UploadedFile, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDrive) ListFolderFiles(_ context.Context, _ string) ([]out.DriveFile, error) {
	files := make([]out.DriveFile, len(f.files))
	copy(files, f.files)
	return files, nil
}

func (f *fakeDrive) Download(_ context.Context, fileID string) ([]byte, error) {
	f.downloads[fileID]++
	if f.failDownloads[fileID] > 0 {
		f.failDownloads[fileID]--
		return nil, errors.New("connection reset")
	}
	return f.contents[fileID], nil
}

type fakeRepo struct {
	existing map[int64]bool
	batches  []int
	failNext bool
}

func newFakeRepo() *fakeRepo { return &fakeRepo{existing: make(map[int64]bool)} }

func (r *fakeRepo) InsertNewBatch(_ context.Context, records []*domain.MissionaryRecord) (int, int, error) {
	if r.failNext {
		r.failNext = false
		return 0, 0, apperr.DBInsertFailed(errors.New("lock timeout"))
	}
	r.batches = append(r.batches, len(records))
	inserted, skipped := 0, 0
	for _, record := range records {
		if r.existing[record.ID] {
			skipped++
			continue
		}
		r.existing[record.ID] = true
		inserted++
	}
	return inserted, skipped, nil
}

func (r *fakeRepo) Ping(_ context.Context) error { return nil }

type fakeStateStore struct {
	states map[string]*domain.SyncState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*domain.SyncState)}
}

func (s *fakeStateStore) Load(_ context.Context, generationDate string) (*domain.SyncState, error) {
	state, ok := s.states[generationDate]
	if !ok {
		return nil, nil
	}
	clone := *state
	return &clone, nil
}

func (s *fakeStateStore) Save(_ context.Context, state *domain.SyncState) error {
	clone := *state
	s.states[state.GenerationDate] = &clone
	return nil
}

func (s *fakeStateStore) Delete(_ context.Context, generationDate string) error {
	delete(s.states, generationDate)
	return nil
}

type fakeBus struct {
	events []any
}

func (b *fakeBus) Publish(_ context.Context, _ string, payload any) {
	b.events = append(b.events, payload)
}

func TestSyncGenerationHappyPath(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("f1", "generacion.xlsx", sheetWithIDs(t, 1, 2, 3))
	repo := newFakeRepo()
	store := newFakeStateStore()
	bus := &fakeBus{}
	s := NewService(drive, repo, store, bus, 14)

	report, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if err != nil {
		t.Fatalf("SyncGeneration: %v", err)
	}
	if report.Inserted != 3 || report.Skipped != 0 {
		t.Errorf("inserted=%d skipped=%d, want 3/0", report.Inserted, report.Skipped)
	}
	if !report.Completed || !report.Continuation.IsZero() {
		t.Errorf("report not completed: %+v", report)
	}
	if _, ok := store.states["20250110"]; ok {
		t.Error("state must be deleted on completion")
	}
	if len(bus.events) != 1 {
		t.Fatalf("events = %d, want 1", len(bus.events))
	}
	event, ok := bus.events[0].(domain.DatasetInvalidated)
	if !ok || event.GenerationDate != "20250110" || event.BranchID != 14 {
		t.Errorf("unexpected event %+v", bus.events[0])
	}
}

func TestSyncGenerationBatches(t *testing.T) {
	ids := make([]int, 123)
	for i := range ids {
		ids[i] = i + 1
	}
	drive := newFakeDrive()
	drive.addFile("f1", "generacion.xlsx", sheetWithIDs(t, ids...))
	repo := newFakeRepo()
	s := NewService(drive, repo, newFakeStateStore(), &fakeBus{}, 14)

	report, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if err != nil {
		t.Fatalf("SyncGeneration: %v", err)
	}
	if report.Inserted != 123 {
		t.Errorf("inserted = %d, want 123", report.Inserted)
	}
	want := []int{50, 50, 23}
	if len(repo.batches) != len(want) {
		t.Fatalf("batches = %v, want %v", repo.batches, want)
	}
	for i := range want {
		if repo.batches[i] != want[i] {
			t.Errorf("batches = %v, want %v", repo.batches, want)
		}
	}
}

func TestSyncGenerationDeduplicates(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("f1", "a.xlsx", sheetWithIDs(t, 1, 2, 2)) // duplicate inside the file
	drive.addFile("f2", "b.xlsx", sheetWithIDs(t, 2, 3))    // and across files
	repo := newFakeRepo()
	repo.existing[3] = true // already in the store
	s := NewService(drive, repo, newFakeStateStore(), &fakeBus{}, 14)

	report, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if err != nil {
		t.Fatalf("SyncGeneration: %v", err)
	}
	if report.Inserted != 2 {
		t.Errorf("inserted = %d, want 2 (ids 1 and 2)", report.Inserted)
	}
	if report.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", report.Skipped)
	}
}

func TestSyncGenerationResumesAfterFailure(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("f1", "a.xlsx", sheetWithIDs(t, 1, 2))
	drive.addFile("f2", "b.xlsx", sheetWithIDs(t, 3, 4))
	drive.failDownloads["f2"] = 1
	repo := newFakeRepo()
	store := newFakeStateStore()
	bus := &fakeBus{}
	s := NewService(drive, repo, store, bus, 14)

	first, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Completed {
		t.Fatal("first run should be interrupted")
	}
	if first.Continuation.FileID != "f2" {
		t.Errorf("continuation = %q, want f2", first.Continuation.FileID)
	}
	if first.Inserted != 2 {
		t.Errorf("first inserted = %d, want 2", first.Inserted)
	}
	if len(bus.events) != 0 {
		t.Error("no event until the generation completes")
	}

	second, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Completed {
		t.Fatalf("second run should complete: %+v", second)
	}
	if second.Inserted != 2 {
		t.Errorf("second inserted = %d, want 2 (only f2 rows)", second.Inserted)
	}
	if drive.downloads["f1"] != 1 {
		t.Errorf("f1 downloaded %d times, want 1", drive.downloads["f1"])
	}
	if len(bus.events) != 1 {
		t.Errorf("events = %d, want 1", len(bus.events))
	}
}

func TestSyncGenerationResumesWhenCheckpointFileGone(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("f1", "a.xlsx", sheetWithIDs(t, 1, 2))
	drive.addFile("f2", "b.xlsx", sheetWithIDs(t, 3, 4))
	repo := newFakeRepo()
	store := newFakeStateStore()
	store.states["20250110"] = &domain.SyncState{
		GenerationDate: "20250110",
		FolderID:       "folder-1",
		Continuation:   domain.ContinuationToken{FileID: "gone"},
	}
	s := NewService(drive, repo, store, &fakeBus{}, 14)

	report, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if err != nil {
		t.Fatalf("SyncGeneration: %v", err)
	}
	if !report.Completed {
		t.Fatalf("run should complete: %+v", report)
	}
	if report.Inserted != 4 {
		t.Errorf("inserted = %d, want 4 (stale continuation must not skip files)", report.Inserted)
	}
	if drive.downloads["f1"] != 1 || drive.downloads["f2"] != 1 {
		t.Errorf("downloads = %v, want both files processed", drive.downloads)
	}
}

func TestSyncGenerationInsertFailurePersistsContinuation(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("f1", "a.xlsx", sheetWithIDs(t, 1, 2))
	repo := newFakeRepo()
	repo.failNext = true
	store := newFakeStateStore()
	s := NewService(drive, repo, store, &fakeBus{}, 14)

	report, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if err != nil {
		t.Fatalf("SyncGeneration: %v", err)
	}
	if report.Completed {
		t.Fatal("insert failure must interrupt the run")
	}
	if report.ProcessedFiles[0].Error != "db_insert_failed" {
		t.Errorf("file error = %q", report.ProcessedFiles[0].Error)
	}
	state := store.states["20250110"]
	if state == nil || state.Continuation.FileID != "f1" {
		t.Errorf("persisted state = %+v", state)
	}
}

func TestSyncGenerationMutualExclusion(t *testing.T) {
	s := NewService(newFakeDrive(), newFakeRepo(), newFakeStateStore(), &fakeBus{}, 14)
	s.active["20250110"] = true

	_, err := s.SyncGeneration(context.Background(), "20250110", "folder-1", false)
	if apperr.CodeOf(err) != apperr.CodeSyncInProgress {
		t.Errorf("error code = %q, want sync_in_progress", apperr.CodeOf(err))
	}
}

func TestSyncGenerationRejectsBadDate(t *testing.T) {
	s := NewService(newFakeDrive(), newFakeRepo(), newFakeStateStore(), &fakeBus{}, 14)
	if _, err := s.SyncGeneration(context.Background(), "2025-01-10", "folder-1", false); err == nil {
		t.Error("dashed date must be rejected")
	}
	if _, err := s.SyncGeneration(context.Background(), "20250110", "", false); err == nil {
		t.Error("empty folder must be rejected")
	}
}

func TestMapRows(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	rows := [][]string{
		{"7", "14A", "E", "14", "Distrito 14A", "mexico", "3", "1", "", "Elder Perez", "Elder Gomez",
			"Mexico Norte", "Estaca 1", "Casa 2", "foto.jpg", "10/1/2025", "2025-02-20", "10/1/2025",
			"sin comentarios", "VERDADERO", "3/7/2001", "si", "x", "F123", "FM1", "", "C1", "", "lunes",
			"1", "", "no", "a@b.mx", "c@d.mx", "18/3/2025"},
		{},
		{"", "", "", "", "", "", "", "", "", "Elder Sin ID"},
		{"8"},
		{"9", "", "", "", "", "", "", "", "", "Elder Lopez", "", "", "", "", "", "fecha_invalida"},
	}

	records, issues := MapRows(rows, now)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	first := records[0]
	if first.ID != 7 || first.Branch != 14 || first.Name != "Elder Perez" {
		t.Errorf("unexpected record %+v", first)
	}
	if first.Arrival != "2025-01-10" || first.Departure != "2025-02-20" || first.BirthDate != "2001-07-03" {
		t.Errorf("dates = %q %q %q", first.Arrival, first.Departure, first.BirthDate)
	}
	if !first.Endowed || !first.PhotoTaken || !first.Passport {
		t.Error("truthy tokens must coerce to true")
	}
	if first.Device {
		t.Error("\"no\" must coerce to false")
	}
	if first.ListNumber == nil || *first.ListNumber != 3 {
		t.Errorf("list number = %v", first.ListNumber)
	}
	if !first.Active || !first.CreatedAt.Equal(now) {
		t.Errorf("service-filled fields wrong: active=%t created=%v", first.Active, first.CreatedAt)
	}
	if first.InPersonDate != "2025-03-18" {
		t.Errorf("in-person date = %q", first.InPersonDate)
	}
	if first.Treatment != "" {
		t.Errorf("treatment must stay absent, got %q", first.Treatment)
	}

	wantIssues := map[string]bool{
		"row_empty:1":              true,
		"id_missing:2":             true,
		"name_missing:3":           true,
		"date_invalid:arrival:4":   true,
		"name_missing:4":           false, // row 4 has a name
	}
	got := make(map[string]bool)
	for _, issue := range issues {
		got[fmt.Sprintf("%s:%d", issue.Code, issue.Row)] = true
	}
	for key, want := range wantIssues {
		if got[key] != want {
			t.Errorf("issue %s presence = %t, want %t (all: %v)", key, got[key], want, issues)
		}
	}
}

func TestMapRowsRejectsNonPositiveIDs(t *testing.T) {
	rows := [][]string{
		{"0", "", "", "", "", "", "", "", "", "Elder Cero"},
		{"-3", "", "", "", "", "", "", "", "", "Elder Negativo"},
		{"5", "", "", "", "", "", "", "", "", "Elder Valido"},
	}
	records, issues := MapRows(rows, time.Now())
	if len(records) != 1 || records[0].ID != 5 {
		t.Fatalf("records = %+v, want only id 5", records)
	}
	missing := 0
	for _, issue := range issues {
		if issue.Code == "id_missing" {
			missing++
		}
	}
	if missing != 2 {
		t.Errorf("id_missing issues = %d, want 2", missing)
	}
}

func TestIsSpreadsheetName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"generacion.xlsx", true},
		{"GENERACION.XLSX", true},
		{"viejo.xls", true},
		{"macro.xlsm", true},
		{"lista.pdf", false},
		{"notas.txt", false},
	}
	for _, tt := range tests {
		if got := IsSpreadsheetName(tt.name); got != tt.want {
			t.Errorf("IsSpreadsheetName(%q) = %t", tt.name, got)
		}
	}
}
