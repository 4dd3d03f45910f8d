package sync

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"ccm_server/core/domain"
	"ccm_server/core/port/in"
	"ccm_server/core/port/out"
	"ccm_server/pkg/apperr"
	"ccm_server/pkg/logger"
)

// batchSize is the number of records persisted per transaction.
const batchSize = 50

var generationDatePattern = regexp.MustCompile(`^\d{8}$`)

// Service imports the spreadsheets of a generation folder into the store.
// Progress is checkpointed per file so an interrupted run resumes where it
// stopped, and at most one sync per generation date runs at a time.
type Service struct {
	drive    out.DriveStore
	repo     out.MissionaryRepository
	state    out.SyncStateStore
	bus      out.EventPublisher
	branchID int

	mu     sync.Mutex
	active map[string]bool
}

var _ in.SyncService = (*Service)(nil)

func NewService(drive out.DriveStore, repo out.MissionaryRepository, state out.SyncStateStore, bus out.EventPublisher, branchID int) *Service {
	return &Service{
		drive:    drive,
		repo:     repo,
		state:    state,
		bus:      bus,
		branchID: branchID,
		active:   make(map[string]bool),
	}
}

func (s *Service) SyncGeneration(ctx context.Context, generationDate, folderID string, force bool) (*domain.SyncReport, error) {
	if !generationDatePattern.MatchString(generationDate) {
		return nil, apperr.BadRequest("fecha_generacion must be YYYYMMDD")
	}
	if folderID == "" {
		return nil, apperr.BadRequest("drive_folder_id is required")
	}

	if !s.acquire(generationDate) {
		return nil, apperr.SyncInProgress(generationDate)
	}
	defer s.release(generationDate)

	start := time.Now()
	report := &domain.SyncReport{
		GenerationDate: generationDate,
		FolderID:       folderID,
	}

	logger.Info("[SyncService.SyncGeneration] start generation=%s folder=%s force=%t", generationDate, folderID, force)

	state, err := s.loadState(ctx, generationDate, folderID, force)
	if err != nil {
		return nil, err
	}

	files, err := s.listSpreadsheets(ctx, folderID)
	if err != nil {
		return nil, apperr.DriveListingFailed(folderID, err)
	}

	seen := make(map[int64]bool)
	present := make(map[string]bool, len(files))
	for _, file := range files {
		present[file.ID] = true
	}

	// A checkpoint pointing at a file that was renamed or deleted since the
	// previous run must not skip the rest of the folder; reprocessing is safe
	// because existing ids are skipped on insert.
	skipUntil := state.LastProcessedFileID
	resumeAt := state.Continuation.FileID
	if resumeAt != "" && !present[resumeAt] {
		logger.Warn("[SyncService] continuation file %s no longer listed, restarting folder scan", resumeAt)
		resumeAt = ""
	}
	if skipUntil != "" && !present[skipUntil] {
		logger.Warn("[SyncService] checkpoint file %s no longer listed, restarting folder scan", skipUntil)
		skipUntil = ""
	}
	skipping := skipUntil != "" && resumeAt == ""

	completed := true
	for _, file := range files {
		if resumeAt != "" {
			if file.ID != resumeAt {
				continue
			}
			// Reprocess the file that interrupted the previous run.
			resumeAt = ""
		}
		if skipping {
			if file.ID == skipUntil {
				skipping = false
			}
			continue
		}

		fileReport := s.syncFile(ctx, state, file, seen)
		report.ProcessedFiles = append(report.ProcessedFiles, *fileReport)
		report.Inserted += fileReport.Inserted
		report.Skipped += fileReport.Skipped

		if fileReport.Error != "" {
			report.Continuation = domain.ContinuationToken{FileID: file.ID}
			completed = false
			break
		}
	}

	report.Completed = completed
	report.DurationSeconds = time.Since(start).Seconds()

	if completed {
		if err := s.state.Delete(ctx, generationDate); err != nil {
			logger.Warn("[SyncService] could not delete state for %s: %v", generationDate, err)
		}
		s.bus.Publish(ctx, domain.EventDatasetInvalidated, domain.DatasetInvalidated{
			GenerationDate: generationDate,
			BranchID:       s.branchID,
		})
	}

	logger.Info("[SyncService.SyncGeneration] done generation=%s inserted=%d skipped=%d completed=%t duration=%.2fs",
		generationDate, report.Inserted, report.Skipped, completed, report.DurationSeconds)
	return report, nil
}

// syncFile downloads, parses and persists one workbook. A non-empty Error in
// the returned report means the run must stop with a continuation token.
func (s *Service) syncFile(ctx context.Context, state *domain.SyncState, file out.DriveFile, seen map[int64]bool) *domain.FileReport {
	fileReport := &domain.FileReport{FileID: file.ID, Name: file.Name}

	data, err := s.drive.Download(ctx, file.ID)
	if err != nil {
		logger.Error("[SyncService] download of %s failed: %v", file.ID, err)
		s.saveInterrupted(ctx, state, file.ID)
		fileReport.Error = apperr.CodeDriveDownloadFailed
		return fileReport
	}

	rows, err := ReadWorkbookRows(data)
	if err != nil {
		logger.Error("[SyncService] workbook %s unreadable: %v", file.Name, err)
		s.saveInterrupted(ctx, state, file.ID)
		fileReport.Error = apperr.CodeExcelReadFailed
		return fileReport
	}

	if len(rows) > 1 {
		records, issues := MapRows(rows[1:], time.Now())
		for _, issue := range issues {
			logger.Warn("[SyncService] file=%s row=%d issue=%s", file.Name, issue.Row, issue.Code)
		}

		// Later occurrences of an id within the same run are skipped, never
		// updated.
		fresh := make([]*domain.MissionaryRecord, 0, len(records))
		for _, record := range records {
			if seen[record.ID] {
				fileReport.Skipped++
				continue
			}
			seen[record.ID] = true
			fresh = append(fresh, record)
		}

		for offset := 0; offset < len(fresh); offset += batchSize {
			end := offset + batchSize
			if end > len(fresh) {
				end = len(fresh)
			}
			inserted, skipped, err := s.repo.InsertNewBatch(ctx, fresh[offset:end])
			if err != nil {
				logger.Error("[SyncService] batch insert failed for %s: %v", file.Name, err)
				s.saveInterrupted(ctx, state, file.ID)
				fileReport.Error = apperr.CodeOf(err)
				return fileReport
			}
			fileReport.Inserted += inserted
			fileReport.Skipped += skipped
		}
	}

	state.LastProcessedFileID = file.ID
	state.Continuation = domain.ContinuationToken{}
	state.UpdatedAt = time.Now().UTC()
	if err := s.state.Save(ctx, state); err != nil {
		logger.Warn("[SyncService] could not checkpoint %s: %v", file.ID, err)
	}
	return fileReport
}

func (s *Service) loadState(ctx context.Context, generationDate, folderID string, force bool) (*domain.SyncState, error) {
	if force {
		if err := s.state.Delete(ctx, generationDate); err != nil {
			return nil, apperr.InternalWithError(err)
		}
		return newState(generationDate, folderID), nil
	}

	state, err := s.state.Load(ctx, generationDate)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}
	if state == nil {
		return newState(generationDate, folderID), nil
	}
	state.FolderID = folderID
	return state, nil
}

func (s *Service) listSpreadsheets(ctx context.Context, folderID string) ([]out.DriveFile, error) {
	files, err := s.drive.ListFolderFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	sheets := files[:0]
	for _, file := range files {
		if IsSpreadsheetName(file.Name) {
			sheets = append(sheets, file)
		}
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Name < sheets[j].Name })
	return sheets, nil
}

func (s *Service) saveInterrupted(ctx context.Context, state *domain.SyncState, fileID string) {
	state.Continuation = domain.ContinuationToken{FileID: fileID}
	state.UpdatedAt = time.Now().UTC()
	if err := s.state.Save(ctx, state); err != nil {
		logger.Error("[SyncService] could not persist continuation %s: %v", fileID, err)
	}
}

func (s *Service) acquire(generationDate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[generationDate] {
		return false
	}
	s.active[generationDate] = true
	return true
}

func (s *Service) release(generationDate string) {
	s.mu.Lock()
	delete(s.active, generationDate)
	s.mu.Unlock()
}

func newState(generationDate, folderID string) *domain.SyncState {
	return &domain.SyncState{
		GenerationDate: generationDate,
		FolderID:       folderID,
	}
}
