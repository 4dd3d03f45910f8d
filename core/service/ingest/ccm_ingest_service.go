package ingest

import (
	"context"
	"time"

	"ccm_server/core/domain"
	"ccm_server/core/port/in"
	"ccm_server/core/port/out"
	"ccm_server/core/service/parse"
	"ccm_server/pkg/apperr"
	"ccm_server/pkg/logger"
	"ccm_server/pkg/retry"
)

// defaultRequiredColumns are the table columns every arrival email must carry.
var defaultRequiredColumns = []string{"Distrito", "Total"}

// Service runs the weekly mailbox pass: discover, fetch, parse, validate,
// upload, mark. Per-message failures are collected into the run report and
// never abort the cycle.
type Service struct {
	mail            out.MailGateway
	drive           out.DriveStore
	subjectPattern  string
	parentFolderID  string
	requiredColumns []string
	retryPolicy     retry.Policy
}

var _ in.IngestService = (*Service)(nil)

func NewService(mail out.MailGateway, drive out.DriveStore, subjectPattern, parentFolderID string, requiredColumns []string, policy retry.Policy) *Service {
	if len(requiredColumns) == 0 {
		requiredColumns = defaultRequiredColumns
	}
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	return &Service{
		mail:            mail,
		drive:           drive,
		subjectPattern:  subjectPattern,
		parentFolderID:  parentFolderID,
		requiredColumns: requiredColumns,
		retryPolicy:     policy,
	}
}

func (s *Service) ProcessIncoming(ctx context.Context) (*domain.ProcessRun, error) {
	start := time.Now()

	refs, err := s.mail.ListUnprocessed(ctx, s.subjectPattern)
	if err != nil {
		return nil, apperr.MailFetchFailed(err)
	}

	run := &domain.ProcessRun{
		Success:   true,
		StartTime: start,
		Details:   make([]domain.ProcessingResult, 0, len(refs)),
	}

	if len(refs) == 0 {
		logger.Info("[IngestService.ProcessIncoming] no new messages")
		run.EndTime = time.Now()
		run.DurationSeconds = run.EndTime.Sub(start).Seconds()
		return run, nil
	}

	logger.Info("[IngestService.ProcessIncoming] processing %d messages via %s", len(refs), s.mail.Name())

	for _, ref := range refs {
		result := s.processOne(ctx, ref)
		run.Details = append(run.Details, *result)
		if result.Success {
			run.Processed++
		} else {
			run.Errors++
		}
	}

	run.EndTime = time.Now()
	run.DurationSeconds = run.EndTime.Sub(start).Seconds()

	logger.Info("[IngestService.ProcessIncoming] done: processed=%d errors=%d duration=%.2fs",
		run.Processed, run.Errors, run.DurationSeconds)
	return run, nil
}

func (s *Service) SearchMessages(ctx context.Context, query string) ([]*domain.EmailMessage, error) {
	messages, err := s.mail.Search(ctx, query)
	if err != nil {
		return nil, apperr.MailFetchFailed(err)
	}
	return messages, nil
}

func (s *Service) processOne(ctx context.Context, ref out.MessageRef) *domain.ProcessingResult {
	var msg *domain.EmailMessage
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		var fetchErr error
		msg, fetchErr = s.mail.Fetch(ctx, ref)
		return fetchErr
	})
	if err != nil {
		logger.Error("[IngestService] fetch failed for %s: %v", ref.ID, err)
		return &domain.ProcessingResult{
			MessageID:        ref.ID,
			ValidationErrors: []string{apperr.CodeMailFetchFailed},
		}
	}

	return s.processMessage(ctx, ref, msg)
}

func (s *Service) processMessage(ctx context.Context, ref out.MessageRef, msg *domain.EmailMessage) *domain.ProcessingResult {
	table, tableErrors := parse.ExtractPrimaryTable(msg.BodyHTML)
	tableTexts := parse.CollectTableTexts(table)

	generationDate := parse.ExtractGenerationDate(msg.Body, msg.BodyHTML, msg.Subject, tableTexts)
	validationErrors := ValidateStructure(msg.Subject, generationDate, msg.Attachments, s.subjectPattern)

	if table != nil {
		tableErrors = append(tableErrors, parse.ValidateColumns(table, s.requiredColumns)...)
	}

	result := &domain.ProcessingResult{
		MessageID:        ref.ID,
		Subject:          msg.Subject,
		GenerationDate:   generationDate,
		AttachmentsCount: len(msg.Attachments),
		ValidationErrors: validationErrors,
		ParsedTable:      table,
		TableErrors:      tableErrors,
	}

	if len(validationErrors) > 0 {
		logger.Warn("[IngestService] structural validation failed for %s: %v", ref.ID, validationErrors)
		return result
	}

	s.uploadAttachments(ctx, msg, generationDate, table, result)

	// The marker is applied only once attachments are durably stored, so an
	// unmarked message is reprocessed on the next cycle.
	if len(result.UploadErrors) == 0 {
		if err := s.mail.MarkProcessed(ctx, ref); err != nil {
			logger.Error("[IngestService] mark failed for %s: %v", ref.ID, err)
			result.UploadErrors = append(result.UploadErrors, domain.UploadError{
				Stage: "mark",
				Code:  apperr.CodeMailFetchFailed,
			})
		}
	}

	result.Success = len(result.ValidationErrors) == 0 &&
		len(result.TableErrors) == 0 &&
		len(result.UploadErrors) == 0

	if result.Success {
		logger.Info("[IngestService] message %s processed: generation=%s files=%d",
			ref.ID, generationDate, len(result.UploadedFiles))
	}
	return result
}

func (s *Service) uploadAttachments(ctx context.Context, msg *domain.EmailMessage, generationDate string, table *domain.ParsedTable, result *domain.ProcessingResult) {
	var folderID string
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		var folderErr error
		folderID, folderErr = s.drive.EnsureFolder(ctx, s.parentFolderID, generationDate)
		return folderErr
	})
	if err != nil {
		logger.Error("[IngestService] folder for generation %s unavailable: %v", generationDate, err)
		result.UploadErrors = append(result.UploadErrors, domain.UploadError{
			Stage: "ensure_folder",
			Code:  apperr.CodeDriveFolderMissing,
		})
		return
	}
	result.FolderID = folderID

	district := GuessPrimaryDistrict(table)

	for _, att := range msg.Attachments {
		if len(att.Data) == 0 {
			result.UploadErrors = append(result.UploadErrors, domain.UploadError{
				Stage: "upload",
				Code:  apperr.CodeDriveAttachmentWithoutData,
				File:  att.Filename,
			})
			continue
		}

		name := FormatAttachmentName(generationDate, district, att.Filename)
		var uploaded *domain.UploadedFile
		err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
			var uploadErr error
			uploaded, uploadErr = s.drive.Upload(ctx, folderID, name, att.Data, att.ContentType)
			return uploadErr
		})
		if err != nil {
			logger.Error("[IngestService] upload of %s failed: %v", name, err)
			result.UploadErrors = append(result.UploadErrors, domain.UploadError{
				Stage: "upload",
				Code:  apperr.CodeDriveUploadFailed,
				File:  att.Filename,
			})
			continue
		}
		result.UploadedFiles = append(result.UploadedFiles, *uploaded)
	}
}
