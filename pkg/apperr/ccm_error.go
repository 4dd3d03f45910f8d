package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. The lowercase codes travel in per-message outcomes and sync
// reports; the uppercase codes are generic HTTP-surface errors.
const (
	// Structural validation
	CodeSubjectPatternMismatch = "subject_pattern_mismatch"
	CodeAttachmentsMissing     = "attachments_missing"
	CodePDFAttachmentMissing   = "pdf_attachment_missing"
	CodeFechaGeneracionMissing = "fecha_generacion_missing"
	CodeHTMLMissing            = "html_missing"

	// Mail transport
	CodeMailFetchFailed = "mail_fetch_failed"

	// Upload
	CodeDriveFolderMissing         = "drive_folder_missing"
	CodeDriveUploadFailed          = "drive_upload_failed"
	CodeDriveAttachmentWithoutData = "drive_attachment_without_data"

	// Sync transport
	CodeDriveListingFailed  = "drive_listing_failed"
	CodeDriveDownloadFailed = "drive_download_failed"

	// Sync data
	CodeExcelReadFailed    = "excel_read_failed"
	CodeDBConnectionFailed = "db_connection_failed"
	CodeDBInsertFailed     = "db_insert_failed"

	// Runtime
	CodeSubscriberFailed = "subscriber_failed"
	CodeSyncInProgress   = "sync_in_progress"

	// Reports
	CodeInvalidBranch = "invalid_branch"

	// Generic
	CodeBadRequest    = "BAD_REQUEST"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
	CodeTimeout       = "TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Validation errors
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func InvalidBranch(branchID int) *AppError {
	return &AppError{
		Code:    CodeInvalidBranch,
		Message: fmt.Sprintf("branch %d is not in the allowed set", branchID),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"branch_id": branchID},
	}
}

// Mail errors
func MailFetchFailed(err error) *AppError {
	return &AppError{
		Code:    CodeMailFetchFailed,
		Message: "failed to fetch message from mailbox",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// Upload errors
func DriveFolderMissing(name string) *AppError {
	return &AppError{
		Code:    CodeDriveFolderMissing,
		Message: fmt.Sprintf("drive folder %q could not be resolved", name),
		Status:  http.StatusBadGateway,
	}
}

func DriveUploadFailed(name string, err error) *AppError {
	return &AppError{
		Code:    CodeDriveUploadFailed,
		Message: fmt.Sprintf("failed to upload %q", name),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"file": name},
		Err:     err,
	}
}

func DriveAttachmentWithoutData(name string) *AppError {
	return &AppError{
		Code:    CodeDriveAttachmentWithoutData,
		Message: fmt.Sprintf("attachment %q carries no data", name),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"file": name},
	}
}

// Sync errors
func DriveListingFailed(folderID string, err error) *AppError {
	return &AppError{
		Code:    CodeDriveListingFailed,
		Message: fmt.Sprintf("failed to list folder %s", folderID),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func DriveDownloadFailed(fileID string, err error) *AppError {
	return &AppError{
		Code:    CodeDriveDownloadFailed,
		Message: fmt.Sprintf("failed to download file %s", fileID),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"file_id": fileID},
		Err:     err,
	}
}

func ExcelReadFailed(name string, err error) *AppError {
	return &AppError{
		Code:    CodeExcelReadFailed,
		Message: fmt.Sprintf("failed to read workbook %q", name),
		Status:  http.StatusUnprocessableEntity,
		Details: map[string]any{"file": name},
		Err:     err,
	}
}

func DBConnectionFailed(err error) *AppError {
	return &AppError{
		Code:    CodeDBConnectionFailed,
		Message: "database connection failed",
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func DBInsertFailed(err error) *AppError {
	return &AppError{
		Code:    CodeDBInsertFailed,
		Message: "batch insert failed",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func SyncInProgress(generationDate string) *AppError {
	return &AppError{
		Code:    CodeSyncInProgress,
		Message: fmt.Sprintf("a sync for generation %s is already running", generationDate),
		Status:  http.StatusConflict,
		Details: map[string]any{"generation_date": generationDate},
	}
}

// Internal errors
func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func Timeout(operation string) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("operation timed out: %s", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

// Helper functions
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

// CodeOf returns the stable error code, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
