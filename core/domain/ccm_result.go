package domain

import "time"

// UploadedFile identifies a blob stored by the object-store adapter.
type UploadedFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ViewLink     string `json:"view_link,omitempty"`
	DownloadLink string `json:"download_link,omitempty"`
}

// UploadError records a failed upload stage for one attachment.
type UploadError struct {
	Stage string `json:"stage"`
	Code  string `json:"code"`
	File  string `json:"file,omitempty"`
}

// ProcessingResult is the per-message outcome of one ingestion cycle.
// Success implies empty validation and upload error lists and a present
// generation date.
type ProcessingResult struct {
	Success          bool           `json:"success"`
	MessageID        string         `json:"message_id"`
	Subject          string         `json:"subject"`
	GenerationDate   string         `json:"generation_date,omitempty"` // YYYYMMDD
	AttachmentsCount int            `json:"attachments_count"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	ParsedTable      *ParsedTable   `json:"parsed_table,omitempty"`
	TableErrors      []string       `json:"table_errors,omitempty"`
	FolderID         string         `json:"folder_id,omitempty"`
	UploadedFiles    []UploadedFile `json:"uploaded_files,omitempty"`
	UploadErrors     []UploadError  `json:"upload_errors,omitempty"`
}

// ProcessRun aggregates the outcomes of one mailbox pass.
type ProcessRun struct {
	Success         bool               `json:"success"`
	Processed       int                `json:"processed"`
	Errors          int                `json:"errors"`
	Details         []ProcessingResult `json:"details"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         time.Time          `json:"end_time"`
	DurationSeconds float64            `json:"duration_seconds"`
}
