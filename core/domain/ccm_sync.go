package domain

import "time"

// ContinuationToken marks where an interrupted sync should resume. The zero
// value means "start from the beginning".
type ContinuationToken struct {
	FileID string `json:"file_id,omitempty"`
}

// IsZero reports whether the token carries no resume point.
func (t ContinuationToken) IsZero() bool { return t.FileID == "" }

// SyncState is the persisted resume state for one generation. Owned
// exclusively by the sync engine; deleted on successful completion.
type SyncState struct {
	GenerationDate      string            `json:"generation_date"` // YYYYMMDD
	FolderID            string            `json:"folder_id"`
	LastProcessedFileID string            `json:"last_processed_file_id,omitempty"`
	Continuation        ContinuationToken `json:"continuation_token,omitempty"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// FileReport is the per-file breakdown inside a SyncReport.
type FileReport struct {
	FileID   string `json:"file_id"`
	Name     string `json:"name"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// SyncReport is the outcome of one sync run over a generation folder.
type SyncReport struct {
	GenerationDate  string            `json:"generation_date"`
	FolderID        string            `json:"folder_id"`
	Inserted        int               `json:"inserted"`
	Skipped         int               `json:"skipped"`
	DurationSeconds float64           `json:"duration_seconds"`
	Continuation    ContinuationToken `json:"continuation_token,omitempty"`
	ProcessedFiles  []FileReport      `json:"processed_files"`
	Completed       bool              `json:"completed"`
}
