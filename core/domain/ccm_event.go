package domain

// Event types published on the in-process bus.
const (
	EventDatasetInvalidated = "dataset.invalidated"
)

// DatasetInvalidated is emitted after a sync for a generation commits.
type DatasetInvalidated struct {
	GenerationDate string `json:"generation_date"` // YYYYMMDD
	BranchID       int    `json:"branch_id"`
}
