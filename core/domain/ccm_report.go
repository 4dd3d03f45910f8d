package domain

import "time"

// Dataset identifiers served by the report pipelines.
const (
	DatasetBranchSummary     = "branch_summary"
	DatasetDistrictKPIs      = "district_kpis"
	DatasetUpcomingArrivals  = "upcoming_arrivals"
	DatasetUpcomingBirthdays = "upcoming_birthdays"
)

// BranchSummary is the by-district rollup of the active generation.
type BranchSummary struct {
	BranchID            int    `json:"branch_id"`
	District            string `json:"district"`
	FirstGenerationDate string `json:"first_generation_date,omitempty"`
	FirstCCMArrival     string `json:"first_ccm_arrival,omitempty"`
	LastCCMDeparture    string `json:"last_ccm_departure,omitempty"`
	TotalMissionaries   int    `json:"total_missionaries"`
	TotalCompanionships int    `json:"total_companionships,omitempty"`
	EldersCount         int    `json:"elders_count,omitempty"`
	SistersCount        int    `json:"sisters_count,omitempty"`
}

// DistrictKPI is one per-district metric of the active generation.
type DistrictKPI struct {
	BranchID int     `json:"branch_id"`
	District string  `json:"district"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
}

// UpcomingArrival is a consolidated (date, district) arrival row.
type UpcomingArrival struct {
	District          string `json:"district"`
	RDistrict         string `json:"rdistrict,omitempty"`
	BranchID          int    `json:"branch_id,omitempty"`
	ArrivalDate       string `json:"arrival_date"`
	DepartureDate     string `json:"departure_date,omitempty"`
	MissionariesCount int    `json:"missionaries_count"`
	DurationWeeks     int    `json:"duration_weeks,omitempty"`
	Status            string `json:"status,omitempty"`
}

// UpcomingBirthday is one missionary birthday inside the lookahead window.
type UpcomingBirthday struct {
	MissionaryID   int64  `json:"missionary_id,omitempty"`
	MissionaryName string `json:"missionary_name"`
	Treatment      string `json:"treatment,omitempty"`
	District       string `json:"district,omitempty"`
	BranchID       int    `json:"branch_id,omitempty"`
	Birthday       string `json:"birthday"` // next occurrence, ISO date
	Age            int    `json:"age,omitempty"`
}

// DatasetMetadata accompanies every pipeline result.
type DatasetMetadata struct {
	DatasetID      string    `json:"dataset_id"`
	GenerationDate string    `json:"generation_date,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	RecordCount    int       `json:"record_count"`
	BranchID       int       `json:"branch_id,omitempty"`
	DurationMs     int64     `json:"duration_ms,omitempty"`
	CacheHit       bool      `json:"cache_hit"`
	CacheKey       string    `json:"cache_key,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
}

// DatasetResult is a built dataset plus its metadata, immutable once built.
type DatasetResult struct {
	Metadata DatasetMetadata `json:"metadata"`
	Data     any             `json:"data"`
}
