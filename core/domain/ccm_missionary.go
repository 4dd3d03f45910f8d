package domain

import "time"

// MissionaryRecord is one normalized spreadsheet row. Date fields hold ISO
// YYYY-MM-DD or the empty string for absent; booleans default to false and
// never report absence.
type MissionaryRecord struct {
	ID                  int64  `json:"id"`
	DistrictID          string `json:"district_id,omitempty"`
	Type                string `json:"type,omitempty"`
	Branch              int    `json:"branch,omitempty"`
	District            string `json:"district,omitempty"`
	Country             string `json:"country,omitempty"`
	ListNumber          *int   `json:"list_number,omitempty"`
	CompanionshipNumber *int   `json:"companionship_number,omitempty"`
	Treatment           string `json:"treatment,omitempty"` // never sourced from the sheet
	Name                string `json:"name"`
	Companion           string `json:"companion,omitempty"`
	AssignedMission     string `json:"assigned_mission,omitempty"`
	Stake               string `json:"stake,omitempty"`
	Lodging             string `json:"lodging,omitempty"`
	Photo               string `json:"photo,omitempty"`
	Arrival             string `json:"arrival,omitempty"`
	Departure           string `json:"departure,omitempty"`
	Generation          string `json:"generation,omitempty"`
	Comments            string `json:"comments,omitempty"`
	Endowed             bool   `json:"endowed"`
	BirthDate           string `json:"birth_date,omitempty"`
	PhotoTaken          bool   `json:"photo_taken"`
	Passport            bool   `json:"passport"`
	PassportFolio       string `json:"passport_folio,omitempty"`
	FM                  string `json:"fm,omitempty"`
	IPad                bool   `json:"ipad"`
	Closet              string `json:"closet,omitempty"`
	SecondaryArrival    string `json:"secondary_arrival,omitempty"`
	PDay                string `json:"p_day,omitempty"`
	Host                bool   `json:"host"`
	ThreeWeeks          bool   `json:"three_weeks"`
	Device              bool   `json:"device"`
	MissionEmail        string `json:"mission_email,omitempty"`
	PersonalEmail       string `json:"personal_email,omitempty"`
	InPersonDate        string `json:"in_person_date,omitempty"`

	// Service-filled on insert.
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RowIssue is a per-row mapping problem, keyed by the 0-based row index
// within the worksheet body (header excluded).
type RowIssue struct {
	Row  int    `json:"row"`
	Code string `json:"code"`
}
