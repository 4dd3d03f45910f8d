package sync

import (
	"strconv"
	"strings"
	"time"

	"ccm_server/core/domain"
	"ccm_server/pkg/normalize"
)

// Column layout of the generation workbooks, 0-indexed. Index 8 is unused;
// treatment is never sourced from the sheet.
const (
	colID = iota
	colDistrictID
	colType
	colBranch
	colDistrict
	colCountry
	colListNumber
	colCompanionshipNumber
	_
	colName
	colCompanion
	colAssignedMission
	colStake
	colLodging
	colPhoto
	colArrival
	colDeparture
	colGeneration
	colComments
	colEndowed
	colBirthDate
	colPhotoTaken
	colPassport
	colPassportFolio
	colFM
	colIPad
	colCloset
	colSecondaryArrival
	colPDay
	colHost
	colThreeWeeks
	colDevice
	colMissionEmail
	colPersonalEmail
	colInPersonDate
)

// MapRows converts worksheet body rows (header already removed) into records.
// Rows without a usable id are dropped; every problem is reported as a
// RowIssue keyed by the 0-based body row index.
func MapRows(rows [][]string, now time.Time) ([]*domain.MissionaryRecord, []domain.RowIssue) {
	records := make([]*domain.MissionaryRecord, 0, len(rows))
	var issues []domain.RowIssue

	for index, cells := range rows {
		record, codes := mapRow(cells, now)
		for _, code := range codes {
			issues = append(issues, domain.RowIssue{Row: index, Code: code})
		}
		if record != nil {
			records = append(records, record)
		}
	}
	return records, issues
}

func mapRow(cells []string, now time.Time) (*domain.MissionaryRecord, []string) {
	if rowEmpty(cells) {
		return nil, []string{"row_empty"}
	}

	id, ok := cellInt64(cells, colID)
	if !ok || id <= 0 {
		return nil, []string{"id_missing"}
	}

	var codes []string

	record := &domain.MissionaryRecord{
		ID:                  id,
		DistrictID:          cell(cells, colDistrictID),
		Type:                cell(cells, colType),
		District:            cell(cells, colDistrict),
		Country:             cell(cells, colCountry),
		ListNumber:          cellIntPtr(cells, colListNumber),
		CompanionshipNumber: cellIntPtr(cells, colCompanionshipNumber),
		Name:                cell(cells, colName),
		Companion:           cell(cells, colCompanion),
		AssignedMission:     cell(cells, colAssignedMission),
		Stake:               cell(cells, colStake),
		Lodging:             cell(cells, colLodging),
		Photo:               cell(cells, colPhoto),
		Comments:            cell(cells, colComments),
		Endowed:             normalize.CoerceBool(cell(cells, colEndowed)),
		PhotoTaken:          normalize.CoerceBool(cell(cells, colPhotoTaken)),
		Passport:            normalize.CoerceBool(cell(cells, colPassport)),
		PassportFolio:       cell(cells, colPassportFolio),
		FM:                  cell(cells, colFM),
		IPad:                normalize.CoerceBool(cell(cells, colIPad)),
		Closet:              cell(cells, colCloset),
		SecondaryArrival:    cell(cells, colSecondaryArrival),
		PDay:                cell(cells, colPDay),
		Host:                normalize.CoerceBool(cell(cells, colHost)),
		ThreeWeeks:          normalize.CoerceBool(cell(cells, colThreeWeeks)),
		Device:              normalize.CoerceBool(cell(cells, colDevice)),
		MissionEmail:        cell(cells, colMissionEmail),
		PersonalEmail:       cell(cells, colPersonalEmail),
		Active:              true,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}

	if branch, ok := cellInt(cells, colBranch); ok {
		record.Branch = branch
	}

	record.Arrival = coerceDateField(cells, colArrival, "arrival", &codes)
	record.Departure = coerceDateField(cells, colDeparture, "departure", &codes)
	record.Generation = coerceDateField(cells, colGeneration, "generation", &codes)
	record.BirthDate = coerceDateField(cells, colBirthDate, "birth_date", &codes)
	record.InPersonDate = coerceDateField(cells, colInPersonDate, "in_person_date", &codes)

	if record.Name == "" {
		codes = append(codes, "name_missing")
	}

	return record, codes
}

func coerceDateField(cells []string, index int, field string, codes *[]string) string {
	raw := cell(cells, index)
	if raw == "" {
		return ""
	}
	coerced := normalize.CoerceDate(raw)
	if coerced == "" {
		*codes = append(*codes, "date_invalid:"+field)
	}
	return coerced
}

func rowEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(cells []string, index int) string {
	if index >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[index])
}

func cellInt64(cells []string, index int) (int64, bool) {
	raw := cell(cells, index)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func cellInt(cells []string, index int) (int, bool) {
	raw := cell(cells, index)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

func cellIntPtr(cells []string, index int) *int {
	if value, ok := cellInt(cells, index); ok {
		return &value
	}
	return nil
}
