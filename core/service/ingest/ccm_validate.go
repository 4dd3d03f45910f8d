package ingest

import (
	"strings"

	"ccm_server/core/domain"
	"ccm_server/pkg/normalize"
)

// ValidateStructure checks the mandatory pieces of an arrival email and
// returns the collected error codes. An empty slice means the message is
// structurally valid.
func ValidateStructure(subject, generationDate string, attachments []*domain.Attachment, subjectPattern string) []string {
	var errs []string

	if _, ok := normalize.MatchSubject(subject, subjectPattern); !ok {
		errs = append(errs, "subject_pattern_mismatch")
	}

	if generationDate == "" {
		errs = append(errs, "fecha_generacion_missing")
	}

	if len(attachments) == 0 {
		errs = append(errs, "attachments_missing")
	} else {
		hasPDF := false
		for _, att := range attachments {
			if att.IsPDF() {
				hasPDF = true
				break
			}
		}
		if !hasPDF {
			errs = append(errs, "pdf_attachment_missing")
		}
	}

	return errs
}

// GuessPrimaryDistrict infers the district label from the parsed table: the
// first non-empty value under a column whose header mentions "distrito" that
// still contains a digit after stripping single-letter prefixes.
func GuessPrimaryDistrict(table *domain.ParsedTable) string {
	if table == nil {
		return ""
	}

	var districtHeaders []string
	for _, header := range table.Headers {
		if strings.Contains(strings.ToLower(header), "distrito") {
			districtHeaders = append(districtHeaders, header)
		}
	}
	if len(districtHeaders) == 0 {
		return ""
	}

	for _, row := range table.Rows {
		for _, header := range districtHeaders {
			candidate := cleanDistrictCandidate(row[header])
			if candidate != "" && strings.ContainsAny(candidate, "0123456789") {
				return candidate
			}
		}
	}
	return ""
}

// cleanDistrictCandidate drops single-letter prefixes such as "F District 10C".
func cleanDistrictCandidate(value string) string {
	cleaned := strings.TrimSpace(value)
	for {
		if len(cleaned) < 2 {
			break
		}
		first := rune(cleaned[0])
		if !isLetter(first) {
			break
		}
		rest := cleaned[1:]
		trimmed := strings.TrimLeft(rest, " _-:")
		if trimmed == rest {
			break
		}
		cleaned = strings.TrimSpace(trimmed)
	}
	return cleaned
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
