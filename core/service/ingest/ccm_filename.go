package ingest

import (
	"strings"

	"ccm_server/pkg/normalize"
)

// FormatAttachmentName builds the canonical stored name
// "<generation_date>_<district>_<sanitized-original>", omitting the district
// component when none could be inferred. The result honors the global
// filename length budget.
func FormatAttachmentName(generationDate, district, originalName string) string {
	sanitized := normalize.SanitizeFilename(originalName)
	if sanitized == "" {
		sanitized = "archivo"
	}

	stem, ext := splitName(sanitized)

	components := make([]string, 0, 3)
	if generationDate != "" {
		components = append(components, generationDate)
	}
	if d := normalize.SanitizeFilename(district); d != "" {
		components = append(components, d)
	}
	if stem != "" {
		components = append(components, stem)
	}
	if len(components) == 0 {
		components = append(components, "archivo")
	}

	return normalize.SanitizeFilename(strings.Join(components, "_") + ext)
}

func splitName(name string) (stem, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}
