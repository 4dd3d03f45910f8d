package domain

// ParsedTable is the table extracted from a message body. Every row carries
// exactly the header set as keys; missing cells are empty strings.
type ParsedTable struct {
	Headers    []string            `json:"headers"`
	Rows       []map[string]string `json:"rows"`
	ExtraTexts []string            `json:"extra_texts,omitempty"`
}

// IsEmpty reports whether nothing usable was extracted.
func (t *ParsedTable) IsEmpty() bool {
	return t == nil || (len(t.Headers) == 0 && len(t.Rows) == 0)
}

// Column returns the values of one column in row order.
func (t *ParsedTable) Column(header string) []string {
	if t == nil {
		return nil
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[header])
	}
	return values
}
