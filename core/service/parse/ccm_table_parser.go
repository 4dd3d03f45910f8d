package parse

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"ccm_server/core/domain"
)

// ExtractPrimaryTable parses every <table> in the HTML body, scores each
// candidate with a heuristic over expected headers and numeric content, and
// returns the best match. When no candidate yields a usable header row the
// collected error codes are returned instead.
func ExtractPrimaryTable(htmlBody string) (*domain.ParsedTable, []string) {
	if strings.TrimSpace(htmlBody) == "" {
		return nil, []string{"html_missing"}
	}

	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return nil, []string{"html_missing"}
	}

	tables := collectTables(doc)
	if len(tables) == 0 {
		return nil, []string{"table_missing"}
	}

	var (
		best      *domain.ParsedTable
		bestErrs  []string
		bestScore float64
		haveBest  bool
	)
	fallback := make(map[string]struct{})

	for _, table := range tables {
		parsed, candidateErrs := parseTableNode(table)
		if parsed == nil {
			for _, code := range candidateErrs {
				fallback[code] = struct{}{}
			}
			continue
		}

		score := scoreTable(parsed)
		if !haveBest || score > bestScore {
			best, bestErrs, bestScore = parsed, candidateErrs, score
			haveBest = true
		}
	}

	if haveBest {
		return best, bestErrs
	}

	codes := make([]string, 0, len(fallback))
	for code := range fallback {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	if len(codes) == 0 {
		codes = []string{"table_candidate_missing"}
	}
	return nil, codes
}

// CollectTableTexts gathers every textual fragment of a parsed table so date
// derivation can scan headers, cells and surrounding text alike.
func CollectTableTexts(table *domain.ParsedTable) []string {
	if table == nil {
		return nil
	}

	var texts []string
	for _, header := range table.Headers {
		if header != "" {
			texts = append(texts, header)
		}
	}
	for _, row := range table.Rows {
		for _, value := range row {
			if value != "" {
				texts = append(texts, value)
			}
		}
	}
	for _, extra := range table.ExtraTexts {
		if extra != "" {
			texts = append(texts, extra)
		}
	}
	return texts
}

func collectTables(n *html.Node) []*html.Node {
	var tables []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "table" {
			tables = append(tables, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return tables
}

func parseTableNode(table *html.Node) (*domain.ParsedTable, []string) {
	var (
		headers    []string
		rawRows    [][]string
		extraTexts []string
		errs       []string
	)

	headerFound := false
	for _, row := range collectRows(table) {
		cells := collectCells(row)
		if len(cells) == 0 {
			continue
		}

		cellTexts := make([]string, len(cells))
		hasTH := false
		nonEmpty := 0
		for i, cell := range cells {
			cellTexts[i] = strings.TrimSpace(nodeText(cell))
			if cellTexts[i] != "" {
				nonEmpty++
			}
			if cell.Data == "th" {
				hasTH = true
			}
		}

		if !headerFound {
			if hasTH || nonEmpty > 1 {
				candidate := make([]string, 0, nonEmpty)
				for _, text := range cellTexts {
					if text != "" {
						candidate = append(candidate, collapseSpaces(text))
					}
				}
				if len(candidate) > 0 {
					headers = dedupeHeaders(candidate)
					headerFound = true
					continue
				}
			}
			for _, text := range cellTexts {
				if text != "" {
					extraTexts = append(extraTexts, text)
				}
			}
			continue
		}

		// Separator rows ("6 SEMANAS") carry a single non-empty cell.
		if nonEmpty <= 1 {
			continue
		}
		rawRows = append(rawRows, cellTexts)
	}

	if len(headers) == 0 {
		errs = append(errs, "headers_missing")
		return nil, errs
	}

	rows := make([]map[string]string, 0, len(rawRows))
	for index, raw := range rawRows {
		if len(raw) > len(headers) {
			errs = append(errs, fmt.Sprintf("row_overflow:%d", index))
			raw = raw[:len(headers)]
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(raw) {
				row[header] = raw[i]
			} else {
				row[header] = ""
			}
		}
		if rowResemblesHeaders(row, headers) {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		errs = append(errs, "rows_missing")
	}

	return &domain.ParsedTable{Headers: headers, Rows: rows, ExtraTexts: extraTexts}, errs
}

func collectRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			switch child.Data {
			case "tr":
				rows = append(rows, child)
			case "table":
				// Nested tables are scored as their own candidates.
				continue
			default:
				walk(child)
			}
		}
	}
	walk(table)
	return rows
}

func collectCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for child := row.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && (child.Data == "td" || child.Data == "th") {
			cells = append(cells, child)
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

var expectedHeaderFragments = []string{
	"distrito",
	"zona",
	"zona horaria",
	"observaciones",
	"rama",
	"hermanas",
	"elder",
	"total",
	"generacion",
}

var numericHeaderFragments = []string{"rama", "total", "hermanas", "elder"}

func scoreTable(table *domain.ParsedTable) float64 {
	normalized := make([]string, 0, len(table.Headers))
	for _, header := range table.Headers {
		normalized = append(normalized, foldText(header))
	}
	if len(normalized) == 0 {
		return 0
	}

	keywordMatches := 0
	for _, header := range normalized {
		if headerMatchesExpected(header) {
			keywordMatches++
		}
	}

	rowCount := len(table.Rows)
	if rowCount > 50 {
		rowCount = 50
	}

	score := float64(keywordMatches*10 + rowCount)
	if numericSignal(table) >= 0.6 {
		score += 5
	}
	for _, header := range normalized {
		if strings.Contains(header, "generacion") {
			score += 3
			break
		}
	}
	if keywordMatches < 2 {
		score -= 5
	}
	return score
}

func headerMatchesExpected(header string) bool {
	for _, fragment := range expectedHeaderFragments {
		if strings.Contains(header, fragment) {
			return true
		}
	}
	return false
}

func numericSignal(table *domain.ParsedTable) float64 {
	if len(table.Rows) == 0 {
		return 0
	}

	var numericHeaders []string
	for _, header := range table.Headers {
		folded := foldText(header)
		for _, fragment := range numericHeaderFragments {
			if strings.Contains(folded, fragment) {
				numericHeaders = append(numericHeaders, header)
				break
			}
		}
	}
	if len(numericHeaders) == 0 {
		return 0
	}

	totalCells := len(numericHeaders) * len(table.Rows)
	numericCells := 0
	for _, row := range table.Rows {
		for _, header := range numericHeaders {
			if looksNumeric(row[header]) {
				numericCells++
			}
		}
	}
	return float64(numericCells) / float64(totalCells)
}

func looksNumeric(value string) bool {
	stripped := strings.ReplaceAll(value, ",", "")
	stripped = strings.ReplaceAll(stripped, " ", "")
	if stripped == "" {
		return false
	}
	dotSeen := false
	for _, r := range stripped {
		if r == '.' && !dotSeen {
			dotSeen = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func rowResemblesHeaders(row map[string]string, headers []string) bool {
	headerSet := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		headerSet[foldText(header)] = struct{}{}
	}

	seen := false
	for _, value := range row {
		if value == "" {
			continue
		}
		seen = true
		if _, ok := headerSet[foldText(value)]; !ok {
			return false
		}
	}
	return seen
}

// ValidateColumns checks that every required column exists (accent and case
// insensitive) and that no cell under a required column is empty. Codes:
// "column_missing:<col>" and "value_missing:<col>:<row>".
func ValidateColumns(table *domain.ParsedTable, required []string) []string {
	var codes []string
	for _, col := range required {
		folded := foldText(col)
		actual := ""
		for _, header := range table.Headers {
			if foldText(header) == folded {
				actual = header
				break
			}
		}
		if actual == "" {
			codes = append(codes, "column_missing:"+col)
			continue
		}
		for i, row := range table.Rows {
			if strings.TrimSpace(row[actual]) == "" {
				codes = append(codes, fmt.Sprintf("value_missing:%s:%d", col, i))
			}
		}
	}
	return codes
}

func collapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// dedupeHeaders disambiguates repeated header labels with a numeric suffix so
// row maps keep one entry per column.
func dedupeHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, header := range headers {
		seen[header]++
		if n := seen[header]; n > 1 {
			out[i] = fmt.Sprintf("%s (%d)", header, n)
		} else {
			out[i] = header
		}
	}
	return out
}

var accentFold = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u",
	"ü", "u", "Ü", "u", "ñ", "n", "Ñ", "n",
)

func foldText(value string) string {
	return strings.ToLower(strings.TrimSpace(accentFold.Replace(value)))
}
