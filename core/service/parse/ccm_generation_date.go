package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var monthNumbers = map[string]string{
	"enero":      "01",
	"febrero":    "02",
	"marzo":      "03",
	"abril":      "04",
	"mayo":       "05",
	"junio":      "06",
	"julio":      "07",
	"agosto":     "08",
	"septiembre": "09",
	"setiembre":  "09",
	"sept":       "09",
	"octubre":    "10",
	"oct":        "10",
	"noviembre":  "11",
	"diciembre":  "12",
}

var (
	reGeneracion = regexp.MustCompile(`(?i)generaci[oó]n\s+del\s+(\d{1,2})\s+de\s+([a-záéíóúñA-ZÁÉÍÓÚÑ]+)\s+de\s+(\d{4})`)
	reGeneric    = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+([a-záéíóúñA-ZÁÉÍÓÚÑ]+)\s+(?:de\s+)?(\d{4})`)
)

// ExtractGenerationDate derives the YYYYMMDD generation date from the message
// texts. Sources are consulted in a fixed order: plain body, HTML-stripped
// body, each table text, and finally the subject (where only the generic
// "DD de MES de YYYY" phrasing applies). Returns "" when no source yields a
// valid date.
func ExtractGenerationDate(body, htmlBody, subject string, tableTexts []string) string {
	full := []*regexp.Regexp{reGeneracion, reGeneric}

	type source struct {
		content  string
		patterns []*regexp.Regexp
	}
	var sources []source

	if body != "" {
		sources = append(sources, source{body, full})
	}
	if htmlBody != "" {
		sources = append(sources, source{StripHTML(htmlBody), full})
	}
	for _, text := range tableTexts {
		if text != "" {
			sources = append(sources, source{text, full})
		}
	}
	if subject != "" {
		sources = append(sources, source{subject, []*regexp.Regexp{reGeneric}})
	}

	for _, src := range sources {
		if formatted := matchDate(src.content, src.patterns); formatted != "" {
			return formatted
		}
	}
	return ""
}

func matchDate(content string, patterns []*regexp.Regexp) string {
	for _, pattern := range patterns {
		match := pattern.FindStringSubmatch(content)
		if match == nil {
			continue
		}

		day := match[1]
		if len(day) == 1 {
			day = "0" + day
		}
		month, ok := monthNumbers[foldText(match[2])]
		if !ok {
			continue
		}
		formatted := fmt.Sprintf("%s%s%s", match[3], month, day)
		if _, err := time.Parse("20060102", formatted); err != nil {
			continue
		}
		return formatted
	}
	return ""
}

// StripHTML reduces an HTML fragment to its visible text, with element
// boundaries collapsed to single spaces.
func StripHTML(htmlBody string) string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return htmlBody
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				parts = append(parts, text)
			}
		}
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(parts, " ")
}
