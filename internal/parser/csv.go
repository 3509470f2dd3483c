// Package parser turns raw delimited text into canonical row records.
//
// The dialect is intentionally small: comma separated, double-quote quoting
// with "" as an escaped quote, one record per physical line. Quoted values
// containing line breaks are not supported because lines are split before
// fields are parsed.
package parser

import (
	"regexp"
	"strings"

	"github.com/vorn/vorn/internal/models"
)

// WarnNoPANColumn is emitted when no header maps to the pan field.
const WarnNoPANColumn = "No PAN-like column detected (pan or aliases)"

// Result of parsing one file
type Result struct {
	Rows       []models.RowInput
	RawHeaders []string
	Warnings   []string
}

var headerAliases = map[string]string{
	"card_number":            models.FieldPAN,
	"primary_account_number": models.FieldPAN,
	"customer_country":       models.FieldCustomerLocation,
	"country":                models.FieldCustomerLocation,
}

var (
	lineBreakRe  = regexp.MustCompile(`\r?\n`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonWordRe    = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	camelRe      = regexp.MustCompile(`([a-z])([A-Z])`)
)

// NormalizeHeader maps a raw column title to its canonical field name.
func NormalizeHeader(raw string) string {
	s := strings.TrimSpace(raw)
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = nonWordRe.ReplaceAllString(s, "")
	s = camelRe.ReplaceAllString(s, "${1}_${2}")
	s = strings.ToLower(s)
	if alias, ok := headerAliases[s]; ok {
		return alias
	}
	return s
}

// ParseCSV parses text into rows in input line order. Blank lines are
// skipped; the first non-blank line is the header.
func ParseCSV(text string) Result {
	res := Result{
		Rows:       []models.RowInput{},
		RawHeaders: []string{},
		Warnings:   []string{},
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return res
	}

	res.RawHeaders = parseLine(strings.TrimPrefix(lines[0], "\ufeff"))
	keys := make([]string, len(res.RawHeaders))
	hasPAN := false
	for i, h := range res.RawHeaders {
		keys[i] = NormalizeHeader(h)
		if keys[i] == models.FieldPAN {
			hasPAN = true
		}
	}

	for _, line := range lines[1:] {
		res.Rows = append(res.Rows, buildRow(keys, parseLine(line)))
	}

	if !hasPAN {
		res.Warnings = append(res.Warnings, WarnNoPANColumn)
	}
	return res
}

func splitLines(text string) []string {
	raw := lineBreakRe.Split(text, -1)
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// buildRow applies the minimal coercion: retention_days becomes a number or
// nil, empty strings become nil, everything else stays literal text.
func buildRow(keys, vals []string) models.RowInput {
	row := make(models.RowInput, len(keys))
	for i, key := range keys {
		if i >= len(vals) {
			row[key] = nil
			continue
		}
		val := vals[i]
		switch {
		case key == models.FieldRetentionDays:
			if n, ok := models.ParseNumber(val); ok {
				row[key] = n
			} else {
				row[key] = nil
			}
		case val == "":
			row[key] = nil
		default:
			row[key] = val
		}
	}
	return row
}

// parseLine splits one physical line into fields.
func parseLine(line string) []string {
	var (
		fields   []string
		cur      strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == '"' {
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
			continue
		}
		if ch == ',' && !inQuotes {
			fields = append(fields, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	return append(fields, cur.String())
}
