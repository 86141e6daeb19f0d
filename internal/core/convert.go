package core

// convert.go turns spreadsheet cell text into the values the import needs.
//
// Workbooks arrive with the usual artifacts of hand-maintained packing lists:
//   - Formatted numbers with thousands separators or currency symbols
//   - Decimal commas ("12,5") from French locale sheets
//   - Accounting negatives written as "(12.50)"
//   - Excel formula prefixes (="value") and stray quotes
//
// Numeric parsing never fails the row on its own; callers supply the
// fallback and validation decides whether the value is acceptable.

import (
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// thousandsRegex matches comma grouping in 3-digit groups ("1,234.56").
var thousandsRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// numberCleaner strips symbols that may surround a formatted number.
var numberCleaner = strings.NewReplacer(
	"$", "",
	"\u20ac", "", // Euro
	"\u00a3", "", // Pound
	"\u00a0", "", // non-breaking space used as thousands separator
	" ", "",
)

// ParseNumber converts cell text to a float64.
// Returns false if the text is empty or not a number.
func ParseNumber(s string) (float64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = normalizeCommas(numberCleaner.Replace(s))
	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// normalizeCommas resolves commas to the form strconv understands. Valid
// 3-digit grouping is dropped, a lone comma without a dot is a decimal
// comma, and anything else is left for the numeric check to reject.
func normalizeCommas(s string) string {
	if !strings.Contains(s, ",") {
		return s
	}
	if thousandsRegex.MatchString(s) {
		return strings.ReplaceAll(s, ",", "")
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

// numberOr parses a cell and falls back to def when it is absent or invalid.
func numberOr(c Cell, def float64) float64 {
	if !c.Present {
		return def
	}
	if f, ok := ParseNumber(c.Value); ok {
		return f
	}
	return def
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// normalizeHeader folds a header for alias matching: case, spaces,
// underscores, dashes and dots are ignored.
func normalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range h {
		switch r {
		case ' ', '_', '-', '.', '\u00a0':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
