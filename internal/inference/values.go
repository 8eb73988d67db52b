package inference

import (
	"strconv"
	"strings"
	"time"

	"schemaforge/internal/domain"
)

// nullLike lists sample values treated as missing rather than typed data.
// They are excluded from majority voting and instead mark the column nullable.
var nullLike = map[string]struct{}{
	"":     {},
	"nan":  {},
	"n/a":  {},
	"na":   {},
	"null": {},
	"none": {},
	"-":    {},
	"--":   {},
}

// IsNullLike reports whether a raw sample value represents a missing entry.
func IsNullLike(v string) bool {
	_, ok := nullLike[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

var dateLayouts = []struct {
	layout string
	format string
}{
	{"2006-01-02", "YYYY-MM-DD"},
	{"02-01-2006", "DD-MM-YYYY"},
	{"01/02/2006", "MM/DD/YYYY"},
	{"2006/01/02", "YYYY/MM/DD"},
	{"Jan 2, 2006", "Mon D, YYYY"},
	{"2 Jan 2006", "D Mon YYYY"},
}

var datetimeLayouts = []struct {
	layout string
	format string
}{
	{time.RFC3339, "RFC3339"},
	{"2006-01-02 15:04:05", "YYYY-MM-DD hh:mm:ss"},
	{"2006-01-02T15:04:05", "YYYY-MM-DDThh:mm:ss"},
}

// Classify determines the most specific column type a single raw value is
// consistent with, plus a format hint for date-like values.
func Classify(v string) (domain.ColumnType, string) {
	s := strings.TrimSpace(v)
	if s == "" {
		return domain.TypeString, ""
	}

	switch strings.ToLower(s) {
	case "true", "false", "yes", "no":
		return domain.TypeBoolean, ""
	}

	if _, err := strconv.ParseInt(stripNumericNoise(s), 10, 64); err == nil {
		return domain.TypeInteger, ""
	}
	if _, err := strconv.ParseFloat(stripNumericNoise(s), 64); err == nil {
		return domain.TypeFloat, ""
	}

	for _, dl := range datetimeLayouts {
		if _, err := time.Parse(dl.layout, s); err == nil {
			return domain.TypeDatetime, dl.format
		}
	}
	for _, dl := range dateLayouts {
		if _, err := time.Parse(dl.layout, s); err == nil {
			return domain.TypeDate, dl.format
		}
	}

	if (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) {
		if strings.HasPrefix(s, "[") {
			return domain.TypeArray, ""
		}
		return domain.TypeObject, ""
	}

	return domain.TypeString, ""
}

// stripNumericNoise removes thousands separators and leading currency
// symbols so "1,234.50" and "$99" still classify as numeric.
func stripNumericNoise(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimLeft(s, "$€£₹+")
	return s
}

// Vote is the outcome of majority voting over one column's sample values.
type Vote struct {
	Type     domain.ColumnType
	Format   string
	Share    float64 // fraction of non-null samples agreeing with Type
	Nullable bool    // true when any null-like sample was seen
	Counted  int     // non-null samples considered
}

// MajorityVote tallies the classified types of a column's samples. Integer
// votes fold into a float majority when both are present, since integers are
// floats with no fractional part. Share is 0 when no non-null samples exist.
func MajorityVote(values []string) Vote {
	var vote Vote
	counts := make(map[domain.ColumnType]int)
	formats := make(map[domain.ColumnType]string)

	for _, v := range values {
		if IsNullLike(v) {
			vote.Nullable = true
			continue
		}
		t, f := Classify(v)
		counts[t]++
		if f != "" && formats[t] == "" {
			formats[t] = f
		}
		vote.Counted++
	}

	if vote.Counted == 0 {
		return vote
	}

	// Numeric folding: a column of mostly integers with a few floats is a
	// float column, not a mixed one.
	if counts[domain.TypeFloat] > 0 && counts[domain.TypeInteger] > 0 {
		counts[domain.TypeFloat] += counts[domain.TypeInteger]
		delete(counts, domain.TypeInteger)
	}

	best := domain.TypeString
	bestCount := -1
	for _, t := range domain.ColumnTypes {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}

	vote.Type = best
	vote.Format = formats[best]
	vote.Share = float64(bestCount) / float64(vote.Counted)
	return vote
}
