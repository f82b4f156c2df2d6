package catalog

import (
	"strconv"
	"strings"
)

// YearOutcome classifies a parsed year field.
type YearOutcome int

const (
	// YearAbsent means the source carried no year at all.
	YearAbsent YearOutcome = iota
	// YearMalformed means the source carried a year that could not be parsed.
	YearMalformed
	// YearValue means Value holds a parsed year.
	YearValue
)

func (o YearOutcome) String() string {
	switch o {
	case YearAbsent:
		return "absent"
	case YearMalformed:
		return "malformed"
	case YearValue:
		return "value"
	default:
		return "unknown"
	}
}

// YearField is the explicit outcome of parsing a string-sourced year.
// Distinguishing absent from malformed keeps bad provider data out of
// scoring without silently defaulting it.
type YearField struct {
	Raw     string
	Outcome YearOutcome
	Value   int
}

// Year is a convenience constructor for a known-good year.
func Year(value int) YearField {
	return YearField{Raw: strconv.Itoa(value), Outcome: YearValue, Value: value}
}

// ParseYear classifies raw. A leading four-digit run parses as the year, so
// partial dates such as "1968-05" resolve to 1968. Anything else that is
// non-empty is malformed.
func ParseYear(raw string) YearField {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return YearField{Raw: raw, Outcome: YearAbsent}
	}

	digits := 0
	for digits < len(trimmed) && trimmed[digits] >= '0' && trimmed[digits] <= '9' {
		digits++
	}
	if digits != 4 {
		return YearField{Raw: raw, Outcome: YearMalformed}
	}

	value, err := strconv.Atoi(trimmed[:4])
	if err != nil {
		return YearField{Raw: raw, Outcome: YearMalformed}
	}

	return YearField{Raw: raw, Outcome: YearValue, Value: value}
}
