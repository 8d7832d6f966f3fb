package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ScrubKeyword is a named scrub plan understood by the parity tool
type ScrubKeyword string

const (
	ScrubBad  ScrubKeyword = "bad"
	ScrubNew  ScrubKeyword = "new"
	ScrubFull ScrubKeyword = "full"
)

// ScrubPlan is either a percentage of the array or a named keyword
type ScrubPlan struct {
	Percent int
	Keyword ScrubKeyword
}

// IsKeyword returns true if the plan is one of the named keywords
func (p ScrubPlan) IsKeyword() bool {
	return p.Keyword != ""
}

// String returns the value passed to --plan
func (p ScrubPlan) String() string {
	if p.IsKeyword() {
		return string(p.Keyword)
	}
	return strconv.Itoa(p.Percent)
}

// ParseScrubPlan accepts an integer percentage (as a number or numeric string)
// or one of the keywords bad, new, full.
func ParseScrubPlan(v any) (ScrubPlan, error) {
	switch val := v.(type) {
	case nil:
		return ScrubPlan{}, fmt.Errorf("scrub plan is empty")
	case int:
		return percentPlan(int64(val))
	case int64:
		return percentPlan(val)
	case uint64:
		return percentPlan(int64(val))
	case float64:
		if val != float64(int64(val)) {
			return ScrubPlan{}, fmt.Errorf("scrub plan %v is not a whole percentage", val)
		}
		return percentPlan(int64(val))
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return percentPlan(n)
		}
		switch kw := ScrubKeyword(s); kw {
		case ScrubBad, ScrubNew, ScrubFull:
			return ScrubPlan{Keyword: kw}, nil
		}
		return ScrubPlan{}, fmt.Errorf("invalid scrub plan %q (expected 0-100, bad, new or full)", s)
	default:
		return ScrubPlan{}, fmt.Errorf("invalid scrub plan type %T", v)
	}
}

func percentPlan(n int64) (ScrubPlan, error) {
	if n < 0 || n > 100 {
		return ScrubPlan{}, fmt.Errorf("scrub percentage %d out of range 0-100", n)
	}
	return ScrubPlan{Percent: int(n)}, nil
}
