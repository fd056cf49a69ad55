package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	Annual    Granularity = "annual"
	Monthly   Granularity = "monthly"
	Bimonthly Granularity = "bimonthly"
)

type (
	// Granularity is the within-year period resolution of a dataset.
	Granularity string

	// Observation is one data point handed to the aggregation engine.
	// Month is 0 for annual-only data; for bimonthly data it holds the bimester.
	Observation struct {
		Year  int
		Month int
		Group string
		Value float64
	}

	// Filter scopes a dataset load to entities and years.
	Filter struct {
		Municipalities []string `json:"municipios" validate:"omitempty,dive,required,max=80"`
		Years          []int    `json:"anos" validate:"omitempty,dive,gte=1990,lte=2100"`
	}
)

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidYear    = errors.New("invalid year")
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrUnknownColumn  = errors.New("unknown column")
)

// PeriodsPerYear returns how many within-year periods make a complete year.
func (g Granularity) PeriodsPerYear() int {
	switch g {
	case Monthly:
		return 12
	case Bimonthly:
		return 6
	default:
		return 0
	}
}

func (g Granularity) IsValid() bool {
	switch g {
	case Annual, Monthly, Bimonthly:
		return true
	}
	return false
}

// ValidateObservations rejects out-of-range periods instead of coercing them.
func ValidateObservations(obs []Observation, g Granularity) error {
	limit := g.PeriodsPerYear()
	for i, o := range obs {
		if o.Year <= 0 {
			return fmt.Errorf("row %d: %w: %d", i, ErrInvalidYear, o.Year)
		}
		if o.Month < 0 || o.Month > limit || (limit > 0 && o.Month == 0) {
			return fmt.Errorf("row %d: %w: %d", i, ErrInvalidMonth, o.Month)
		}
	}
	return nil
}

// Empty reports whether the filter restricts nothing.
func (f Filter) Empty() bool {
	return len(f.Municipalities) == 0 && len(f.Years) == 0
}

// MatchEntity reports whether name passes the municipality filter.
func (f Filter) MatchEntity(name string) bool {
	if len(f.Municipalities) == 0 {
		return true
	}
	for _, m := range f.Municipalities {
		if strings.TrimSpace(m) == strings.TrimSpace(name) {
			return true
		}
	}
	return false
}

// MatchYear reports whether year passes the year filter.
func (f Filter) MatchYear(year int) bool {
	if len(f.Years) == 0 {
		return true
	}
	for _, y := range f.Years {
		if y == year {
			return true
		}
	}
	return false
}

// Key returns a stable representation used in cache keys.
func (f Filter) Key() string {
	ms := append([]string(nil), f.Municipalities...)
	slices.Sort(ms)
	ys := append([]int(nil), f.Years...)
	slices.Sort(ys)
	parts := make([]string, 0, len(ys))
	for _, y := range ys {
		parts = append(parts, fmt.Sprint(y))
	}
	return strings.Join(ms, ",") + "|" + strings.Join(parts, ",")
}
