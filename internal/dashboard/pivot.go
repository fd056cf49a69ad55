package dashboard

import (
	"context"
	"errors"
	"fmt"

	"indicadores/internal/aggregate"
	"indicadores/internal/cache"
	"indicadores/internal/core"
)

// PivotKind selects the temporal reshaping of an ad hoc pivot.
type PivotKind string

const (
	PivotMonthly  PivotKind = "monthly"
	PivotSnapshot PivotKind = "snapshot"
	PivotYTD      PivotKind = "ytd"
	PivotAnnual   PivotKind = "annual"
)

var ErrInvalidPivot = errors.New("invalid pivot request")

// PivotRequest describes an ad hoc pivot over one dataset. Zero Month and
// Year default to the resolved latest month and complete year. Month is
// further bounded by the dataset granularity.
type PivotRequest struct {
	Kind  PivotKind `validate:"required,oneof=monthly snapshot ytd annual"`
	Group string
	Value string
	Month int `validate:"gte=0,lte=12"`
	Year  int
	Order aggregate.Order
	Agg   core.Agg
}

// PivotResult is a pivot with its period and, for year indexed kinds,
// lag variations.
type PivotResult struct {
	Dataset    string                    `json:"dataset"`
	Kind       PivotKind                 `json:"kind"`
	Period     aggregate.Period          `json:"period"`
	Pivot      aggregate.Pivot           `json:"pivot"`
	Variations *aggregate.VariationTable `json:"variations,omitempty"`
}

// Pivot reshapes one dataset. Group and Value default to the entity column
// and the first measure of the schema; Agg defaults to the measure's policy.
func (s *Service) Pivot(ctx context.Context, dataset string, filter core.Filter, req PivotRequest) (PivotResult, error) {
	schema, err := s.catalog.Lookup(dataset)
	if err != nil {
		return PivotResult{}, err
	}
	if limit := schema.Granularity.PeriodsPerYear(); req.Month > limit {
		return PivotResult{}, fmt.Errorf("month %d outside 0..%d for %s data: %w", req.Month, limit, schema.Granularity, ErrInvalidPivot)
	}
	if req.Group == "" {
		req.Group = schema.EntityColumn
	}
	if req.Value == "" && len(schema.Measures) > 0 {
		req.Value = schema.Measures[0].Name
	}
	m, ok := schema.Measure(req.Value)
	if !ok {
		return PivotResult{}, fmt.Errorf("%s.%s: %w", dataset, req.Value, core.ErrUnknownColumn)
	}
	if req.Agg == "" {
		req.Agg = m.Agg
	}

	filter = s.resolveFilter(filter)
	tables, err := s.load(ctx, []string{dataset}, filter)
	if err != nil {
		return PivotResult{}, err
	}
	t := tables[dataset]

	key := cache.Key("pivot:"+dataset, []uint64{cache.Fingerprint(t)},
		req.Kind, req.Group, req.Value, req.Month, req.Year, int(req.Order), req.Agg, s.opts.Digits)
	return s.pivots.Do(key, func() (PivotResult, error) {
		obs, err := t.Observations(req.Value, req.Group)
		if err != nil {
			return PivotResult{}, err
		}
		g := schema.Granularity
		period := aggregate.ResolvePeriod(obs, g)
		out := PivotResult{Dataset: dataset, Kind: req.Kind, Period: period}
		if !period.Valid {
			return out, nil
		}
		month := req.Month
		if month == 0 {
			month = period.LatestMonth
		}
		year := req.Year
		if year == 0 {
			year = period.CompleteYear
		}

		var yearly bool
		switch req.Kind {
		case PivotMonthly:
			out.Pivot = aggregate.PeriodSeries(obs, g, req.Agg)
		case PivotSnapshot:
			out.Pivot, yearly = aggregate.YearSnapshot(obs, month, req.Agg), true
		case PivotYTD:
			out.Pivot, yearly = aggregate.YearToDate(obs, month, req.Agg), true
		case PivotAnnual:
			out.Pivot, yearly = aggregate.AnnualSeries(obs, year, req.Order, req.Agg), true
		default:
			return PivotResult{}, fmt.Errorf("kind %q: %w", req.Kind, ErrInvalidPivot)
		}
		if order := schema.Order(req.Group); len(order) > 0 {
			out.Pivot = aggregate.Reorder(out.Pivot, order)
		}
		out.Pivot.Name = m.Label
		if yearly {
			v := aggregate.LagVariations(out.Pivot, s.opts.Digits)
			out.Variations = &v
		}
		return out, nil
	})
}
