// Package dashboard assembles the topic pages of the indicators dashboard
// from the aggregation engine.
package dashboard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"indicadores/internal/aggregate"
	"indicadores/internal/cache"
	"indicadores/internal/core"
	"indicadores/internal/log"
	"indicadores/internal/sources"
)

// ChartKind selects how a section is plotted.
type ChartKind string

const (
	ChartNone ChartKind = ""
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
)

// SectionKind tells which payload a section carries.
type SectionKind string

const (
	KindPivot      SectionKind = "pivot"
	KindMonthlyYoY SectionKind = "monthly_yoy"
)

// KPI is a headline number for the focus municipality.
type KPI struct {
	Label     string             `json:"label"`
	Period    string             `json:"period"`
	Value     float64            `json:"value"`
	Prior     aggregate.Optional `json:"prior"`
	Variation aggregate.Optional `json:"variation"`
	Decimals  int                `json:"decimals"`
}

func (k KPI) Display() string { return core.FormatNumber(k.Value, k.Decimals) }
func (k KPI) VariationDisplay() string {
	return core.FormatPercent(k.Variation.Value, k.Variation.Valid)
}

// Section is one table of a page.
type Section struct {
	ID         string                    `json:"id"`
	Title      string                    `json:"title"`
	Kind       SectionKind               `json:"kind"`
	Chart      ChartKind                 `json:"chart,omitempty"`
	Decimals   int                       `json:"decimals"`
	Pivot      *aggregate.Pivot          `json:"pivot,omitempty"`
	Variations *aggregate.VariationTable `json:"variations,omitempty"`
	Rows       []aggregate.MonthlyRow    `json:"rows,omitempty"`
}

// Page is a rendered topic.
type Page struct {
	Topic       string           `json:"topic"`
	Title       string           `json:"title"`
	Focus       string           `json:"focus"`
	Period      aggregate.Period `json:"period"`
	PeriodLabel string           `json:"period_label"`
	KPIs        []KPI            `json:"kpis"`
	Sections    []Section        `json:"sections"`
}

// Section returns the section with the given id.
func (p Page) Section(id string) (Section, bool) {
	for _, s := range p.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Empty reports whether no dataset of the page had data.
func (p Page) Empty() bool { return len(p.Sections) == 0 }

// TopicInfo describes an available topic.
type TopicInfo struct {
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Datasets []string `json:"datasets"`
}

type topic struct {
	TopicInfo
	build func(b *builder) error
}

// Options configures the dashboard service.
type Options struct {
	Focus          string
	Municipalities []string
	Years          []int
	Digits         int
	Logger         *log.Logger
	// PivotCache memoizes ad hoc pivots; a small in-process LRU when nil.
	PivotCache cache.Cache[PivotResult]
}

// Service builds topic pages. Pages are memoized by the fingerprints of the
// tables they were computed from, so a hit returns exactly what a miss built.
type Service struct {
	reader  sources.DatasetReader
	catalog core.Catalog
	opts    Options
	topics  map[string]topic
	pages   *cache.Memo[Page]
	pivots  *cache.Memo[PivotResult]
	logger  *log.Logger
}

func NewService(reader sources.DatasetReader, catalog core.Catalog, opts Options, pageCache cache.Cache[Page], observer cache.Observer) *Service {
	if opts.Digits <= 0 {
		opts.Digits = aggregate.DefaultRoundDigits
	}
	if opts.PivotCache == nil {
		opts.PivotCache = cache.NewLRUCache[PivotResult](256, time.Hour)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Service{
		reader:  reader,
		catalog: catalog,
		opts:    opts,
		topics:  make(map[string]topic),
		pages:   cache.NewMemo("pages", pageCache, observer),
		pivots:  cache.NewMemo("pivots", opts.PivotCache, observer),
		logger:  logger.WithComponent(log.ComponentDashboard),
	}
	for _, t := range topics() {
		s.topics[t.Slug] = t
	}
	return s
}

// Focus is the municipality the KPIs and category breakdowns describe.
func (s *Service) Focus() string { return s.opts.Focus }

// Topics lists the topics in display order.
func (s *Service) Topics() []TopicInfo {
	out := make([]TopicInfo, 0, len(s.topics))
	for _, t := range topics() {
		out = append(out, t.TopicInfo)
	}
	return out
}

// DefaultFilter scopes loads to the configured municipalities and years.
func (s *Service) DefaultFilter() core.Filter {
	ms := slices.Clone(s.opts.Municipalities)
	if s.opts.Focus != "" && !slices.Contains(ms, s.opts.Focus) {
		ms = append(ms, s.opts.Focus)
	}
	return core.Filter{Municipalities: ms, Years: slices.Clone(s.opts.Years)}
}

// resolveFilter fills empty fields from DefaultFilter and always keeps
// the focus municipality in scope.
func (s *Service) resolveFilter(f core.Filter) core.Filter {
	def := s.DefaultFilter()
	switch {
	case len(f.Municipalities) == 0:
		f.Municipalities = def.Municipalities
	case s.opts.Focus != "" && !slices.Contains(f.Municipalities, s.opts.Focus):
		f.Municipalities = append(slices.Clone(f.Municipalities), s.opts.Focus)
	}
	if len(f.Years) == 0 {
		f.Years = def.Years
	}
	return f
}

// Page builds the page of a topic. An empty filter uses DefaultFilter.
func (s *Service) Page(ctx context.Context, slug string, filter core.Filter) (Page, error) {
	t, ok := s.topics[slug]
	if !ok {
		return Page{}, fmt.Errorf("%q: %w", slug, core.ErrUnknownTopic)
	}
	filter = s.resolveFilter(filter)

	tables, err := s.load(ctx, t.Datasets, filter)
	if err != nil {
		return Page{}, err
	}

	fps := make([]uint64, len(t.Datasets))
	for i, name := range t.Datasets {
		fps[i] = cache.Fingerprint(tables[name])
	}
	key := cache.Key("page:"+slug, fps, s.opts.Focus, s.opts.Digits)

	return s.pages.Do(key, func() (Page, error) {
		b := &builder{
			page:   Page{Topic: slug, Title: t.Title, Focus: s.opts.Focus},
			focus:  s.opts.Focus,
			digits: s.opts.Digits,
			tables: tables,
		}
		if err := t.build(b); err != nil {
			return Page{}, fmt.Errorf("build %s: %w", slug, err)
		}
		if b.page.Empty() {
			s.logger.DebugContext(ctx, "Topic has no data", log.FieldTopic, slug)
		}
		return b.page, nil
	})
}

// Section returns one section of a topic page.
func (s *Service) Section(ctx context.Context, slug, id string, filter core.Filter) (Section, error) {
	p, err := s.Page(ctx, slug, filter)
	if err != nil {
		return Section{}, err
	}
	sec, ok := p.Section(id)
	if !ok {
		return Section{}, fmt.Errorf("section %q of %q: %w", id, slug, ErrUnknownSection)
	}
	return sec, nil
}

// InvalidatePages drops every memoized page and pivot.
func (s *Service) InvalidatePages() int {
	return s.pages.Invalidate("page:") + s.pivots.Invalidate("pivot:")
}

// load reads the datasets concurrently.
func (s *Service) load(ctx context.Context, datasets []string, filter core.Filter) (map[string]core.Table, error) {
	var mu sync.Mutex
	tables := make(map[string]core.Table, len(datasets))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range datasets {
		g.Go(func() error {
			t, err := s.reader.ReadDataset(gctx, name, filter)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			mu.Lock()
			tables[name] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}
