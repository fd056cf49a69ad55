package dashboard

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"indicadores/internal/cache"
	"indicadores/internal/core"
	"indicadores/internal/sources/memory"
)

const focus = "São Leopoldo"

type countingObserver struct{ hits, misses int }

func (o *countingObserver) CacheHit(string)  { o.hits++ }
func (o *countingObserver) CacheMiss(string) { o.misses++ }

func monthlyRecords(municipio string, year, months int, values map[string]float64) []core.Record {
	var out []core.Record
	for m := 1; m <= months; m++ {
		out = append(out, core.Record{
			Year:   year,
			Month:  m,
			Dims:   map[string]string{"municipio": municipio},
			Values: values,
		})
	}
	return out
}

func newTestService(t *testing.T) (*Service, *memory.Store, *countingObserver) {
	t.Helper()
	catalog := core.DefaultCatalog()
	store := memory.New(catalog)

	var emprego []core.Record
	emprego = append(emprego, monthlyRecords(focus, 2023, 12, map[string]float64{"saldo_movimentacao": 10})...)
	emprego = append(emprego, monthlyRecords(focus, 2024, 3, map[string]float64{"saldo_movimentacao": 12})...)
	emprego = append(emprego, monthlyRecords("Canoas", 2023, 12, map[string]float64{"saldo_movimentacao": 5})...)
	emprego = append(emprego, monthlyRecords("Canoas", 2024, 3, map[string]float64{"saldo_movimentacao": 5})...)
	if err := store.Put(core.DatasetEmpregoMunicipios, emprego); err != nil {
		t.Fatalf("put: %v", err)
	}

	crimes := map[string]float64{"homicidio_doloso": 2, "furtos": 40, "roubos": 10, "furto_veiculo": 4, "roubo_veiculo": 1}
	var seg []core.Record
	seg = append(seg, monthlyRecords(focus, 2023, 12, crimes)...)
	seg = append(seg, monthlyRecords(focus, 2024, 2, map[string]float64{"homicidio_doloso": 1, "furtos": 50, "roubos": 10, "furto_veiculo": 2, "roubo_veiculo": 0})...)
	if err := store.Put(core.DatasetSeguranca, seg); err != nil {
		t.Fatalf("put: %v", err)
	}

	obs := &countingObserver{}
	svc := NewService(store, catalog, Options{
		Focus:          focus,
		Municipalities: []string{"Canoas"},
		Years:          []int{2023, 2024},
	}, cache.NewLRUCache[Page](16, time.Hour), obs)
	return svc, store, obs
}

func TestEmpregoPage(t *testing.T) {
	svc, _, _ := newTestService(t)

	page, err := svc.Page(context.Background(), TopicEmprego, core.Filter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Focus != focus || page.PeriodLabel != "Mar/24" {
		t.Fatalf("focus=%q period=%q", page.Focus, page.PeriodLabel)
	}
	if page.Period.CompleteYear != 2023 {
		t.Fatalf("complete year = %d", page.Period.CompleteYear)
	}

	if len(page.KPIs) != 3 {
		t.Fatalf("kpis = %+v", page.KPIs)
	}
	month, ytd, annual := page.KPIs[0], page.KPIs[1], page.KPIs[2]
	if month.Value != 12 || !month.Variation.Valid || month.Variation.Value != 20 {
		t.Fatalf("month kpi = %+v", month)
	}
	if ytd.Value != 36 || ytd.Prior.Value != 30 || ytd.Variation.Value != 20 || ytd.Period != "Jan-Mar/24" {
		t.Fatalf("ytd kpi = %+v", ytd)
	}
	if annual.Value != 120 || annual.Prior.Valid || annual.Variation.Valid {
		t.Fatalf("annual kpi = %+v", annual)
	}

	for _, id := range []string{"mensal", "mes", "acumulado", "anual"} {
		if _, ok := page.Section(id); !ok {
			t.Fatalf("missing section %q", id)
		}
	}
	if _, ok := page.Section("setor_mes"); ok {
		t.Fatal("sector section without data")
	}

	acc, _ := page.Section("acumulado")
	if v, _ := acc.Pivot.Value(2024, 3, "Canoas"); v != 15 {
		t.Fatalf("Canoas ytd = %v", v)
	}
	if acc.Variations.Cells[1][acc.Pivot.ColumnIndex("Canoas")].Value != 0 {
		t.Fatalf("Canoas variation = %+v", acc.Variations.Cells[1])
	}
}

func TestPageMemoHitMatchesMiss(t *testing.T) {
	svc, store, obs := newTestService(t)
	ctx := context.Background()

	first, err := svc.Page(ctx, TopicEmprego, core.Filter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	second, err := svc.Page(ctx, TopicEmprego, core.Filter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if obs.misses != 1 || obs.hits != 1 {
		t.Fatalf("hits=%d misses=%d", obs.hits, obs.misses)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("cached page differs from computed page")
	}

	// New data changes the fingerprint and misses.
	if err := store.Put(core.DatasetEmpregoMunicipios, monthlyRecords(focus, 2024, 4, map[string]float64{"saldo_movimentacao": 1})); err != nil {
		t.Fatalf("put: %v", err)
	}
	third, err := svc.Page(ctx, TopicEmprego, core.Filter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if obs.misses != 2 || third.PeriodLabel != "Abr/24" {
		t.Fatalf("misses=%d period=%q", obs.misses, third.PeriodLabel)
	}
}

func TestUnknownTopicAndSection(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Page(ctx, "turismo", core.Filter{}); !errors.Is(err, core.ErrUnknownTopic) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Section(ctx, TopicEmprego, "nope", core.Filter{}); !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("err = %v", err)
	}
}

func TestEmptyTopicPage(t *testing.T) {
	svc, _, _ := newTestService(t)

	page, err := svc.Page(context.Background(), TopicSaude, core.Filter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if !page.Empty() || page.Period.Valid {
		t.Fatalf("page = %+v", page)
	}
}

func TestSegurancaPage(t *testing.T) {
	svc, _, _ := newTestService(t)

	page, err := svc.Page(context.Background(), TopicSeguranca, core.Filter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	sec, ok := page.Section("ocorrencias_acumulado")
	if !ok {
		t.Fatalf("sections = %+v", page.Sections)
	}
	v, ok := sec.Pivot.Value(2024, 2, "Furtos")
	if !ok || v != 100 {
		t.Fatalf("furtos ytd = %v, %v", v, ok)
	}
	col := sec.Pivot.ColumnIndex("Furtos")
	if got := sec.Variations.Cells[1][col]; !got.Valid || got.Value != 25 {
		t.Fatalf("furtos variation = %+v", got)
	}
	roubo := sec.Pivot.ColumnIndex("Roubo de Veículo")
	if got := sec.Variations.Cells[1][roubo]; !got.Valid || got.Value != -100 {
		t.Fatalf("roubo de veiculo variation = %+v", got)
	}
}

func TestFilterNarrowsMunicipalities(t *testing.T) {
	svc, _, _ := newTestService(t)

	page, err := svc.Page(context.Background(), TopicEmprego, core.Filter{Municipalities: []string{focus}})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	sec, _ := page.Section("anual")
	if !reflect.DeepEqual(sec.Pivot.Columns, []string{focus}) {
		t.Fatalf("columns = %v", sec.Pivot.Columns)
	}
}

func TestFilterKeepsFocus(t *testing.T) {
	svc, _, _ := newTestService(t)

	page, err := svc.Page(context.Background(), TopicEmprego, core.Filter{Municipalities: []string{"Canoas"}})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.KPIs) != 3 {
		t.Fatalf("focus KPIs missing: %+v", page.KPIs)
	}
	sec, _ := page.Section("anual")
	if len(sec.Pivot.Columns) != 2 || sec.Pivot.ColumnIndex(focus) < 0 {
		t.Fatalf("columns = %v", sec.Pivot.Columns)
	}
}

func TestPivot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Pivot(ctx, core.DatasetEmpregoMunicipios, core.Filter{}, PivotRequest{Kind: PivotYTD})
	if err != nil {
		t.Fatalf("pivot: %v", err)
	}
	if v, _ := res.Pivot.Value(2024, 3, focus); v != 36 {
		t.Fatalf("ytd = %v", v)
	}
	if res.Variations == nil {
		t.Fatal("missing variations")
	}

	res, err = svc.Pivot(ctx, core.DatasetEmpregoMunicipios, core.Filter{}, PivotRequest{Kind: PivotMonthly})
	if err != nil {
		t.Fatalf("pivot: %v", err)
	}
	if len(res.Pivot.Index) != 15 || res.Variations != nil {
		t.Fatalf("monthly rows = %d", len(res.Pivot.Index))
	}

	if _, err := svc.Pivot(ctx, core.DatasetEmpregoMunicipios, core.Filter{}, PivotRequest{Kind: "weekly"}); !errors.Is(err, ErrInvalidPivot) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Pivot(ctx, "nope", core.Filter{}, PivotRequest{Kind: PivotYTD}); !errors.Is(err, core.ErrUnknownDataset) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Pivot(ctx, core.DatasetEmpregoMunicipios, core.Filter{}, PivotRequest{Kind: PivotYTD, Value: "nope"}); !errors.Is(err, core.ErrUnknownColumn) {
		t.Fatalf("err = %v", err)
	}
}

func TestPivotMonthBoundedByGranularity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		dataset string
		month   int
		wantErr bool
	}{
		{core.DatasetEmpregoMunicipios, 12, false},
		{core.DatasetEmpregoMunicipios, 13, true},
		{core.DatasetSiconfiRREO, 6, false},
		{core.DatasetSiconfiRREO, 9, true},
		{core.DatasetEstabelecimentos, 1, true},
		{core.DatasetEstabelecimentos, 0, false},
	}
	for _, tt := range tests {
		_, err := svc.Pivot(ctx, tt.dataset, core.Filter{}, PivotRequest{Kind: PivotSnapshot, Month: tt.month})
		if got := errors.Is(err, ErrInvalidPivot); got != tt.wantErr {
			t.Fatalf("%s month %d: err = %v", tt.dataset, tt.month, err)
		}
	}
}

func TestSectionGrid(t *testing.T) {
	svc, _, _ := newTestService(t)

	sec, err := svc.Section(context.Background(), TopicEmprego, "acumulado", core.Filter{})
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	g := sec.Grid()
	if len(g.Header) != 3 || g.Header[0] != "Período" {
		t.Fatalf("header = %v", g.Header)
	}
	last := g.Rows[len(g.Rows)-1]
	c := last.Cells[sec.Pivot.ColumnIndex(focus)]
	if last.Label != "Jan-Mar/24" || c.Text != "36" || c.Variation != "+20,0%" || c.Trend != 1 {
		t.Fatalf("row = %+v", last)
	}
	if first := g.Rows[0].Cells[0]; first.Variation != "" || first.Trend != 0 {
		t.Fatalf("first row = %+v", first)
	}
}
