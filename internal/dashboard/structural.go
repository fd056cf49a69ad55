package dashboard

import (
	"slices"

	"indicadores/internal/aggregate"
	"indicadores/internal/core"
)

// Annual topics: economy size, population and schooling.

type annualIndicator struct {
	id, measure, title string
	agg                core.Agg
	decimals           int
	yoy, headline      bool
}

// annualIndicators adds one municipality by year pivot per indicator, newest
// year first. Headline indicators also get a focus KPI.
func (b *builder) annualIndicators(t core.Table, list []annualIndicator) (aggregate.Period, error) {
	var period aggregate.Period
	for _, ind := range list {
		obs, err := t.Observations(ind.measure, t.Schema.EntityColumn)
		if err != nil {
			return period, err
		}
		p := aggregate.ResolvePeriod(obs, core.Annual)
		if !p.Valid {
			continue
		}
		if !period.Valid {
			period = p
		}
		annual := aggregate.AnnualSeries(obs, p.LatestYear, aggregate.Descending, ind.agg)
		if ind.headline {
			b.kpi(ind.title, annual, p.LatestYear, 0, ind.decimals)
		}
		if ind.yoy {
			b.pivotYoY(ind.id, ind.title+" por município", ChartBar, ind.decimals, annual)
		} else {
			b.pivot(ind.id, ind.title+" por município", ChartLine, ind.decimals, annual)
		}
	}
	b.setPeriod(period, core.Annual)
	return period, nil
}

var vabSectors = []struct{ id, measure string }{
	{"agropecuaria", "valor_adicionado_bruto_agropecuaria_milhoes"},
	{"industria", "valor_adicionado_bruto_industria_milhoes"},
	{"servicos", "valor_adicionado_bruto_servicos_milhoes"},
	{"adm", "valor_adicionado_bruto_adm_milhoes"},
}

func buildPIB(b *builder) error {
	t := b.table(core.DatasetPIB)
	period, err := b.annualIndicators(t, []annualIndicator{
		{"pib", "pib_milhoes", "PIB (Milhões R$)", core.AggSum, 0, true, true},
		{"pib_per_capita", "pib_per_capita", "PIB per capita (R$)", core.AggSum, 0, true, true},
		{"participacao_rs", "percentual_pib_rs", "Participação no PIB do RS (%)", core.AggMean, 2, false, false},
		{"ranking_rs", "posicao_pib_geral", "Posição no ranking do PIB do RS", core.AggMean, 0, false, false},
	})
	if err != nil || !period.Valid {
		return err
	}

	measures := make([]string, len(vabSectors))
	for i, sector := range vabSectors {
		measures[i] = sector.measure
		m, _ := t.Schema.Measure(sector.measure)
		obs, err := b.obs(core.DatasetPIB, sector.measure, "municipio")
		if err != nil {
			return err
		}
		b.pivotYoY("vab_"+sector.id, "VAB "+m.Label+" por município (Milhões R$)", ChartLine, 0,
			aggregate.AnnualSeries(obs, period.LatestYear, aggregate.Descending, core.AggSum))
	}

	sectors, err := measureObs(aggregate.ScopeToFocus(t, t.Schema.EntityColumn, b.focus), measures...)
	if err != nil {
		return err
	}
	bySector := aggregate.AnnualSeries(sectors, period.LatestYear, aggregate.Descending, core.AggSum)
	b.pivotYoY("vab_setor", "VAB de "+b.focus+" por setor (Milhões R$)", ChartBar, 0, bySector)
	b.pivot("vab_estrutura", "Estrutura do VAB de "+b.focus+" (%)", ChartBar, 1, aggregate.Share(bySector, 1))
	return nil
}

func buildDemografia(b *builder) error {
	_, err := b.annualIndicators(b.table(core.DatasetPopulacao), []annualIndicator{
		{"populacao", "pop_estimada", "População estimada", core.AggSum, 0, true, true},
		{"densidade", "densidade_demografica", "Densidade demográfica (hab/km²)", core.AggMean, 1, false, true},
	})
	if err != nil {
		return err
	}

	t := aggregate.ScopeToFocus(b.table(core.DatasetPopulacaoSexoIdade), "municipio", b.focus)
	bySex, err := t.Observations("pop_estimada", "sexo")
	if err != nil {
		return err
	}
	sp := aggregate.ResolvePeriod(bySex, core.Annual)
	if !sp.Valid {
		return nil
	}
	b.setPeriod(sp, core.Annual)
	b.pivot("sexo", "População de "+b.focus+" por sexo (%)", ChartBar, 1,
		aggregate.Share(aggregate.AnnualSeries(bySex, sp.LatestYear, aggregate.Descending, core.AggSum), 1))

	if p := agePyramid(t, sp.LatestYear, b.digits); !p.Empty() {
		b.pivot("piramide", "Pirâmide etária de "+b.focus+" ("+core.PeriodLabel(core.Annual, sp.LatestYear, 0)+", %)", ChartBar, 1, p)
	}
	return nil
}

var pyramidSexes = []string{"Masculino", "Feminino"}

// agePyramid tabulates one year of population by age bracket and sex, as
// shares of the total in percent. Rows follow core.PopulationAgeOrder.
func agePyramid(t core.Table, year, digits int) aggregate.Pivot {
	rows := make(map[string]int, len(core.PopulationAgeOrder))
	p := aggregate.Pivot{Columns: pyramidSexes}
	for i, bracket := range core.PopulationAgeOrder {
		rows[bracket] = i
		p.Index = append(p.Index, aggregate.Key{Label: bracket})
		p.Cells = append(p.Cells, make([]float64, len(pyramidSexes)))
	}
	var total float64
	for _, r := range t.Records {
		v, ok := r.Values["pop_estimada"]
		if !ok || r.Year != year {
			continue
		}
		total += v
		i, ok := rows[r.Dims["faixa_etaria"]]
		j := slices.Index(pyramidSexes, r.Dims["sexo"])
		if ok && j >= 0 {
			p.Cells[i][j] += v
		}
	}
	if total == 0 {
		return aggregate.Pivot{}
	}
	for i := range p.Cells {
		for j := range p.Cells[i] {
			p.Cells[i][j] = aggregate.Round(p.Cells[i][j]/total*100, digits)
		}
	}
	return p
}

// totalNetwork keeps the rows published for all school networks together,
// or every row when the source only breaks them down.
func totalNetwork(t core.Table) core.Table {
	if total := t.Where("dependencia", "total"); total.Len() > 0 {
		return total
	}
	return t
}

var idebStages = []struct{ id, title string }{
	{"anos_iniciais", "Anos Iniciais"},
	{"anos_finais", "Anos Finais"},
}

func buildEducacao(b *builder) error {
	mat := totalNetwork(b.table(core.DatasetEducacaoMatriculas))
	period, err := b.annualIndicators(mat, []annualIndicator{
		{"escolas", "qntd_escolas", "Escolas", core.AggSum, 0, true, true},
		{"matriculas", "mat_basico", "Matrículas na educação básica", core.AggSum, 0, true, true},
		{"docentes", "docentes_basico", "Docentes na educação básica", core.AggSum, 0, true, false},
		{"turmas", "turmas_basico", "Turmas na educação básica", core.AggSum, 0, true, false},
	})
	if err != nil {
		return err
	}
	if period.Valid {
		stages, err := measureObs(aggregate.ScopeToFocus(mat, "municipio", b.focus),
			"mat_infantil", "mat_fundamental", "mat_medio", "mat_profissional", "mat_eja")
		if err != nil {
			return err
		}
		b.pivotYoY("matriculas_etapa", "Matrículas em "+b.focus+" por etapa", ChartBar, 0,
			aggregate.AnnualSeries(stages, period.LatestYear, aggregate.Descending, core.AggSum))
	}

	rend := totalNetwork(b.table(core.DatasetEducacaoRendimento))
	rates, err := measureObs(aggregate.ScopeToFocus(rend, "municipio", b.focus),
		"taxa_aprovacao_fundamental", "taxa_reprovacao_fundamental", "taxa_abandono_fundamental", "taxa_distorcao_fundamental")
	if err != nil {
		return err
	}
	if rp := aggregate.ResolvePeriod(rates, core.Annual); rp.Valid {
		b.setPeriod(rp, core.Annual)
		b.pivot("rendimento", "Taxas de rendimento do ensino fundamental em "+b.focus+" (%)", ChartLine, 1,
			aggregate.AnnualSeries(rates, rp.LatestYear, aggregate.Descending, core.AggMean))
	}

	ideb := b.table(core.DatasetIdebMunicipio).Where("indicador", "ideb").Where("dependencia", "publica")
	schools := b.table(core.DatasetIdebEscolas).Where("indicador", "ideb")
	for _, stage := range idebStages {
		obs, err := ideb.Where("categoria", stage.id).Observations("valor", "municipio")
		if err != nil {
			return err
		}
		ip := aggregate.ResolvePeriod(obs, core.Annual)
		if !ip.Valid {
			continue
		}
		b.setPeriod(ip, core.Annual)
		// IDEB is published every other year, so there is no lag variation.
		series := aggregate.AnnualSeries(obs, ip.LatestYear, aggregate.Ascending, core.AggMean)
		b.kpi("IDEB "+stage.title+" (rede pública)", series, ip.LatestYear, 0, 1)
		b.pivot("ideb_"+stage.id, "IDEB "+stage.title+" da rede pública por município", ChartBar, 1, series)

		byschool, err := schools.Where("categoria", stage.id).Observations("valor", "escola")
		if err != nil {
			return err
		}
		sp := aggregate.ResolvePeriod(byschool, core.Annual)
		if !sp.Valid {
			continue
		}
		ranked := aggregate.AnnualSeries(byschool, sp.LatestYear, aggregate.Descending, core.AggMean)
		ranked = aggregate.TopN(aggregate.SortColumnsByRow(ranked, 0, true), topRanked)
		b.pivot("ideb_escolas_"+stage.id, "Escolas com maior IDEB - "+stage.title, ChartNone, 1, ranked)
	}
	return nil
}
