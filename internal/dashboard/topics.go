package dashboard

import (
	"slices"
	"strings"

	"indicadores/internal/aggregate"
	"indicadores/internal/core"
)

const (
	TopicEmprego   = "emprego"
	TopicComercio  = "comercio"
	TopicSeguranca = "seguranca"
	TopicFinancas  = "financas"
	TopicEmpresas  = "empresas"
	TopicSaude     = "saude"

	TopicPIB         = "pib"
	TopicDemografia  = "demografia"
	TopicEducacao    = "educacao"
	TopicAssistencia = "assistencia_social"
)

// topRanked is the number of countries and products shown in rankings.
const topRanked = 10

// rreoColumn is the RREO column compared across years when present.
const rreoColumn = "Até o Bimestre"

func topics() []topic {
	return []topic{
		{TopicInfo{TopicEmprego, "Emprego", []string{
			core.DatasetEmpregoMunicipios, core.DatasetEmpregoCNAE, core.DatasetEmpregoInstrucao,
			core.DatasetEmpregoFaixa, core.DatasetEmpregoSexo,
		}}, buildEmprego},
		{TopicInfo{TopicComercio, "Comércio exterior", []string{
			core.DatasetComexMunicipio, core.DatasetComexMensal,
		}}, buildComercio},
		{TopicInfo{TopicSeguranca, "Segurança", []string{core.DatasetSeguranca}}, buildSeguranca},
		{TopicInfo{TopicFinancas, "Finanças públicas", []string{core.DatasetSiconfiRREO}}, buildFinancas},
		{TopicInfo{TopicEmpresas, "Empresas", []string{core.DatasetCNPJTotal, core.DatasetEstabelecimentos}}, buildEmpresas},
		{TopicInfo{TopicSaude, "Saúde", []string{core.DatasetSaudeMensal}}, buildSaude},
		{TopicInfo{TopicPIB, "PIB", []string{core.DatasetPIB}}, buildPIB},
		{TopicInfo{TopicDemografia, "Demografia", []string{core.DatasetPopulacao, core.DatasetPopulacaoSexoIdade}}, buildDemografia},
		{TopicInfo{TopicEducacao, "Educação", []string{
			core.DatasetEducacaoMatriculas, core.DatasetEducacaoRendimento, core.DatasetIdebMunicipio, core.DatasetIdebEscolas,
		}}, buildEducacao},
		{TopicInfo{TopicAssistencia, "Assistência social", []string{core.DatasetCadUnico, core.DatasetBolsaFamilia}}, buildAssistencia},
	}
}

func buildEmprego(b *builder) error {
	const saldo = "saldo_movimentacao"
	obs, err := b.obs(core.DatasetEmpregoMunicipios, saldo, "municipio")
	if err != nil {
		return err
	}
	period := aggregate.ResolvePeriod(obs, core.Monthly)
	if !period.Valid {
		return nil
	}
	b.setPeriod(period, core.Monthly)

	snapshot := aggregate.YearSnapshot(obs, period.LatestMonth, core.AggSum)
	ytd := aggregate.YearToDate(obs, period.LatestMonth, core.AggSum)
	annual := aggregate.AnnualSeries(obs, period.CompleteYear, aggregate.Descending, core.AggSum)

	b.kpi("Saldo de empregos no mês", snapshot, period.LatestYear, period.LatestMonth, 0)
	b.kpi("Saldo de empregos no ano", ytd, period.LatestYear, period.LatestMonth, 0)
	b.kpi("Saldo de empregos em "+core.PeriodLabel(core.Annual, period.CompleteYear, 0), annual, period.CompleteYear, 0, 0)

	b.pivot("mensal", "Saldo mensal por município", ChartLine, 0, aggregate.MonthlySeries(obs, core.AggSum))
	b.pivotYoY("mes", "Saldo em "+core.MonthName(period.LatestMonth)+" por município", ChartBar, 0, snapshot)
	b.pivotYoY("acumulado", "Saldo acumulado no ano por município", ChartBar, 0, ytd)
	b.pivot("anual", "Saldo anual por município", ChartBar, 0, annual)

	breakdowns := []struct {
		id, title, dataset, dim string
		order                   []string
	}{
		{"setor", "Saldo por setor", core.DatasetEmpregoCNAE, "secao", nil},
		{"instrucao", "Saldo por grau de instrução", core.DatasetEmpregoInstrucao, "grau_instrucao", core.EducationOrder},
		{"faixa_etaria", "Saldo por faixa etária", core.DatasetEmpregoFaixa, "faixa_etaria", core.AgeBracketOrder},
		{"sexo", "Saldo por sexo", core.DatasetEmpregoSexo, "sexo", nil},
	}
	for _, bd := range breakdowns {
		cat, err := b.focusObs(bd.dataset, saldo, bd.dim)
		if err != nil {
			return err
		}
		b.categories(bd.id, bd.title+" em "+b.focus, cat, bd.order, period, core.AggSum)
	}
	return nil
}

func buildComercio(b *builder) error {
	obs, err := b.obs(core.DatasetComexMunicipio, "valor_exp", "municipio")
	if err != nil {
		return err
	}
	period := aggregate.ResolvePeriod(obs, core.Monthly)
	if period.Valid {
		b.setPeriod(period, core.Monthly)
		snapshot := aggregate.YearSnapshot(obs, period.LatestMonth, core.AggSum)
		ytd := aggregate.YearToDate(obs, period.LatestMonth, core.AggSum)
		annual := aggregate.AnnualSeries(obs, period.CompleteYear, aggregate.Descending, core.AggSum)

		b.kpi("Exportações no mês (US$)", snapshot, period.LatestYear, period.LatestMonth, 0)
		b.kpi("Exportações no ano (US$)", ytd, period.LatestYear, period.LatestMonth, 0)
		b.kpi("Exportações em "+core.PeriodLabel(core.Annual, period.CompleteYear, 0)+" (US$)", annual, period.CompleteYear, 0, 0)

		b.pivotYoY("exp_acumulado", "Exportações acumuladas no ano por município (US$)", ChartBar, 0, ytd)
		b.pivot("exp_anual", "Exportações anuais por município (US$)", ChartBar, 0, annual)

		imp, err := b.obs(core.DatasetComexMunicipio, "valor_imp", "municipio")
		if err != nil {
			return err
		}
		b.pivotYoY("imp_acumulado", "Importações acumuladas no ano por município (US$)", ChartBar, 0,
			aggregate.YearToDate(imp, period.LatestMonth, core.AggSum))
	}

	for _, dim := range []struct{ id, col, title string }{
		{"pais", "pais", "Exportações de " + b.focus + " por país"},
		{"produto", "produto", "Exportações de " + b.focus + " por produto"},
	} {
		cat, err := b.focusObs(core.DatasetComexMensal, "valor_exp", dim.col)
		if err != nil {
			return err
		}
		p := aggregate.ResolvePeriod(cat, core.Monthly)
		if !p.Valid {
			continue
		}
		b.setPeriod(p, core.Monthly)
		ytd := aggregate.YearToDate(cat, p.LatestMonth, core.AggSum)
		ranked := aggregate.TopN(aggregate.SortColumnsByRow(ytd, ytd.RowIndex(p.LatestYear, p.LatestMonth), true), topRanked)
		b.pivotYoY(dim.id+"_ranking", dim.title+" - principais no ano", ChartBar, 0, ranked)

		rows := latestRows(aggregate.MonthlyYoY(cat, b.digits), p)
		top := ranked.Columns
		rows = slices.DeleteFunc(rows, func(r aggregate.MonthlyRow) bool { return !slices.Contains(top, r.Group) })
		b.monthlyYoY(dim.id+"_mensal", dim.title+" - mensal e acumulado", 0, rows)
	}
	return nil
}

var crimeMeasures = []string{"homicidio_doloso", "furtos", "roubos", "furto_veiculo", "roubo_veiculo"}

func buildSeguranca(b *builder) error {
	t := b.table(core.DatasetSeguranca)
	focus := aggregate.ScopeToFocus(t, t.Schema.EntityColumn, b.focus)
	byType, err := measureObs(focus, crimeMeasures...)
	if err != nil {
		return err
	}
	all, err := measureObs(t, crimeMeasures...)
	if err != nil {
		return err
	}
	period := aggregate.ResolvePeriod(all, core.Monthly)
	if !period.Valid {
		return nil
	}
	b.setPeriod(period, core.Monthly)

	snapshot := aggregate.YearSnapshot(byType, period.LatestMonth, core.AggSum)
	ytd := aggregate.YearToDate(byType, period.LatestMonth, core.AggSum)
	for _, name := range crimeMeasures {
		m, _ := t.Schema.Measure(name)
		obs, err := b.obs(core.DatasetSeguranca, name, "municipio")
		if err != nil {
			return err
		}
		b.kpi(m.Label+" no ano", aggregate.YearToDate(obs, period.LatestMonth, core.AggSum), period.LatestYear, period.LatestMonth, 0)
	}

	b.pivotYoY("ocorrencias_mes", "Ocorrências em "+b.focus+" - "+period.Label(core.Monthly), ChartBar, 0, snapshot)
	b.pivotYoY("ocorrencias_acumulado", "Ocorrências em "+b.focus+" - acumulado no ano", ChartBar, 0, ytd)
	b.pivot("ocorrencias_mensal", "Ocorrências mensais em "+b.focus, ChartLine, 0, aggregate.MonthlySeries(byType, core.AggSum))

	hom, err := b.obs(core.DatasetSeguranca, "homicidio_doloso", "municipio")
	if err != nil {
		return err
	}
	b.pivotYoY("homicidios_municipios", "Homicídios dolosos acumulados no ano por município", ChartBar, 0,
		aggregate.YearToDate(hom, period.LatestMonth, core.AggSum))
	return nil
}

func buildFinancas(b *builder) error {
	t := b.table(core.DatasetSiconfiRREO)
	if cols := t.Distinct("coluna"); len(cols) > 1 {
		for _, c := range cols {
			if strings.HasPrefix(c, rreoColumn) {
				t = t.Where("coluna", c)
				break
			}
		}
	}
	focus := aggregate.ScopeToFocus(t, t.Schema.EntityColumn, b.focus)
	obs, err := focus.Observations("valor", "conta")
	if err != nil {
		return err
	}
	period := aggregate.ResolvePeriod(obs, core.Bimonthly)
	if !period.Valid {
		return nil
	}
	b.setPeriod(period, core.Bimonthly)

	series := aggregate.PeriodSeries(obs, core.Bimonthly, core.AggSum)
	for _, conta := range series.Columns {
		if len(b.page.KPIs) == 4 {
			break
		}
		y, ok := aggregate.YoYAt(series, period.LatestYear, period.LatestMonth, conta, b.digits)
		if !ok {
			continue
		}
		b.page.KPIs = append(b.page.KPIs, KPI{
			Label:     conta,
			Period:    period.Label(core.Bimonthly),
			Value:     y.Current,
			Prior:     y.Prior,
			Variation: y.Variation,
			Decimals:  2,
		})
	}
	b.pivotYoY("contas_bimestre", "Contas de "+b.focus+" por bimestre (R$)", ChartLine, 2, series)

	all, err := t.Observations("valor", "municipio", "conta")
	if err != nil {
		return err
	}
	snapshot := aggregate.PeriodSeries(all, core.Bimonthly, core.AggSum)
	b.pivotYoY("municipios_bimestre", "Contas por município e bimestre (R$)", ChartNone, 2, snapshot)
	return nil
}

func buildEmpresas(b *builder) error {
	obs, err := b.obs(core.DatasetCNPJTotal, "empresas_ativas", "municipio")
	if err != nil {
		return err
	}
	period := aggregate.ResolvePeriod(obs, core.Monthly)
	if period.Valid {
		b.setPeriod(period, core.Monthly)
		snapshot := aggregate.YearSnapshot(obs, period.LatestMonth, core.AggSum)
		b.kpi("Empresas ativas", snapshot, period.LatestYear, period.LatestMonth, 0)
		b.pivotYoY("ativas_mes", "Empresas ativas em "+period.Label(core.Monthly)+" por município", ChartBar, 0, snapshot)
		b.pivot("ativas_mensal", "Empresas ativas por mês", ChartLine, 0, aggregate.MonthlySeries(obs, core.AggSum))

		grupos, err := b.focusObs(core.DatasetCNPJTotal, "empresas_ativas", "grupo_ibge")
		if err != nil {
			return err
		}
		snap := aggregate.YearSnapshot(grupos, period.LatestMonth, core.AggSum)
		b.pivotYoY("ativas_setor", "Empresas ativas em "+b.focus+" por setor", ChartBar, 0,
			aggregate.SortColumnsByRow(snap, snap.RowIndex(period.LatestYear, period.LatestMonth), true))
	}

	estab, err := b.obs(core.DatasetEstabelecimentos, "qntd_estabelecimentos", "municipio")
	if err != nil {
		return err
	}
	ep := aggregate.ResolvePeriod(estab, core.Annual)
	if !ep.Valid {
		return nil
	}
	b.setPeriod(ep, core.Annual)
	annual := aggregate.AnnualSeries(estab, ep.LatestYear, aggregate.Descending, core.AggSum)
	b.kpi("Estabelecimentos", annual, ep.LatestYear, 0, 0)
	b.pivotYoY("estabelecimentos_municipios", "Estabelecimentos por município", ChartBar, 0, annual)

	sizes, err := b.focusObs(core.DatasetEstabelecimentos, "qntd_estabelecimentos", "tamanho")
	if err != nil {
		return err
	}
	bySize := aggregate.Reorder(aggregate.AnnualSeries(sizes, ep.LatestYear, aggregate.Descending, core.AggSum), core.EstablishmentSizeOrder)
	b.pivot("estabelecimentos_tamanho", "Estabelecimentos de "+b.focus+" por tamanho", ChartBar, 0, bySize)
	return nil
}

func buildSaude(b *builder) error {
	nasc, err := b.obs(core.DatasetSaudeMensal, "nascimentos", "municipio")
	if err != nil {
		return err
	}
	period := aggregate.ResolvePeriod(nasc, core.Monthly)
	if !period.Valid {
		return nil
	}
	b.setPeriod(period, core.Monthly)

	ytd := aggregate.YearToDate(nasc, period.LatestMonth, core.AggSum)
	b.kpi("Nascimentos no ano", ytd, period.LatestYear, period.LatestMonth, 0)
	b.pivotYoY("nascimentos_acumulado", "Nascimentos acumulados no ano por município", ChartBar, 0, ytd)

	rates := []struct{ id, measure, title string }{
		{"obitos_infantis", "taxa_obitos_infantis", "Taxa de óbitos infantis"},
		{"baixo_peso", "prop_nasc_baixo_peso", "Nascidos com baixo peso (%)"},
		{"pre_natal", "prop_consultas_pre_natal", "Gestantes com 7+ consultas pré-natal (%)"},
	}
	for _, r := range rates {
		obs, err := b.obs(core.DatasetSaudeMensal, r.measure, "municipio")
		if err != nil {
			return err
		}
		rytd := aggregate.YearToDate(obs, period.LatestMonth, core.AggMean)
		b.kpi(r.title+" (média no ano)", rytd, period.LatestYear, period.LatestMonth, 2)
		b.pivotYoY(r.id+"_acumulado", r.title+" - média no ano por município", ChartBar, 2, rytd)
		b.pivot(r.id+"_anual", r.title+" - média anual por município", ChartLine, 2,
			aggregate.AnnualSeries(obs, period.CompleteYear, aggregate.Ascending, core.AggMean))
	}
	return nil
}

func buildAssistencia(b *builder) error {
	programs := []struct {
		id, dataset, headline, title string
		detail                       []string
	}{
		{"cad", core.DatasetCadUnico, "total_familias", "Famílias inscritas no Cadastro Único",
			[]string{"total_pessoas", "total_familias", "qtd_fam_pob", "qtd_fam_baixa_renda"}},
		{"bolsa", core.DatasetBolsaFamilia, "qtd_beneficiados", "Beneficiários do Novo Bolsa Família",
			[]string{"qtd_beneficiados", "valor_total_beneficio"}},
	}
	for _, pr := range programs {
		obs, err := b.obs(pr.dataset, pr.headline, "municipio")
		if err != nil {
			return err
		}
		period := aggregate.ResolvePeriod(obs, core.Monthly)
		if !period.Valid {
			continue
		}
		b.setPeriod(period, core.Monthly)

		snapshot := aggregate.YearSnapshot(obs, period.LatestMonth, core.AggSum)
		b.kpi(pr.title, snapshot, period.LatestYear, period.LatestMonth, 0)
		b.pivotYoY(pr.id+"_mes", pr.title+" em "+period.Label(core.Monthly)+" por município", ChartBar, 0, snapshot)
		b.pivot(pr.id+"_mensal", pr.title+" por mês", ChartLine, 0, aggregate.MonthlySeries(obs, core.AggSum))

		t := b.table(pr.dataset)
		detail, err := measureObs(aggregate.ScopeToFocus(t, t.Schema.EntityColumn, b.focus), pr.detail...)
		if err != nil {
			return err
		}
		b.pivotYoY(pr.id+"_indicadores", pr.title+" - indicadores de "+b.focus+" em "+core.MonthName(period.LatestMonth), ChartNone, 0,
			aggregate.YearSnapshot(detail, period.LatestMonth, core.AggSum))
	}
	return nil
}
