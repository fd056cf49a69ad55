package core

import (
	"fmt"
	"slices"
)

// Dataset names known to the dashboard.
const (
	DatasetEmpregoMunicipios = "emprego_municipios"
	DatasetEmpregoCNAE       = "emprego_cnae"
	DatasetEmpregoInstrucao  = "emprego_grau_instrucao"
	DatasetEmpregoFaixa      = "emprego_faixa_etaria"
	DatasetEmpregoSexo       = "emprego_sexo"
	DatasetComexMensal       = "comex_mensal"
	DatasetComexMunicipio    = "comex_municipio"
	DatasetSeguranca         = "seguranca"
	DatasetSiconfiRREO       = "siconfi_rreo"
	DatasetCNPJTotal         = "cnpj_total"
	DatasetEstabelecimentos  = "estabelecimentos"
	DatasetSaudeMensal       = "saude_mensal"

	DatasetPIB                = "pib_municipios"
	DatasetPopulacao          = "populacao_densidade"
	DatasetPopulacaoSexoIdade = "populacao_sexo_idade"
	DatasetEducacaoMatriculas = "educacao_matriculas"
	DatasetEducacaoRendimento = "educacao_rendimento"
	DatasetIdebMunicipio      = "educacao_ideb_municipio"
	DatasetIdebEscolas        = "educacao_ideb_escolas"
	DatasetCadUnico           = "cadastro_unico"
	DatasetBolsaFamilia       = "bolsa_familia"
)

// EducationOrder is the display order of education attainment levels.
var EducationOrder = []string{
	"Analfabeto",
	"Até 5ª Incompleto",
	"5ª Completo Fundamental",
	"6ª a 9ª Fundamental",
	"Fundamental Completo",
	"Médio Incompleto",
	"Médio Completo",
	"Superior Incompleto",
	"Superior Completo",
	"Pós-Graduação ou Mestrado",
	"Doutorado",
}

// EstablishmentSizeOrder is the display order of establishment size brackets.
var EstablishmentSizeOrder = []string{
	"De 1 a 4",
	"De 5 a 9",
	"De 10 a 19",
	"De 20 a 49",
	"De 50 a 99",
	"De 100 a 249",
	"De 250 a 499",
	"De 500 a 999",
	"1000 ou Mais",
}

// AgeBracketOrder is the display order of worker age brackets.
var AgeBracketOrder = []string{
	"Até 17 anos",
	"18 a 24 anos",
	"25 a 29 anos",
	"30 a 39 anos",
	"40 a 49 anos",
	"50 a 64 anos",
	"65 anos ou mais",
}

// PopulationAgeOrder is the display order of the age pyramid brackets.
var PopulationAgeOrder = []string{
	"Menos de 1 ano",
	"1 a 4 anos",
	"5 a 9 anos",
	"10 a 14 anos",
	"15 a 19 anos",
	"20 a 24 anos",
	"25 a 29 anos",
	"30 a 34 anos",
	"35 a 39 anos",
	"40 a 44 anos",
	"45 a 49 anos",
	"50 a 54 anos",
	"55 a 59 anos",
	"60 a 64 anos",
	"65 a 69 anos",
	"70 a 74 anos",
	"75 a 79 anos",
	"80 ou mais",
}

// Catalog maps dataset names to schemas.
type Catalog map[string]Schema

// Lookup returns the schema for name or ErrUnknownDataset.
func (c Catalog) Lookup(name string) (Schema, error) {
	s, ok := c[name]
	if !ok {
		return Schema{}, fmt.Errorf("%q: %w", name, ErrUnknownDataset)
	}
	return s, nil
}

// Names lists the datasets in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (c Catalog) Validate() error {
	for _, n := range c.Names() {
		if err := c[n].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func monthly(dataset, title, sheet string, dims []string, measures ...Measure) Schema {
	return Schema{
		Dataset:      dataset,
		Title:        title,
		SheetID:      sheet,
		YearColumn:   "ano",
		PeriodColumn: "mes",
		EntityColumn: "municipio",
		Granularity:  Monthly,
		Dimensions:   append([]string{"municipio"}, dims...),
		Measures:     measures,
	}
}

func annual(dataset, title, sheet string, dims []string, measures ...Measure) Schema {
	return Schema{
		Dataset:      dataset,
		Title:        title,
		SheetID:      sheet,
		YearColumn:   "ano",
		EntityColumn: "municipio",
		Granularity:  Annual,
		Dimensions:   append([]string{"municipio"}, dims...),
		Measures:     measures,
	}
}

func sum(name, label string) Measure  { return Measure{Name: name, Label: label, Agg: AggSum} }
func mean(name, label string) Measure { return Measure{Name: name, Label: label, Agg: AggMean} }

// DefaultCatalog returns the datasets published in the indicators spreadsheets.
func DefaultCatalog() Catalog {
	c := Catalog{}
	add := func(s Schema) { c[s.Dataset] = s }

	saldo := sum("saldo_movimentacao", "Saldo de empregos")
	add(monthly(DatasetEmpregoMunicipios, "Emprego por município", "1R-ehxIUZnRZLetEL0b2SgvkK-YQdtBBl1ff_dtgAYpg", nil, saldo))
	add(monthly(DatasetEmpregoCNAE, "Emprego por setor (CNAE)", "1scPanyLdRKBLkWSwhxQiZryS1wVinfQ6vCqZakbkDmg", []string{"secao", "grupo"}, saldo))

	instrucao := monthly(DatasetEmpregoInstrucao, "Emprego por grau de instrução", "1WlBPJMbgMkAReFFeraqhHPHeIMA0oPoJ3A2d7sF52ns", []string{"grau_instrucao"}, saldo)
	instrucao.Orders = map[string][]string{"grau_instrucao": EducationOrder}
	add(instrucao)

	faixa := monthly(DatasetEmpregoFaixa, "Emprego por faixa etária", "18vXZaCkc8so4rO5jUN9XKzJDdumPCm7RdaVNmIBAFQ0", []string{"faixa_etaria"}, saldo)
	faixa.Orders = map[string][]string{"faixa_etaria": AgeBracketOrder}
	add(faixa)

	add(monthly(DatasetEmpregoSexo, "Emprego por sexo", "1qwztnxdlIsK7DaIqbCNcFmTbFf9GR6ARJCgT00wE83o", []string{"sexo"}, saldo))

	add(monthly(DatasetComexMensal, "Exportações mensais", "1I_d1n1KoU3VbHr5FVCX7oGp6VezgAgQQVvMnTFApbRU",
		[]string{"pais", "produto"}, sum("valor_exp", "Exportações (US$)")))
	add(monthly(DatasetComexMunicipio, "Exportações por município", "1DC89QdcB5GxuZgZamHH8xOSlp-BP_5oayKa5jsjl2c8",
		nil, sum("valor_exp", "Exportações (US$)"), sum("valor_imp", "Importações (US$)")))

	add(monthly(DatasetSeguranca, "Indicadores criminais", "1cPzaMIrHk-T5oJQKPxlFepHf63_-nQjHIFTf2xZzsog", nil,
		sum("homicidio_doloso", "Homicídio Doloso"),
		sum("furtos", "Furtos"),
		sum("roubos", "Roubos"),
		sum("furto_veiculo", "Furto de Veículo"),
		sum("roubo_veiculo", "Roubo de Veículo"),
	))

	add(Schema{
		Dataset:      DatasetSiconfiRREO,
		Title:        "Finanças públicas (RREO)",
		SheetID:      "1zGPeIXTfikqDN_n_-EGy0UZYCmeLTqZYGrx4TwpepO0",
		YearColumn:   "ano",
		PeriodColumn: "bimestre",
		EntityColumn: "municipio",
		Granularity:  Bimonthly,
		Dimensions:   []string{"municipio", "conta", "coluna"},
		Measures:     []Measure{sum("valor", "Valor (R$)")},
	})

	add(monthly(DatasetCNPJTotal, "Empresas ativas", "1S34HnK0wG4h9ifWnm066RQsubEMsrN5y6ZsHI8yvd_s",
		[]string{"grupo_ibge"}, sum("empresas_ativas", "Empresas ativas")))

	estab := annual(DatasetEstabelecimentos, "Estabelecimentos por tamanho", "1LlGELAUNFBAg3gIKyZjJ5tE1VfQVAr5tqzGBVtvwLXg",
		[]string{"tamanho"}, sum("qntd_estabelecimentos", "Nº de Estabelecimentos"))
	estab.Orders = map[string][]string{"tamanho": EstablishmentSizeOrder}
	add(estab)

	add(monthly(DatasetSaudeMensal, "Saúde", "1zxQ37QD7zmLR-dZhsjtYG-ihpMhD9Pr1gxyX5ZDS2hA", nil,
		sum("nascimentos", "Nascimentos"),
		mean("taxa_obitos_infantis", "Taxa de óbitos infantis"),
		mean("prop_nasc_baixo_peso", "Nascidos com baixo peso (%)"),
		mean("prop_consultas_pre_natal", "7+ consultas pré-natal (%)"),
	))

	add(annual(DatasetPIB, "PIB municipal", "1AmsNK8wR5T8zJjac2APHIzsSYFwPvcDpIRaPF4ocr5A", nil,
		sum("pib_milhoes", "PIB (Milhões R$)"),
		sum("pib_per_capita", "PIB per capita (R$)"),
		mean("percentual_pib_rs", "Participação no PIB do RS (%)"),
		mean("posicao_pib_geral", "Posição no ranking do RS"),
		sum("valor_adicionado_bruto_agropecuaria_milhoes", "Agropecuária"),
		sum("valor_adicionado_bruto_industria_milhoes", "Indústria"),
		sum("valor_adicionado_bruto_servicos_milhoes", "Serviços"),
		sum("valor_adicionado_bruto_adm_milhoes", "Administração Pública"),
	))

	add(annual(DatasetPopulacao, "População e densidade", "1UDNbCgNDg-hd4gKR0TKDCO6YogyvU5KjthIIHt0mPTs", nil,
		sum("pop_estimada", "População estimada"),
		mean("densidade_demografica", "Densidade demográfica (hab/km²)"),
	))
	sexoIdade := annual(DatasetPopulacaoSexoIdade, "População por sexo e idade", "1RTvQxzfusbSiUKtlkIQMmpiN1a-pApYofgD6Mx4UEk4",
		[]string{"sexo", "faixa_etaria"}, sum("pop_estimada", "População estimada"))
	sexoIdade.Orders = map[string][]string{"faixa_etaria": PopulationAgeOrder}
	add(sexoIdade)

	add(annual(DatasetEducacaoMatriculas, "Escolas, matrículas, docentes e turmas", "1V2_LK6KmHWRS9G3dTDuvyseH4VK51V_h-WqyKo1vC2g",
		[]string{"dependencia"},
		sum("qntd_escolas", "Escolas"),
		sum("mat_basico", "Educação Básica"),
		sum("mat_infantil", "Educação Infantil"),
		sum("mat_fundamental", "Ensino Fundamental"),
		sum("mat_medio", "Ensino Médio"),
		sum("mat_profissional", "Ensino Profissional"),
		sum("mat_eja", "EJA"),
		sum("docentes_basico", "Docentes"),
		sum("turmas_basico", "Turmas"),
	))
	add(annual(DatasetEducacaoRendimento, "Taxas de rendimento escolar", "1eXvWso6qsqhAxuIp3_LJ8mxIDtuhnMhGFOgx_wB-G4E",
		[]string{"dependencia"},
		mean("taxa_aprovacao_fundamental", "Aprovação"),
		mean("taxa_reprovacao_fundamental", "Reprovação"),
		mean("taxa_abandono_fundamental", "Abandono"),
		mean("taxa_distorcao_fundamental", "Distorção idade-série"),
	))
	add(annual(DatasetIdebMunicipio, "IDEB por município", "1hRIaMp9NUkEJuv8-1B3o4tnBokPMecFlAUO_43eyEBI",
		[]string{"dependencia", "indicador", "categoria"}, mean("valor", "Valor")))
	add(annual(DatasetIdebEscolas, "IDEB por escola", "1ckSLZvqznbCOcgNEnah3UGW5L4nraIU24RRKF79JKIg",
		[]string{"escola", "dependencia", "indicador", "categoria"}, mean("valor", "Valor")))

	add(monthly(DatasetCadUnico, "Cadastro Único", "15TiAHgFeM2gJ6NARrDfezJRRJt-TY64ksN4l7MMMrQE", nil,
		sum("total_pessoas", "Pessoas"),
		sum("total_familias", "Famílias"),
		sum("qtd_fam_pob", "Famílias em situação de pobreza"),
		sum("qtd_fam_baixa_renda", "Famílias de baixa renda"),
	))
	add(monthly(DatasetBolsaFamilia, "Novo Bolsa Família", "1xuBjiv3in12U_xrdScGExMXTjfOlt3-shK_FiVT9E0o", nil,
		sum("qtd_beneficiados", "Beneficiários"),
		sum("valor_total_beneficio", "Valor total do benefício (R$)"),
	))
	return c
}
