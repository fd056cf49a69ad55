package postgres

import "indicadores/internal/core"

// Upstream extraction queries per dataset. Each takes the municipality list
// and the year list, in that order, as IN (?) bind variables.
var extractQueries = map[string]string{
	core.DatasetEmpregoMunicipios: `
SELECT t1.ano, t1.mes, t2.municipio, SUM(t1.saldo_movimentacao) AS saldo_movimentacao
FROM caged_prefeituras t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t1.mes, t2.municipio
ORDER BY t1.ano, t1.mes`,

	core.DatasetEmpregoCNAE: `
SELECT t1.ano, t1.mes, t2.municipio, t3.grupo_ibge AS secao, t3.grupo,
       SUM(t1.saldo_movimentacao) AS saldo_movimentacao
FROM caged_prefeituras t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
JOIN cnae t3 ON t1.cnae_2_subclasse = t3.cod_subclasse
WHERE t2.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t1.mes, t2.municipio, t3.grupo_ibge, t3.grupo`,

	core.DatasetEmpregoInstrucao: `
SELECT t1.ano, t1.mes, t3.municipio, t2.grau_instrucao_desc AS grau_instrucao,
       SUM(t1.saldo_movimentacao) AS saldo_movimentacao
FROM caged_prefeituras t1
JOIN grau_instrucao t2 ON t1.grau_instrucao = t2.cod_grau_instrucao
JOIN municipio t3 ON t1.id_municipio = t3.id_municipio
WHERE t3.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t1.mes, t3.municipio, t2.grau_instrucao_desc`,

	core.DatasetEmpregoFaixa: `
SELECT t1.ano, t1.mes, t3.municipio, t2.faixa_etaria_desc AS faixa_etaria,
       SUM(t1.saldo_movimentacao) AS saldo_movimentacao
FROM caged_prefeituras t1
JOIN faixa_etaria t2 ON t1.faixa_etaria = t2.cod_faixa_etaria
JOIN municipio t3 ON t1.id_municipio = t3.id_municipio
WHERE t3.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t1.mes, t3.municipio, t2.faixa_etaria_desc`,

	core.DatasetEmpregoSexo: `
SELECT t1.ano, t1.mes, t2.municipio,
       CASE WHEN t1.sexo = '1' THEN 'Masculino' WHEN t1.sexo = '2' THEN 'Feminino' ELSE 'Indefinido' END AS sexo,
       SUM(t1.saldo_movimentacao) AS saldo_movimentacao
FROM caged_prefeituras t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t1.mes, t2.municipio, 4`,

	core.DatasetComexMensal: `
SELECT t1.ano, t1.mes, t2.municipio, t3.pais,
       CONCAT(t1.cod_sh4, ' - ', t4.desc_sh4) AS produto,
       SUM(t1.valor) AS valor_exp
FROM comexstat_mun t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio::BIGINT
JOIN countries t3 ON t1.cod_pais = t3.cod_pais
JOIN sh4 t4 ON t1.cod_sh4 = t4.cod_sh4
WHERE t2.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t1.mes, t2.municipio, t3.pais, 5`,

	core.DatasetComexMunicipio: `
SELECT t1.ano, t1.mes, t2.municipio,
       SUM(t1.valor) AS valor_exp,
       SUM(t1.valor_imp) AS valor_imp
FROM comexstat_mun t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio::BIGINT
WHERE t2.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t1.mes, t2.municipio`,

	core.DatasetSeguranca: `
SELECT ano, mes, municipio, homicidio_doloso, furtos, roubos, furto_veiculo, roubo_veiculo
FROM seguranca
WHERE municipio IN (?) AND ano IN (?)`,

	core.DatasetSiconfiRREO: `
SELECT t1.ano, t1.bimestre, t2.municipio, t1.conta, t1.coluna, t1.valor
FROM financas t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)`,

	core.DatasetCNPJTotal: `
WITH cnae_unico AS (
    SELECT LPAD(cod_grupo::VARCHAR, 3, '0') AS cod_grupo, MIN(grupo_ibge) AS grupo_ibge
    FROM cnae
    GROUP BY cod_grupo
)
SELECT CAST(t1.ano AS INT) AS ano, CAST(t1.mes AS INT) AS mes, t2.municipio, t3.grupo_ibge,
       SUM(t1.empresas_ativas) AS empresas_ativas
FROM cnpj t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
JOIN cnae_unico t3 ON t1.cod_grupo = t3.cod_grupo
WHERE t2.municipio IN (?) AND CAST(t1.ano AS INT) IN (?)
GROUP BY 1, 2, t2.municipio, t3.grupo_ibge`,

	core.DatasetEstabelecimentos: `
SELECT t1.ano, t2.municipio, t3.tamanho_estab_desc AS tamanho,
       SUM(t1.qntd_estabelecimentos) AS qntd_estabelecimentos
FROM rais_estabelecimentos t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
JOIN tamanho_estabelecimento t3 ON t1.tamanho_estabelecimento = t3.cod_tamanho_estab
WHERE t2.municipio IN (?) AND t1.ano IN (?)
GROUP BY t1.ano, t2.municipio, t3.tamanho_estab_desc`,

	core.DatasetSaudeMensal: `
SELECT ano, mes, municipio, nascimentos, taxa_obitos_infantis,
       prop_nasc_baixo_peso, prop_consultas_pre_natal
FROM saude
WHERE municipio IN (?) AND ano IN (?)`,

	core.DatasetPIB: `
SELECT t1.ano, t2.municipio, t1.pib_milhoes, t1.pib_per_capita, t1.percentual_pib_rs, t1.posicao_pib_geral,
       t1.valor_adicionado_bruto_agropecuaria_milhoes, t1.valor_adicionado_bruto_industria_milhoes,
       t1.valor_adicionado_bruto_servicos_milhoes, t1.valor_adicionado_bruto_adm_milhoes
FROM pib_municipios t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)`,

	core.DatasetPopulacao: `
SELECT ano, municipio, pop_estimada, densidade_demografica
FROM populacao
WHERE municipio IN (?) AND ano IN (?)`,

	core.DatasetPopulacaoSexoIdade: `
SELECT ano, municipio, sexo, faixa_etaria, SUM(pop_estimada) AS pop_estimada
FROM populacao_sexo
WHERE municipio IN (?) AND ano IN (?)
GROUP BY ano, municipio, sexo, faixa_etaria`,

	core.DatasetEducacaoMatriculas: `
SELECT t1.ano, t2.municipio, t1.dependencia, t1.qntd_escolas,
       t1.mat_basico, t1.mat_infantil, t1.mat_fundamental, t1.mat_medio, t1.mat_profissional, t1.mat_eja,
       t1.docentes_basico, t1.turmas_basico
FROM educacao_matriculas t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)`,

	core.DatasetEducacaoRendimento: `
SELECT t1.ano, t2.municipio, t1.dependencia,
       t1.taxa_aprovacao_fundamental, t1.taxa_reprovacao_fundamental,
       t1.taxa_abandono_fundamental, t1.taxa_distorcao_fundamental
FROM educacao_rendimento t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)`,

	core.DatasetIdebMunicipio: `
SELECT t1.ano, t2.municipio, t1.rede AS dependencia, t1.indicador, t1.categoria, t1.valor
FROM educacao_ideb_municipio t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)`,

	core.DatasetIdebEscolas: `
SELECT t1.ano, t2.municipio, t1.escola, t1.rede AS dependencia, t1.indicador, t1.categoria, t1.valor
FROM educacao_ideb_escolas t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND t1.ano IN (?)`,

	core.DatasetCadUnico: `
SELECT CAST(t1.ano AS INT) AS ano, CAST(t1.mes AS INT) AS mes, t2.municipio,
       t1.total_pessoas, t1.total_familias, t1.qtd_fam_pob, t1.qtd_fam_baixa_renda
FROM cadastro_unico t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND CAST(t1.ano AS INT) IN (?)`,

	core.DatasetBolsaFamilia: `
SELECT t1.ano, t1.mes, t2.municipio, t1.qtd_beneficiados, t1.valor_total_beneficio
FROM novo_bolsa_familia t1
JOIN municipio t2 ON t1.id_municipio = t2.id_municipio
WHERE t2.municipio IN (?) AND CAST(t1.ano AS INT) IN (?)`,
}
