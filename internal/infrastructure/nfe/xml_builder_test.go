package nfe_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures: documento modelo 55 com chave de vetor conhecido
// (CNPJ 12345678000195, série 1, número 42, cNF 12345678, DV 3).
// ──────────────────────────────────────────────────────────────────────────────

const (
	chaveNFeTeste  = "35240712345678000195550010000000421123456783"
	chaveNFCeTeste = "35240712345678000195650010000000071000543215"
)

func perfilTeste() *entity.PerfilFiscal {
	return &entity.PerfilFiscal{
		ID:              "perfil-1",
		TenantID:        "tenant-1",
		RazaoSocial:     "Farmácia Modelo Ltda",
		NomeFantasia:    "Farmácia Modelo",
		CNPJ:            "12.345.678/0001-95",
		IE:              "123.456.789.012",
		Regime:          nfe.RegimeLucroReal,
		UF:              nfe.UFSaoPaulo,
		CodigoMunicipio: "3550308",
		Logradouro:      "Av. Paulista, 1000",
		Municipio:       "São Paulo",
		CEP:             "01310-100",
		Ambiente:        nfe.AmbienteHomologacao,
		Ativo:           true,
	}
}

func clienteTeste() *entity.Cliente {
	return &entity.Cliente{
		ID:        "cliente-1",
		TenantID:  "tenant-1",
		Nome:      "José da Silva",
		Documento: "123.456.789-09",
	}
}

func itemTeste(t *testing.T) entity.ItemDocumento {
	t.Helper()
	trib, err := fiscal.CalcularTributos(nfe.RegimeLucroReal, nfe.UFSaoPaulo,
		decimal.RequireFromString("100.11"), decimal.Zero)
	require.NoError(t, err)
	return entity.ItemDocumento{
		ID:            "item-1",
		ProdutoID:     "prod-1",
		Descricao:     "Dipirona 500mg cx 20 comp",
		NCM:           "30049099",
		CFOP:          "5102",
		Unidade:       "CX",
		Quantidade:    decimal.RequireFromString("3.0000"),
		ValorUnitario: decimal.RequireFromString("33.3700"),
		ValorBruto:    decimal.RequireFromString("100.11"),
		Tributos:      trib,
	}
}

func contextoTeste(t *testing.T, chave, modelo string, cliente *entity.Cliente) *infranfe.DocumentoBuildContext {
	t.Helper()
	item := itemTeste(t)
	doc := &entity.DocumentoFiscal{
		ID:               "doc-1",
		TenantID:         "tenant-1",
		Modelo:           modelo,
		Serie:            1,
		Numero:           42,
		Chave:            chave,
		NaturezaOperacao: "VENDA",
		FormaPagamento:   nfe.PagamentoDinheiro,
		ValorProdutos:    item.ValorBruto,
		ValorDesconto:    decimal.Zero,
		ValorFrete:       decimal.Zero,
		ValorTotal:       item.ValorBruto,
		TotalTributos:    item.Tributos.Total(),
		CriadoEm:         time.Date(2024, 7, 15, 10, 30, 0, 0, time.FixedZone("BRT", -3*3600)),
	}
	if modelo == nfe.ModeloNFCe {
		doc.Numero = 7
	}
	return &infranfe.DocumentoBuildContext{
		Documento: doc,
		Perfil:    perfilTeste(),
		Cliente:   cliente,
		Itens:     []entity.ItemDocumento{item},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Build
// ──────────────────────────────────────────────────────────────────────────────

func assertTributoIgual(t *testing.T, esperado, obtido fiscal.Tributo, nome string) {
	t.Helper()
	assert.Equal(t, esperado.Codigo, obtido.Codigo, nome)
	assert.True(t, esperado.Base.Equal(obtido.Base), "%s: base", nome)
	assert.True(t, esperado.Aliquota.Equal(obtido.Aliquota), "%s: alíquota", nome)
	assert.True(t, esperado.Valor.Equal(obtido.Valor), "%s: valor", nome)
}

func TestBuild_RoundTripComParser(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	parser := infranfe.NewXMLParserService()

	ctx := contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, clienteTeste())
	xmlBytes, err := builder.Build(ctx)
	require.NoError(t, err)

	parsed, err := parser.Parse(xmlBytes)
	require.NoError(t, err, "o XML emitido deve ser aceito pelo próprio parser")

	doc := ctx.Documento
	assert.Equal(t, chaveNFeTeste, parsed.Chave)
	assert.Equal(t, nfe.ModeloNFe, parsed.Modelo)
	assert.Equal(t, doc.Serie, parsed.Serie)
	assert.Equal(t, doc.Numero, parsed.Numero)
	assert.Equal(t, doc.NaturezaOperacao, parsed.NaturezaOperacao)
	assert.True(t, doc.CriadoEm.Equal(parsed.EmissaoEm), "dhEmi sobrevive ao round-trip")
	assert.Equal(t, "12345678000195", parsed.CNPJEmitente)
	assert.Equal(t, "12345678909", parsed.DocDestinatario)
	assert.Equal(t, "Jose da Silva", parsed.NomeDestinatario, "nome normalizado, sem acentos")
	assert.Nil(t, parsed.EnderecoDest, "cliente sem logradouro: enderDest omitido")

	// Cada linha volta inteira, com o detalhamento tributário.
	require.Len(t, parsed.Itens, 1)
	esperado := ctx.Itens[0]
	obtido := parsed.Itens[0]
	assert.Equal(t, esperado.ProdutoID, obtido.ProdutoID)
	assert.Equal(t, esperado.Descricao, obtido.Descricao)
	assert.Equal(t, esperado.NCM, obtido.NCM)
	assert.Equal(t, esperado.CFOP, obtido.CFOP)
	assert.Equal(t, esperado.Unidade, obtido.Unidade)
	assert.True(t, esperado.Quantidade.Equal(obtido.Quantidade))
	assert.True(t, esperado.ValorUnitario.Equal(obtido.ValorUnitario))
	assert.True(t, esperado.Desconto.Equal(obtido.Desconto))
	assert.True(t, esperado.ValorBruto.Equal(obtido.ValorBruto))
	assertTributoIgual(t, esperado.Tributos.ICMS, obtido.Tributos.ICMS, "ICMS")
	assertTributoIgual(t, esperado.Tributos.PIS, obtido.Tributos.PIS, "PIS")
	assertTributoIgual(t, esperado.Tributos.COFINS, obtido.Tributos.COFINS, "COFINS")

	// Agregados e pagamento.
	assert.True(t, doc.ValorProdutos.Equal(parsed.ValorProdutos))
	assert.True(t, doc.ValorFrete.Equal(parsed.ValorFrete))
	assert.True(t, doc.ValorDesconto.Equal(parsed.ValorDesconto))
	assert.True(t, doc.ValorTotal.Equal(parsed.ValorTotal))
	assert.True(t, doc.TotalTributos.Equal(parsed.TotalTributos))
	assert.Equal(t, doc.FormaPagamento, parsed.FormaPagamento)
	assert.True(t, doc.ValorTotal.Equal(parsed.ValorPago), "vPag espelha o total do documento")
}

func TestBuild_RoundTripSimplesNacional(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	parser := infranfe.NewXMLParserService()

	ctx := contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, clienteTeste())
	ctx.Perfil.Regime = nfe.RegimeSimples
	trib, err := fiscal.CalcularTributos(nfe.RegimeSimples, nfe.UFSaoPaulo,
		decimal.RequireFromString("100.11"), decimal.Zero)
	require.NoError(t, err)
	ctx.Itens[0].Tributos = trib
	ctx.Documento.TotalTributos = trib.Total()

	xmlBytes, err := builder.Build(ctx)
	require.NoError(t, err)
	parsed, err := parser.Parse(xmlBytes)
	require.NoError(t, err)

	require.Len(t, parsed.Itens, 1)
	icms := parsed.Itens[0].Tributos.ICMS
	assert.Equal(t, trib.ICMS.Codigo, icms.Codigo, "CSOSN volta do grupo ICMSSN102")
	assert.True(t, icms.Valor.IsZero(), "Simples não destaca valor de ICMS")
	assertTributoIgual(t, trib.PIS, parsed.Itens[0].Tributos.PIS, "PIS")
	assertTributoIgual(t, trib.COFINS, parsed.Itens[0].Tributos.COFINS, "COFINS")
}

func TestBuild_Deterministico(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	ctx := contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, clienteTeste())

	a, err := builder.Build(ctx)
	require.NoError(t, err)
	b, err := builder.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, a, b, "o mesmo contexto deve produzir exatamente os mesmos bytes")
}

func TestBuild_NFCeSemDestinatario(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	xmlBytes, err := builder.Build(contextoTeste(t, chaveNFCeTeste, nfe.ModeloNFCe, nil))
	require.NoError(t, err)

	s := string(xmlBytes)
	assert.NotContains(t, s, "<dest>", "consumidor não identificado: grupo dest omitido, nunca vazio")
	assert.Contains(t, s, "<mod>65</mod>")
	assert.Contains(t, s, "<tpImp>4</tpImp>", "NFC-e usa DANFE modelo 4")
	assert.Contains(t, s, "<indFinal>1</indFinal>")
}

func TestBuild_Modelo55ExigeDestinatario(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	_, err := builder.Build(contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, fiscal.ErrIdentidadeFiscal)
}

func TestBuild_SemItens(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	ctx := contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, clienteTeste())
	ctx.Itens = nil
	_, err := builder.Build(ctx)
	assert.ErrorIs(t, err, fiscal.ErrSemItens)
}

func TestBuild_ChaveInvalida(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	ctx := contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, clienteTeste())
	ctx.Documento.Chave = strings.Replace(chaveNFeTeste, "3", "4", 1) // quebra o DV
	_, err := builder.Build(ctx)
	require.Error(t, err)
}

func TestBuild_ValoresMonetariosFormatados(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	xmlBytes, err := builder.Build(contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, clienteTeste()))
	require.NoError(t, err)

	s := string(xmlBytes)
	assert.Contains(t, s, "<qCom>3.0000</qCom>", "quantidade com 4 casas")
	assert.Contains(t, s, "<vUnCom>33.3700</vUnCom>", "valor unitário com 4 casas")
	assert.Contains(t, s, "<vProd>100.11</vProd>", "valor monetário com 2 casas")
	assert.Contains(t, s, "<vICMS>18.02</vICMS>", "ICMS 18% sobre 100.11, arredondado na linha")
	assert.Contains(t, s, `Id="NFe`+chaveNFeTeste+`"`)
}

// ──────────────────────────────────────────────────────────────────────────────
// Parse
// ──────────────────────────────────────────────────────────────────────────────

func TestParse_XMLIlegivel(t *testing.T) {
	parser := infranfe.NewXMLParserService()
	_, err := parser.Parse([]byte("<NFe><infNFe"))
	assert.ErrorIs(t, err, fiscal.ErrXMLMalformado)
}

func TestParse_ChaveDivergenteDosCampos(t *testing.T) {
	builder := infranfe.NewXMLBuilderService()
	parser := infranfe.NewXMLParserService()

	xmlBytes, err := builder.Build(contextoTeste(t, chaveNFeTeste, nfe.ModeloNFe, clienteTeste()))
	require.NoError(t, err)

	// Adultera o nNF sem recalcular a chave: o parser deve recusar.
	adulterado := strings.Replace(string(xmlBytes), "<nNF>42</nNF>", "<nNF>43</nNF>", 1)
	_, err = parser.Parse([]byte(adulterado))
	assert.ErrorIs(t, err, fiscal.ErrXMLMalformado)
}
