// Package nfe contém catálogos, chave de acesso e validações alinhados ao
// Manual de Orientação do Contribuinte (NF-e/NFC-e, leiaute 4.00).
package nfe

// =============================================================================
// Modelos de documento fiscal eletrônico
// =============================================================================

const (
	ModeloNFe  = "55" // NF-e (venda a contribuinte / atacado)
	ModeloNFCe = "65" // NFC-e (venda ao consumidor / varejo)
)

// ValidDocumentModels modelos aceitos pelo motor de emissão.
var ValidDocumentModels = map[string]bool{
	ModeloNFe:  true,
	ModeloNFCe: true,
}

// =============================================================================
// Ambiente SEFAZ (tpAmb)
// =============================================================================

const (
	AmbienteProducao    = "1" // Produção
	AmbienteHomologacao = "2" // Homologação (sem valor fiscal)
)

// =============================================================================
// Tipo de emissão (tpEmis) — somente emissão normal é suportada pelo núcleo.
// =============================================================================

const (
	EmissaoNormal = "1"
)

// =============================================================================
// Regimes tributários (CRT — Código de Regime Tributário)
// =============================================================================

const (
	RegimeSimples        = "1" // Simples Nacional
	RegimeLucroPresumido = "2" // Regime normal, PIS/COFINS cumulativo
	RegimeLucroReal      = "3" // Regime normal, PIS/COFINS não cumulativo
)

// ValidTaxRegimes regimes que o TaxEngine sabe calcular.
var ValidTaxRegimes = map[string]bool{
	RegimeSimples:        true,
	RegimeLucroPresumido: true,
	RegimeLucroReal:      true,
}

// =============================================================================
// Códigos de situação tributária usados pelo motor
// =============================================================================

const (
	CSOSNSimplesSemCredito   = "102" // Simples Nacional, sem permissão de crédito
	CSTICMSTributadoIntegral = "00"  // ICMS tributado integralmente
	CSTPISCOFINSAliqBasica   = "01"  // PIS/COFINS alíquota básica
)

// =============================================================================
// Códigos de UF (cUF, tabela IBGE) — jurisdições com alíquota publicada.
// =============================================================================

const (
	UFSaoPaulo     = "35"
	UFRioDeJaneiro = "33"
	UFMinasGerais  = "31"
	UFParana       = "41"
	UFBahia        = "29"
	UFRioGrandeSul = "43"
)

// =============================================================================
// Status SEFAZ (cStat) relevantes ao ciclo de vida
// =============================================================================

const (
	CStatAutorizado           = "100" // Autorizado o uso da NF-e
	CStatCancelamentoHomolog  = "101" // Cancelamento homologado
	CStatLoteProcessando      = "105" // Lote em processamento
	CStatServicoParalisado    = "108" // Serviço paralisado momentaneamente
	CStatServicoParalisadoSP  = "109" // Serviço paralisado sem previsão
	CStatUsoDenegado          = "110" // Uso denegado
	CStatEventoVinculado      = "135" // Evento registrado e vinculado à NF-e
	CStatDenegadoIrregular    = "301" // Denegado: irregularidade fiscal do emitente
	CStatDenegadoDestinatario = "302" // Denegado: irregularidade fiscal do destinatário
)

// =============================================================================
// Eventos fiscais (tpEvento)
// =============================================================================

const (
	EventoCancelamento  = "110111"
	EventoCartaCorrecao = "110110"
)

// Justificativa de cancelamento: mínimo exigido pela SEFAZ; validamos
// client-side para falhar rápido antes da chamada de rede.
const MinJustificativaCancelamento = 15

// =============================================================================
// Formas de pagamento (tPag) — códigos de uso frequente no varejo farmacêutico
// =============================================================================

const (
	PagamentoDinheiro      = "01"
	PagamentoCartaoCredito = "03"
	PagamentoCartaoDebito  = "04"
	PagamentoPix           = "17"
	PagamentoOutros        = "99"
)

// ValidPaymentCodes formas de pagamento aceitas no grupo pag do XML.
var ValidPaymentCodes = map[string]bool{
	PagamentoDinheiro:      true,
	PagamentoCartaoCredito: true,
	PagamentoCartaoDebito:  true,
	PagamentoPix:           true,
	PagamentoOutros:        true,
}
