package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
)

// DocumentoFiscal é a fonte de verdade do estado fiscal de uma venda.
// Identidade imutável: tenant, modelo, série, número e chave de acesso
// (a chave deriva dos campos de identidade e sempre valida contra eles).
// Campos mutáveis: status, protocolo, XML assinado e histórico de eventos.
type DocumentoFiscal struct {
	ID       string
	TenantID string
	FaturaID string // fatura comercial de origem (colaborador externo)

	Modelo string // "55" NF-e, "65" NFC-e
	Serie  int
	Numero int64
	Chave  string // 44 dígitos; imutável após criação

	Status       fiscal.Status
	Protocolo    string     // número de protocolo da SEFAZ (somente quando autorizada)
	AutorizadaEm *time.Time // início da janela de cancelamento
	MotivoSefaz  string     // xMotivo da última resposta relevante

	ClienteID        string // vazio = consumidor não identificado (NFC-e)
	NaturezaOperacao string
	FormaPagamento   string // tPag

	ValorProdutos decimal.Decimal
	ValorDesconto decimal.Decimal
	ValorFrete    decimal.Decimal
	ValorTotal    decimal.Decimal // sum(itens) + frete − desconto, 2 casas
	TotalTributos decimal.Decimal // soma dos tributos já arredondados por linha

	XMLAssinado string // envelope assinado, guardado verbatim (retenção legal)
	DigestValue string // digest da assinatura (Base64), insumo do QR da NFC-e
	QRCode      string // URL de consulta do consumidor (somente modelo 65)

	// EstoquePendente marca autorização cujo débito de estoque ainda não foi
	// aplicado (falha pós-autorização); a reconciliação re-executa só esse passo.
	EstoquePendente bool

	Itens []ItemDocumento

	CriadoEm     time.Time
	AtualizadoEm time.Time
}

// ItemDocumento linha do documento com o detalhamento tributário calculado.
type ItemDocumento struct {
	ID          string
	DocumentoID string
	ProdutoID   string
	LoteID      string // vazio = baixa FEFO (validade mais próxima primeiro)

	Descricao string
	NCM       string
	CFOP      string
	Unidade   string

	Quantidade    decimal.Decimal // 4 casas
	ValorUnitario decimal.Decimal // 4 casas
	Desconto      decimal.Decimal // 2 casas
	ValorBruto    decimal.Decimal // quantidade × unitário, 2 casas

	Tributos fiscal.TributosItem
}

// RespostaSefaz resposta da autoridade anexada a uma transição do documento.
// Imutável após o recebimento; o payload bruto é retido verbatim.
type RespostaSefaz struct {
	ID          string
	DocumentoID string
	Operacao    string // autorizacao, consulta, cancelamento, correcao
	CStat       string
	Motivo      string
	Protocolo   string // presente apenas em sucesso
	Payload     string // resposta crua da SEFAZ
	RecebidaEm  time.Time
}

// Correcao evento de carta de correção (append-only, sequencial por documento).
type Correcao struct {
	ID           string
	DocumentoID  string
	Sequencia    int
	Texto        string
	Protocolo    string
	RegistradaEm time.Time
}
