// Package dto contém os contratos de entrada e saída da camada de aplicação.
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// ItemEmissaoRequest linha da venda a fiscalizar.
type ItemEmissaoRequest struct {
	ProdutoID     string          `json:"produto_id"`
	LoteID        string          `json:"lote_id,omitempty"` // vazio = baixa FEFO
	Quantidade    decimal.Decimal `json:"quantidade"`
	ValorUnitario decimal.Decimal `json:"valor_unitario,omitempty"` // zero = preço do catálogo
	Desconto      decimal.Decimal `json:"desconto,omitempty"`
}

// EmitirDocumentoRequest pedido de emissão de NF-e (55) ou NFC-e (65).
type EmitirDocumentoRequest struct {
	Modelo           string               `json:"modelo"`
	FaturaID         string               `json:"fatura_id,omitempty"`
	ClienteID        string               `json:"cliente_id,omitempty"` // vazio = consumidor não identificado (só 65)
	NaturezaOperacao string               `json:"natureza_operacao,omitempty"`
	FormaPagamento   string               `json:"forma_pagamento,omitempty"`
	ValorFrete       decimal.Decimal      `json:"valor_frete,omitempty"`
	Itens            []ItemEmissaoRequest `json:"itens"`
}

// CancelarDocumentoRequest pedido de cancelamento dentro da janela de 24h.
type CancelarDocumentoRequest struct {
	Justificativa string `json:"justificativa"`
}

// CorrecaoRequest pedido de carta de correção.
type CorrecaoRequest struct {
	Texto string `json:"texto"`
}

// DocumentoResponse visão do documento fiscal devolvida pela API.
type DocumentoResponse struct {
	ID              string          `json:"id"`
	Modelo          string          `json:"modelo"`
	Serie           int             `json:"serie"`
	Numero          int64           `json:"numero"`
	Chave           string          `json:"chave"`
	Status          string          `json:"status"`
	Protocolo       string          `json:"protocolo,omitempty"`
	MotivoSefaz     string          `json:"motivo_sefaz,omitempty"`
	ValorTotal      decimal.Decimal `json:"valor_total"`
	TotalTributos   decimal.Decimal `json:"total_tributos"`
	QRCode          string          `json:"qr_code,omitempty"`
	EstoquePendente bool            `json:"estoque_pendente,omitempty"`
	AutorizadaEm    *time.Time      `json:"autorizada_em,omitempty"`
	CriadoEm        time.Time       `json:"criado_em"`
}

// CorrecaoResponse carta de correção registrada.
type CorrecaoResponse struct {
	Sequencia    int       `json:"sequencia"`
	Texto        string    `json:"texto"`
	Protocolo    string    `json:"protocolo,omitempty"`
	RegistradaEm time.Time `json:"registrada_em"`
}

// SincronizacaoResponse resultado de um ciclo de sincronização de pendências.
type SincronizacaoResponse struct {
	Processados          int `json:"processados"`
	Autorizados          int `json:"autorizados"`
	Denegados            int `json:"denegados"`
	AindaPendentes       int `json:"ainda_pendentes"`
	EstoqueReconciliado  int `json:"estoque_reconciliado"`
}

// ErrorResponse corpo de erro padrão da API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NovoDocumentoResponse converte a entidade na visão da API.
func NovoDocumentoResponse(doc *entity.DocumentoFiscal) *DocumentoResponse {
	return &DocumentoResponse{
		ID:              doc.ID,
		Modelo:          doc.Modelo,
		Serie:           doc.Serie,
		Numero:          doc.Numero,
		Chave:           doc.Chave,
		Status:          string(doc.Status),
		Protocolo:       doc.Protocolo,
		MotivoSefaz:     doc.MotivoSefaz,
		ValorTotal:      doc.ValorTotal,
		TotalTributos:   doc.TotalTributos,
		QRCode:          doc.QRCode,
		EstoquePendente: doc.EstoquePendente,
		AutorizadaEm:    doc.AutorizadaEm,
		CriadoEm:        doc.CriadoEm,
	}
}
