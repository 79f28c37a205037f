package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// BaixaLote registra de qual lote saiu cada quantidade em uma baixa FEFO.
type BaixaLote struct {
	LoteID     string
	Quantidade decimal.Decimal
}

// LoteEstoqueRepository movimenta estoque por lote.
type LoteEstoqueRepository interface {
	// BaixarFEFO consome a quantidade do produto seguindo FEFO (vence
	// primeiro, sai primeiro), travando os lotes na ordem de validade.
	// Se loteID for informado a baixa é restrita àquele lote. Estoque
	// insuficiente devolve erro sem baixa parcial.
	BaixarFEFO(ctx context.Context, tenantID, produtoID, loteID string, qtd decimal.Decimal) ([]BaixaLote, error)

	// Repor devolve a quantidade ao lote (estorno de cancelamento).
	Repor(ctx context.Context, tenantID, loteID string, qtd decimal.Decimal) error

	// RegistrarBaixa grava o vínculo documento/item/lote de uma baixa, para
	// permitir o estorno exato no cancelamento.
	RegistrarBaixa(ctx context.Context, b *entity.BaixaEstoque) error

	// ListarBaixasPorDocumento devolve as baixas aplicadas pela autorização.
	ListarBaixasPorDocumento(ctx context.Context, tenantID, documentoID string) ([]entity.BaixaEstoque, error)

	ListarPorProduto(ctx context.Context, tenantID, produtoID string) ([]entity.LoteEstoque, error)
}
