package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoteEstoque saldo de um lote de produto (controle sanitário por validade).
// A baixa de venda sem lote explícito segue FEFO: vence primeiro, sai primeiro.
type LoteEstoque struct {
	ID           string
	TenantID     string
	ProdutoID    string
	NumeroLote   string
	Validade     time.Time
	Quantidade   decimal.Decimal
	CriadoEm     time.Time
	AtualizadoEm time.Time
}
