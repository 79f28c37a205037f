package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaixaEstoque registro de qual lote saiu cada quantidade na autorização de um
// documento. É o que permite o estorno exato no cancelamento, mesmo quando a
// baixa FEFO atravessou mais de um lote.
type BaixaEstoque struct {
	ID          string
	TenantID    string
	DocumentoID string
	ItemID      string
	LoteID      string
	Quantidade  decimal.Decimal
	CriadaEm    time.Time
}
