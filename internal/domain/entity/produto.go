package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Produto item de catálogo da farmácia (leitura; cadastro é de outro subsistema).
type Produto struct {
	ID           string
	TenantID     string
	SKU          string
	Nome         string
	NCM          string // nomenclatura comum do Mercosul (8 dígitos)
	CFOP         string // código fiscal da operação de venda
	Unidade      string // UN, CX, FR...
	Preco        decimal.Decimal
	CriadoEm     time.Time
	AtualizadoEm time.Time
}
