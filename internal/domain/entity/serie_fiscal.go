package entity

import "time"

// SerieFiscal faixa de numeração por tenant, modelo e número de série.
// Invariante: ProximoNumero cresce estritamente e nunca é reutilizado, mesmo
// quando a emissão falha depois da reserva — o número reservado é aposentado,
// não reciclado (buracos são legais, duplicatas não).
type SerieFiscal struct {
	ID            string
	TenantID      string
	Modelo        string // "55" ou "65"
	Serie         int
	ProximoNumero int64
	Ativa         bool
	CriadaEm      time.Time
	AtualizadaEm  time.Time
}
