package repository

import (
	"context"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// SerieFiscalRepository controla a alocação de numeração fiscal.
type SerieFiscalRepository interface {
	// Reservar aloca o próximo número da série em uma única instrução
	// atômica e devolve o número reservado. Dois chamadores concorrentes
	// nunca recebem o mesmo número; números reservados e não utilizados
	// ficam como lacunas (permitido pela legislação). Série inexistente ou
	// inativa devolve fiscal.ErrSerieInativa.
	Reservar(ctx context.Context, tenantID, modelo string, serie int) (int64, error)

	// GetAtiva devolve a série ativa do tenant para o modelo informado.
	GetAtiva(ctx context.Context, tenantID, modelo string) (*entity.SerieFiscal, error)

	Criar(ctx context.Context, s *entity.SerieFiscal) error

	// Encerrar desativa a série; a numeração já emitida permanece intacta.
	Encerrar(ctx context.Context, tenantID, modelo string, serie int) error
}
