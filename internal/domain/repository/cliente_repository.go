package repository

import (
	"context"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// ClienteRepository leitura do cadastro de clientes/destinatários.
type ClienteRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*entity.Cliente, error)
}
