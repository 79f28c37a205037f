package repository

import (
	"context"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// ProdutoRepository leitura do cadastro de produtos (o CRUD completo vive no
// subsistema de catálogo do ERP).
type ProdutoRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*entity.Produto, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]entity.Produto, error)
}
