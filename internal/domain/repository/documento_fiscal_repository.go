package repository

import (
	"context"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// DocumentoFiscalRepository persiste documentos fiscais e seus anexos
// (respostas da SEFAZ, cartas de correção).
type DocumentoFiscalRepository interface {
	// Criar grava o documento e seus itens. A chave de acesso é única por
	// tenant; colisão devolve erro de violação de unicidade do driver.
	Criar(ctx context.Context, doc *entity.DocumentoFiscal) error

	GetByID(ctx context.Context, tenantID, id string) (*entity.DocumentoFiscal, error)
	GetByChave(ctx context.Context, tenantID, chave string) (*entity.DocumentoFiscal, error)

	// Atualizar grava status, protocolo, motivo e flags de estoque.
	// O XML assinado nunca é reescrito após a criação.
	Atualizar(ctx context.Context, doc *entity.DocumentoFiscal) error

	// ListarPendentes devolve documentos em PENDENTE ou com estoque
	// pendente de baixa, para o ciclo de sincronização.
	ListarPendentes(ctx context.Context, tenantID string, limite int) ([]entity.DocumentoFiscal, error)

	// RegistrarResposta acrescenta uma resposta da SEFAZ ao histórico.
	// O histórico é imutável: nunca há update ou delete.
	RegistrarResposta(ctx context.Context, r *entity.RespostaSefaz) error
	ListarRespostas(ctx context.Context, tenantID, documentoID string) ([]entity.RespostaSefaz, error)

	// RegistrarCorrecao acrescenta uma carta de correção. A sequência é
	// responsabilidade do caso de uso; o repositório apenas grava.
	RegistrarCorrecao(ctx context.Context, c *entity.Correcao) error
	ListarCorrecoes(ctx context.Context, tenantID, documentoID string) ([]entity.Correcao, error)
}
