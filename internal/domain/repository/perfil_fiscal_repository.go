// Package repository define as portas de persistência do núcleo fiscal.
// Toda operação recebe o tenant explícito — nunca há contexto de tenant ambiente.
package repository

import (
	"context"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// PerfilFiscalRepository leitura do perfil do emitente (cadastro pertence ao
// subsistema de configuração do tenant).
type PerfilFiscalRepository interface {
	// GetByTenant devolve o perfil ativo do tenant; nil quando não cadastrado.
	GetByTenant(ctx context.Context, tenantID string) (*entity.PerfilFiscal, error)
}
