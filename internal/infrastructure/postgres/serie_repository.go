package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
)

var _ repository.SerieFiscalRepository = (*SerieFiscalRepo)(nil)

// SerieFiscalRepo implementação de SerieFiscalRepository (pool ou tx).
type SerieFiscalRepo struct {
	q Querier
}

// NewSerieFiscalRepository constrói o adaptador.
func NewSerieFiscalRepository(q Querier) *SerieFiscalRepo {
	return &SerieFiscalRepo{q: q}
}

// Reservar aloca o próximo número em uma única instrução: o UPDATE condicional
// com RETURNING é atômico no PostgreSQL, então dois chamadores concorrentes
// recebem números distintos sem SELECT FOR UPDATE nem retry. A instrução roda
// em auto-commit de propósito: se a emissão falhar depois, o número fica como
// lacuna em vez de ser devolvido à série.
func (r *SerieFiscalRepo) Reservar(ctx context.Context, tenantID, modelo string, serie int) (int64, error) {
	query := `
		UPDATE series_fiscais
		SET proximo_numero = proximo_numero + 1, updated_at = now()
		WHERE tenant_id = $1 AND modelo = $2 AND serie = $3 AND ativa
		RETURNING proximo_numero - 1`
	var numero int64
	err := r.q.QueryRow(ctx, query, tenantID, modelo, serie).Scan(&numero)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fiscal.ErrSerieInativa
	}
	if err != nil {
		return 0, fmt.Errorf("reservar número: %w", err)
	}
	return numero, nil
}

// GetAtiva devolve a série ativa do tenant para o modelo.
func (r *SerieFiscalRepo) GetAtiva(ctx context.Context, tenantID, modelo string) (*entity.SerieFiscal, error) {
	query := `
		SELECT id, tenant_id, modelo, serie, proximo_numero, ativa, created_at, updated_at
		FROM series_fiscais
		WHERE tenant_id = $1 AND modelo = $2 AND ativa
		ORDER BY serie
		LIMIT 1`
	var s entity.SerieFiscal
	err := r.q.QueryRow(ctx, query, tenantID, modelo).Scan(
		&s.ID, &s.TenantID, &s.Modelo, &s.Serie, &s.ProximoNumero, &s.Ativa,
		&s.CriadaEm, &s.AtualizadaEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fiscal.ErrSerieInativa
	}
	if err != nil {
		return nil, fmt.Errorf("buscar série ativa: %w", err)
	}
	return &s, nil
}

// Criar registra uma nova série para o tenant.
func (r *SerieFiscalRepo) Criar(ctx context.Context, s *entity.SerieFiscal) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	query := `
		INSERT INTO series_fiscais (id, tenant_id, modelo, serie, proximo_numero, ativa, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`
	_, err := r.q.Exec(ctx, query, s.ID, s.TenantID, s.Modelo, s.Serie, s.ProximoNumero, s.Ativa)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("série já cadastrada: %w", err)
		}
		return fmt.Errorf("insert série: %w", err)
	}
	return nil
}

// Encerrar desativa a série sem tocar na numeração já emitida.
func (r *SerieFiscalRepo) Encerrar(ctx context.Context, tenantID, modelo string, serie int) error {
	query := `
		UPDATE series_fiscais SET ativa = false, updated_at = now()
		WHERE tenant_id = $1 AND modelo = $2 AND serie = $3`
	tag, err := r.q.Exec(ctx, query, tenantID, modelo, serie)
	if err != nil {
		return fmt.Errorf("encerrar série: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fiscal.ErrSerieInativa
	}
	return nil
}
