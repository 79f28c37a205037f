package fiscal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Clegivaldo/medmanager-fiscal/internal/application/dto"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	domfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/logger"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// Limites do texto da carta de correção (evento 110110).
const (
	correcaoTextoMin = 15
	correcaoTextoMax = 1000
)

// RegistrarCorrecaoUseCase registra uma carta de correção eletrônica. Cartas
// não alteram valores nem itens; são anotações sequenciais sobre o documento
// autorizado, e a SEFAZ só considera vigente a de maior sequência.
type RegistrarCorrecaoUseCase struct {
	txRunner TxRunner
	docRepo  repository.DocumentoFiscalRepository
	gateway  infranfe.SefazGateway
	log      *logger.Logger
	agora    func() time.Time
}

func NewRegistrarCorrecaoUseCase(
	txRunner TxRunner,
	docRepo repository.DocumentoFiscalRepository,
	gateway infranfe.SefazGateway,
	log *logger.Logger,
) *RegistrarCorrecaoUseCase {
	return &RegistrarCorrecaoUseCase{
		txRunner: txRunner,
		docRepo:  docRepo,
		gateway:  gateway,
		log:      log,
		agora:    time.Now,
	}
}

// Registrar valida o texto, calcula a próxima sequência e transmite o evento.
func (uc *RegistrarCorrecaoUseCase) Registrar(ctx context.Context, tenantID, userID, documentoID string, in dto.CorrecaoRequest) (*dto.CorrecaoResponse, error) {
	texto := strings.TrimSpace(in.Texto)
	if n := len([]rune(texto)); n < correcaoTextoMin || n > correcaoTextoMax {
		return nil, fmt.Errorf("%w: texto da correção deve ter entre %d e %d caracteres",
			domfiscal.ErrValidacao, correcaoTextoMin, correcaoTextoMax)
	}

	doc, err := uc.docRepo.GetByID(ctx, tenantID, documentoID)
	if err != nil {
		return nil, err
	}
	if err := domfiscal.ValidarCorrecao(doc.Status); err != nil {
		return nil, err
	}

	anteriores, err := uc.docRepo.ListarCorrecoes(ctx, tenantID, doc.ID)
	if err != nil {
		return nil, err
	}
	sequencia := 1
	for _, c := range anteriores {
		if c.Sequencia >= sequencia {
			sequencia = c.Sequencia + 1
		}
	}

	res, err := uc.gateway.RegistrarCorrecao(ctx, doc.Chave, texto, sequencia)
	if err != nil {
		return nil, err
	}
	resposta := &entity.RespostaSefaz{
		DocumentoID: doc.ID,
		Operacao:    "correcao",
		CStat:       res.CStat,
		Motivo:      res.Motivo,
		Protocolo:   res.Protocolo,
		Payload:     res.Payload,
		RecebidaEm:  uc.agora(),
	}
	if res.CStat != nfe.CStatEventoVinculado {
		_ = uc.docRepo.RegistrarResposta(ctx, resposta)
		return nil, fmt.Errorf("%w: cStat %s: %s", domfiscal.ErrEstado, res.CStat, res.Motivo)
	}

	correcao := &entity.Correcao{
		DocumentoID:  doc.ID,
		Sequencia:    sequencia,
		Texto:        texto,
		Protocolo:    res.Protocolo,
		RegistradaEm: uc.agora(),
	}
	err = uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
		_ repository.LoteEstoqueRepository, audRepo repository.AuditoriaRepository) error {
		if err := docRepo.RegistrarCorrecao(ctx, correcao); err != nil {
			return err
		}
		if err := docRepo.RegistrarResposta(ctx, resposta); err != nil {
			return err
		}
		return audRepo.Registrar(ctx, &entity.EventoAuditoria{
			TenantID:   tenantID,
			UserID:     userID,
			Operacao:   entity.AuditoriaCorrecao,
			RegistroID: doc.ID,
			Antes:      string(doc.Status),
			Depois:     string(doc.Status),
			OcorridoEm: uc.agora(),
		})
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("chave", doc.Chave).Int("sequencia", sequencia).
		Msg("carta de correção registrada")
	return &dto.CorrecaoResponse{
		Sequencia:    correcao.Sequencia,
		Texto:        correcao.Texto,
		Protocolo:    correcao.Protocolo,
		RegistradaEm: correcao.RegistradaEm,
	}, nil
}
