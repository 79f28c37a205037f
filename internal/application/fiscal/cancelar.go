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

// CancelarDocumentoUseCase registra o evento 110111 na SEFAZ e, aceito o
// evento, reverte o documento para CANCELADA e repõe o estoque baixado —
// exatamente nos lotes debitados na emissão, não por FEFO de novo.
type CancelarDocumentoUseCase struct {
	txRunner TxRunner
	docRepo  repository.DocumentoFiscalRepository
	gateway  infranfe.SefazGateway
	log      *logger.Logger
	agora    func() time.Time
}

func NewCancelarDocumentoUseCase(
	txRunner TxRunner,
	docRepo repository.DocumentoFiscalRepository,
	gateway infranfe.SefazGateway,
	log *logger.Logger,
) *CancelarDocumentoUseCase {
	return &CancelarDocumentoUseCase{
		txRunner: txRunner,
		docRepo:  docRepo,
		gateway:  gateway,
		log:      log,
		agora:    time.Now,
	}
}

// Cancelar valida a janela de 24h (inclusiva), transmite o evento e aplica a
// reversão local. A reposição de estoque roda na mesma transação do status:
// cancelamento sem estorno não existe.
func (uc *CancelarDocumentoUseCase) Cancelar(ctx context.Context, tenantID, userID, documentoID string, in dto.CancelarDocumentoRequest) (*dto.DocumentoResponse, error) {
	justificativa := strings.TrimSpace(in.Justificativa)
	if len([]rune(justificativa)) < 15 {
		return nil, domfiscal.ErrJustificativaCurta
	}

	doc, err := uc.docRepo.GetByID(ctx, tenantID, documentoID)
	if err != nil {
		return nil, err
	}
	if err := domfiscal.ValidarCancelamento(doc.Status, doc.AutorizadaEm, uc.agora()); err != nil {
		return nil, err
	}

	res, err := uc.gateway.Cancelar(ctx, doc.Chave, doc.Protocolo, justificativa)
	if err != nil {
		return nil, err
	}
	resposta := &entity.RespostaSefaz{
		DocumentoID: doc.ID,
		Operacao:    "cancelamento",
		CStat:       res.CStat,
		Motivo:      res.Motivo,
		Protocolo:   res.Protocolo,
		Payload:     res.Payload,
		RecebidaEm:  uc.agora(),
	}

	// 135 = evento registrado e vinculado. Qualquer outro cStat mantém o
	// documento autorizado; a recusa sobe verbatim.
	if res.CStat != nfe.CStatEventoVinculado && res.CStat != nfe.CStatCancelamentoHomolog {
		_ = uc.docRepo.RegistrarResposta(ctx, resposta)
		return nil, fmt.Errorf("%w: cStat %s: %s", domfiscal.ErrEstado, res.CStat, res.Motivo)
	}

	anterior := doc.Status
	doc.Status = domfiscal.StatusCancelada
	doc.MotivoSefaz = res.Motivo

	err = uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
		loteRepo repository.LoteEstoqueRepository, audRepo repository.AuditoriaRepository) error {
		if err := docRepo.Atualizar(ctx, doc); err != nil {
			return err
		}
		if err := docRepo.RegistrarResposta(ctx, resposta); err != nil {
			return err
		}

		baixas, err := loteRepo.ListarBaixasPorDocumento(ctx, tenantID, doc.ID)
		if err != nil {
			return err
		}
		for _, b := range baixas {
			if err := loteRepo.Repor(ctx, tenantID, b.LoteID, b.Quantidade); err != nil {
				return err
			}
		}

		return audRepo.Registrar(ctx, &entity.EventoAuditoria{
			TenantID:   tenantID,
			UserID:     userID,
			Operacao:   entity.AuditoriaCancelamento,
			RegistroID: doc.ID,
			Antes:      string(anterior),
			Depois:     string(doc.Status),
			OcorridoEm: uc.agora(),
		})
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("chave", doc.Chave).Str("protocolo", res.Protocolo).
		Msg("documento cancelado com estorno de estoque")
	return dto.NovoDocumentoResponse(doc), nil
}
