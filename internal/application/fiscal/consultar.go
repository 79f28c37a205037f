package fiscal

import (
	"context"
	"time"

	"github.com/Clegivaldo/medmanager-fiscal/internal/application/dto"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	domfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/logger"
)

// loteSincronizacao máximo de documentos tratados por ciclo.
const loteSincronizacao = 50

// ConsultarDocumentoUseCase leitura do documento e sincronização das
// pendências (documentos PENDENTES e autorizações com estoque por baixar).
type ConsultarDocumentoUseCase struct {
	txRunner TxRunner
	docRepo  repository.DocumentoFiscalRepository
	gateway  infranfe.SefazGateway
	log      *logger.Logger
	agora    func() time.Time
}

func NewConsultarDocumentoUseCase(
	txRunner TxRunner,
	docRepo repository.DocumentoFiscalRepository,
	gateway infranfe.SefazGateway,
	log *logger.Logger,
) *ConsultarDocumentoUseCase {
	return &ConsultarDocumentoUseCase{
		txRunner: txRunner,
		docRepo:  docRepo,
		gateway:  gateway,
		log:      log,
		agora:    time.Now,
	}
}

// GetByID devolve a visão da API do documento.
func (uc *ConsultarDocumentoUseCase) GetByID(ctx context.Context, tenantID, documentoID string) (*dto.DocumentoResponse, error) {
	doc, err := uc.docRepo.GetByID(ctx, tenantID, documentoID)
	if err != nil {
		return nil, err
	}
	return dto.NovoDocumentoResponse(doc), nil
}

// GetXML devolve o XML assinado verbatim, como retido para guarda legal.
func (uc *ConsultarDocumentoUseCase) GetXML(ctx context.Context, tenantID, documentoID string) ([]byte, error) {
	doc, err := uc.docRepo.GetByID(ctx, tenantID, documentoID)
	if err != nil {
		return nil, err
	}
	if doc.XMLAssinado == "" {
		return nil, domfiscal.ErrDocumentoNaoEncontrado
	}
	return []byte(doc.XMLAssinado), nil
}

// ListarRespostas devolve o histórico de respostas da SEFAZ do documento.
func (uc *ConsultarDocumentoUseCase) ListarRespostas(ctx context.Context, tenantID, documentoID string) ([]entity.RespostaSefaz, error) {
	if _, err := uc.docRepo.GetByID(ctx, tenantID, documentoID); err != nil {
		return nil, err
	}
	return uc.docRepo.ListarRespostas(ctx, tenantID, documentoID)
}

// SincronizarPendentes percorre as pendências do tenant: consulta o protocolo
// dos documentos PENDENTES e reaplica a baixa de estoque das autorizações que
// falharam no pós-autorização. Falha em um documento não interrompe o ciclo.
func (uc *ConsultarDocumentoUseCase) SincronizarPendentes(ctx context.Context, tenantID, userID string) (*dto.SincronizacaoResponse, error) {
	pendentes, err := uc.docRepo.ListarPendentes(ctx, tenantID, loteSincronizacao)
	if err != nil {
		return nil, err
	}

	out := &dto.SincronizacaoResponse{}
	for i := range pendentes {
		doc := &pendentes[i]
		out.Processados++

		if doc.Status == domfiscal.StatusAutorizada && doc.EstoquePendente {
			if uc.reconciliarEstoque(ctx, tenantID, userID, doc) {
				out.EstoqueReconciliado++
			}
			continue
		}

		res, err := uc.gateway.ConsultarProtocolo(ctx, doc.Chave)
		if err != nil {
			uc.log.Warn().Str("chave", doc.Chave).Err(err).Msg("consulta de protocolo falhou")
			out.AindaPendentes++
			continue
		}
		switch uc.aplicarConsulta(ctx, tenantID, userID, doc, res) {
		case domfiscal.StatusAutorizada:
			out.Autorizados++
		case domfiscal.StatusDenegada:
			out.Denegados++
		default:
			out.AindaPendentes++
		}
	}
	return out, nil
}

// aplicarConsulta traduz a resposta de consSitNFe na transição local e devolve
// o status resultante.
func (uc *ConsultarDocumentoUseCase) aplicarConsulta(ctx context.Context, tenantID, userID string, doc *entity.DocumentoFiscal, res *infranfe.ResultadoSefaz) domfiscal.Status {
	resposta := &entity.RespostaSefaz{
		DocumentoID: doc.ID,
		Operacao:    "consulta",
		CStat:       res.CStat,
		Motivo:      res.Motivo,
		Protocolo:   res.Protocolo,
		Payload:     res.Payload,
		RecebidaEm:  uc.agora(),
	}

	switch infranfe.Classificar(res.CStat) {
	case infranfe.DesfechoAutorizado:
		autorizadaEm := uc.agora()
		anterior := doc.Status
		doc.Status = domfiscal.StatusAutorizada
		doc.Protocolo = res.Protocolo
		doc.AutorizadaEm = &autorizadaEm
		doc.MotivoSefaz = res.Motivo
		doc.EstoquePendente = true // baixa reaplicada logo abaixo

		err := uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
			_ repository.LoteEstoqueRepository, audRepo repository.AuditoriaRepository) error {
			if err := docRepo.Atualizar(ctx, doc); err != nil {
				return err
			}
			if err := docRepo.RegistrarResposta(ctx, resposta); err != nil {
				return err
			}
			return audRepo.Registrar(ctx, &entity.EventoAuditoria{
				TenantID:   tenantID,
				UserID:     userID,
				Operacao:   entity.AuditoriaSincronizacao,
				RegistroID: doc.ID,
				Antes:      string(anterior),
				Depois:     string(doc.Status),
				OcorridoEm: uc.agora(),
			})
		})
		if err != nil {
			uc.log.Error().Str("chave", doc.Chave).Err(err).Msg("aplicar autorização na sincronização")
			return domfiscal.StatusPendente
		}
		uc.reconciliarEstoque(ctx, tenantID, userID, doc)
		return domfiscal.StatusAutorizada

	case infranfe.DesfechoDenegado, infranfe.DesfechoRejeitado:
		anterior := doc.Status
		doc.Status = domfiscal.StatusDenegada
		doc.MotivoSefaz = res.Motivo

		err := uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
			_ repository.LoteEstoqueRepository, audRepo repository.AuditoriaRepository) error {
			if err := docRepo.Atualizar(ctx, doc); err != nil {
				return err
			}
			if err := docRepo.RegistrarResposta(ctx, resposta); err != nil {
				return err
			}
			return audRepo.Registrar(ctx, &entity.EventoAuditoria{
				TenantID:   tenantID,
				UserID:     userID,
				Operacao:   entity.AuditoriaDenegacao,
				RegistroID: doc.ID,
				Antes:      string(anterior),
				Depois:     string(doc.Status),
				OcorridoEm: uc.agora(),
			})
		})
		if err != nil {
			uc.log.Error().Str("chave", doc.Chave).Err(err).Msg("aplicar denegação na sincronização")
			return domfiscal.StatusPendente
		}
		return domfiscal.StatusDenegada

	default:
		_ = uc.docRepo.RegistrarResposta(ctx, resposta)
		return domfiscal.StatusPendente
	}
}

// reconciliarEstoque reaplica a baixa FEFO de uma autorização cujo débito de
// estoque falhou. Só o passo de estoque é re-executado; idempotente por
// documento porque a flag só limpa com a baixa completa na mesma transação.
func (uc *ConsultarDocumentoUseCase) reconciliarEstoque(ctx context.Context, tenantID, userID string, doc *entity.DocumentoFiscal) bool {
	err := uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
		loteRepo repository.LoteEstoqueRepository, _ repository.AuditoriaRepository) error {
		for i := range doc.Itens {
			item := &doc.Itens[i]
			baixas, err := loteRepo.BaixarFEFO(ctx, tenantID, item.ProdutoID, item.LoteID, item.Quantidade)
			if err != nil {
				return err
			}
			for _, b := range baixas {
				if err := loteRepo.RegistrarBaixa(ctx, &entity.BaixaEstoque{
					TenantID:    tenantID,
					DocumentoID: doc.ID,
					ItemID:      item.ID,
					LoteID:      b.LoteID,
					Quantidade:  b.Quantidade,
				}); err != nil {
					return err
				}
			}
		}
		doc.EstoquePendente = false
		return docRepo.Atualizar(ctx, doc)
	})
	if err != nil {
		uc.log.Warn().Str("documento", doc.ID).Err(err).Msg("reconciliação de estoque falhou")
		doc.EstoquePendente = true
		return false
	}
	return true
}
