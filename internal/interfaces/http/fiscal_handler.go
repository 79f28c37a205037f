package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Clegivaldo/medmanager-fiscal/internal/application/dto"
	appfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/application/fiscal"
	domfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
)

// FiscalHandler atende as rotas do ciclo de vida do documento fiscal (protegido).
type FiscalHandler struct {
	emitir    *appfiscal.EmitirDocumentoUseCase
	cancelar  *appfiscal.CancelarDocumentoUseCase
	correcao  *appfiscal.RegistrarCorrecaoUseCase
	consultar *appfiscal.ConsultarDocumentoUseCase
}

// NewFiscalHandler constrói o handler.
func NewFiscalHandler(
	emitir *appfiscal.EmitirDocumentoUseCase,
	cancelar *appfiscal.CancelarDocumentoUseCase,
	correcao *appfiscal.RegistrarCorrecaoUseCase,
	consultar *appfiscal.ConsultarDocumentoUseCase,
) *FiscalHandler {
	return &FiscalHandler{emitir: emitir, cancelar: cancelar, correcao: correcao, consultar: consultar}
}

// respostaErro traduz a taxonomia de erros do domínio em código HTTP.
// A hierarquia importa: os erros específicos embrulham ErrValidacao,
// ErrConfiguracao ou ErrEstado, então os casos mais específicos vêm antes.
func respostaErro(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domfiscal.ErrDocumentoNaoEncontrado):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento fiscal não encontrado"})
	case errors.Is(err, domfiscal.ErrDenegada):
		// o xMotivo da SEFAZ sobe verbatim
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "DENEGADA", Message: err.Error()})
	case errors.Is(err, domfiscal.ErrTransitorio):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "SEFAZ_INDISPONIVEL", Message: "autoridade fiscal indisponível; tente novamente"})
	case errors.Is(err, domfiscal.ErrValidacao):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domfiscal.ErrConfiguracao):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFIGURACAO", Message: err.Error()})
	case errors.Is(err, domfiscal.ErrEstado):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ESTADO", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

// Emitir emite uma NF-e ou NFC-e a partir de uma venda.
// POST /api/fiscal/documentos
func (h *FiscalHandler) Emitir(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.EmitirDocumentoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	doc, err := h.emitir.Emitir(c.Context(), tenantID, userID, in)
	if err != nil {
		return respostaErro(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GetByID devolve o documento fiscal.
// GET /api/fiscal/documentos/:id
func (h *FiscalHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	doc, err := h.consultar.GetByID(c.Context(), tenantID, id)
	if err != nil {
		return respostaErro(c, err)
	}
	return c.JSON(doc)
}

// GetXML devolve o XML assinado retido, verbatim.
// GET /api/fiscal/documentos/:id/xml
func (h *FiscalHandler) GetXML(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	xml, err := h.consultar.GetXML(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return respostaErro(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.Send(xml)
}

// Respostas devolve o histórico de respostas da SEFAZ do documento.
// GET /api/fiscal/documentos/:id/respostas
func (h *FiscalHandler) Respostas(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	respostas, err := h.consultar.ListarRespostas(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return respostaErro(c, err)
	}
	return c.JSON(respostas)
}

// Cancelar registra o evento de cancelamento dentro da janela de 24h.
// POST /api/fiscal/documentos/:id/cancelamento
func (h *FiscalHandler) Cancelar(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CancelarDocumentoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	doc, err := h.cancelar.Cancelar(c.Context(), tenantID, userID, c.Params("id"), in)
	if err != nil {
		return respostaErro(c, err)
	}
	return c.JSON(doc)
}

// Correcao registra uma carta de correção eletrônica.
// POST /api/fiscal/documentos/:id/correcao
func (h *FiscalHandler) Correcao(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CorrecaoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	correcao, err := h.correcao.Registrar(c.Context(), tenantID, userID, c.Params("id"), in)
	if err != nil {
		return respostaErro(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(correcao)
}

// Sincronizar roda um ciclo de sincronização das pendências do tenant.
// POST /api/fiscal/sincronizacao
func (h *FiscalHandler) Sincronizar(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	resumo, err := h.consultar.SincronizarPendentes(c.Context(), tenantID, userID)
	if err != nil {
		return respostaErro(c, err)
	}
	return c.JSON(resumo)
}
