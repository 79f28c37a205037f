// Package http expõe a API REST do motor fiscal sobre Fiber.
package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependências para o router.
type RouterDeps struct {
	Fiscal    *FiscalHandler
	JWTSecret string
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Healthcheck (público)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rotas protegidas (exigem Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	fiscal := protected.Group("/fiscal")
	fiscal.Post("/documentos", deps.Fiscal.Emitir)
	fiscal.Get("/documentos/:id", deps.Fiscal.GetByID)
	fiscal.Get("/documentos/:id/xml", deps.Fiscal.GetXML)
	fiscal.Get("/documentos/:id/respostas", deps.Fiscal.Respostas)
	fiscal.Post("/documentos/:id/cancelamento", deps.Fiscal.Cancelar)
	fiscal.Post("/documentos/:id/correcao", deps.Fiscal.Correcao)
	fiscal.Post("/sincronizacao", deps.Fiscal.Sincronizar)
}
