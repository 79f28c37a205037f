package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/application/fiscal"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
	"github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/postgres"
	httpRouter "github.com/Clegivaldo/medmanager-fiscal/internal/interfaces/http"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/config"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sefaz", cfg.Sefaz.Ambiente).
		Msg("iniciando motor fiscal")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
	}
	defer pool.Close()

	perfilRepo := postgres.NewPerfilFiscalRepository(pool)
	serieRepo := postgres.NewSerieFiscalRepository(pool)
	docRepo := postgres.NewDocumentoFiscalRepository(pool)
	produtoRepo := postgres.NewProdutoRepository(pool)
	clienteRepo := postgres.NewClienteRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	xmlBuilder := infranfe.NewXMLBuilderService()
	assinador := infranfe.NewAssinaturaService()
	certificados := infranfe.NewCertificadoService(cfg.Cert.MasterKey)
	qrcode := infranfe.NewQRCodeService()

	// Gateway SEFAZ — em homologação com SEFAZ_SIMULACAO o simulador responde
	// localmente. config.Load já recusou simulação em produção, e a emissão
	// recusa tenant com certificado enquanto o modo estiver ligado.
	var gateway infranfe.SefazGateway
	if cfg.Sefaz.Simulacao {
		log.Warn().Msg("gateway SEFAZ em modo simulação (somente homologação)")
		gateway = infranfe.NewSimuladorSefaz()
	} else {
		gateway = infranfe.NewSOAPSefazClient(cfg.Sefaz.URL, cfg.Sefaz.Ambiente, cfg.Sefaz.Timeout)
	}

	emitirUC := appfiscal.NewEmitirDocumentoUseCase(
		txRunner, perfilRepo, serieRepo, docRepo, produtoRepo, clienteRepo,
		xmlBuilder, certificados, assinador, qrcode,
		gateway, cfg.Sefaz.Simulacao, log,
	)
	cancelarUC := appfiscal.NewCancelarDocumentoUseCase(txRunner, docRepo, gateway, log)
	correcaoUC := appfiscal.NewRegistrarCorrecaoUseCase(txRunner, docRepo, gateway, log)
	consultarUC := appfiscal.NewConsultarDocumentoUseCase(txRunner, docRepo, gateway, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: cfg.HTTP.SwaggerFile,
		Path:     "docs",
		Title:    "MedManager Fiscal API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Fiscal:    httpRouter.NewFiscalHandler(emitirUC, cancelarUC, correcaoUC, consultarUC),
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("encerramento do servidor")
	}

	log.Info().Msg("aplicação parada")
}
