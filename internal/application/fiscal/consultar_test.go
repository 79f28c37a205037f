package fiscal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/application/fiscal"
	domfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

func novoConsultor(b *bancoFake, gw *gatewayFake) *appfiscal.ConsultarDocumentoUseCase {
	return appfiscal.NewConsultarDocumentoUseCase(txRunnerFake{b}, b, gw, logTeste())
}

func TestGetXMLDevolveVerbatim(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	doc := emiteAutorizada(t, b, time.Now().Add(-1*time.Hour))

	uc := novoConsultor(b, &gatewayFake{})
	xml, err := uc.GetXML(context.Background(), "tenant-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.XMLAssinado, string(xml), "o XML retido sai byte a byte como foi guardado")
}

func TestGetXMLDocumentoInexistente(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	uc := novoConsultor(b, &gatewayFake{})
	_, err := uc.GetXML(context.Background(), "tenant-1", "doc-999")
	require.ErrorIs(t, err, domfiscal.ErrDocumentoNaoEncontrado)
}

func TestSincronizarPendenteAutorizado(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	gw := &gatewayFake{autorizarErr: domfiscal.ErrTransitorio}
	_, err := novoEmissor(b, gw, true).Emitir(context.Background(), "tenant-1", "user-1", pedidoNFCe())
	require.NoError(t, err)
	require.Equal(t, domfiscal.StatusPendente, b.documentos[0].Status)
	require.Empty(t, b.baixas, "sem baixa enquanto pendente")

	uc := novoConsultor(b, &gatewayFake{consultar: respostaAutorizada()})
	resumo, err := uc.SincronizarPendentes(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, resumo.Processados)
	assert.Equal(t, 1, resumo.Autorizados)
	assert.Zero(t, resumo.AindaPendentes)

	doc := b.documentos[0]
	assert.Equal(t, domfiscal.StatusAutorizada, doc.Status)
	assert.Equal(t, "135240000000001", doc.Protocolo)
	assert.False(t, doc.EstoquePendente)
	assert.Equal(t, "0", loteQuantidade(b, "lote-a").String(), "a baixa acompanha a autorização tardia")
	assert.Equal(t, "9", loteQuantidade(b, "lote-b").String())
}

func TestSincronizarPendenteDenegado(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	gw := &gatewayFake{autorizarErr: domfiscal.ErrTransitorio}
	_, err := novoEmissor(b, gw, true).Emitir(context.Background(), "tenant-1", "user-1", pedidoNFCe())
	require.NoError(t, err)

	uc := novoConsultor(b, &gatewayFake{consultar: &infranfe.ResultadoSefaz{
		CStat:  nfe.CStatUsoDenegado,
		Motivo: "Uso Denegado",
	}})
	resumo, err := uc.SincronizarPendentes(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, resumo.Denegados)
	assert.Equal(t, domfiscal.StatusDenegada, b.documentos[0].Status)
	assert.Empty(t, b.baixas, "denegação nunca movimenta estoque")
}

func TestSincronizarSefazIndisponivel(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	gw := &gatewayFake{autorizarErr: domfiscal.ErrTransitorio}
	_, err := novoEmissor(b, gw, true).Emitir(context.Background(), "tenant-1", "user-1", pedidoNFCe())
	require.NoError(t, err)

	// consultar nil força erro transitório no fake.
	resumo, err := novoConsultor(b, &gatewayFake{}).SincronizarPendentes(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err, "indisponibilidade não interrompe o ciclo")

	assert.Equal(t, 1, resumo.AindaPendentes)
	assert.Equal(t, domfiscal.StatusPendente, b.documentos[0].Status)
}

func TestSincronizarReconciliaEstoquePendente(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	b.falhaBaixa = true
	gw := &gatewayFake{autorizar: respostaAutorizada()}
	_, err := novoEmissor(b, gw, true).Emitir(context.Background(), "tenant-1", "user-1", pedidoNFCe())
	require.NoError(t, err)
	require.True(t, b.documentos[0].EstoquePendente)
	require.Equal(t, "2", loteQuantidade(b, "lote-a").String(), "baixa original falhou")

	// Estoque volta a responder.
	b.falhaBaixa = false

	resumo, err := novoConsultor(b, &gatewayFake{}).SincronizarPendentes(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, resumo.EstoqueReconciliado)
	assert.False(t, b.documentos[0].EstoquePendente)
	assert.Equal(t, "0", loteQuantidade(b, "lote-a").String())
	assert.Equal(t, "9", loteQuantidade(b, "lote-b").String())
	assert.Len(t, b.baixas, 2)
}

func TestSincronizarSemPendencias(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	resumo, err := novoConsultor(b, &gatewayFake{}).SincronizarPendentes(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err)
	assert.Zero(t, resumo.Processados)
}

func TestListarRespostasAcumulaHistorico(t *testing.T) {
	b := novoBancoFake(nfe.ModeloNFCe)
	doc := emiteAutorizada(t, b, time.Now().Add(-1*time.Hour))

	uc := novoConsultor(b, &gatewayFake{})
	respostas, err := uc.ListarRespostas(context.Background(), "tenant-1", doc.ID)
	require.NoError(t, err)
	require.Len(t, respostas, 1)
	assert.Equal(t, "autorizacao", respostas[0].Operacao)
	assert.Equal(t, nfe.CStatAutorizado, respostas[0].CStat)
	assert.Equal(t, "<protNFe/>", respostas[0].Payload, "payload bruto retido verbatim")
}
