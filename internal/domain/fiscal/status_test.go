package fiscal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
)

func TestValidarTransicao(t *testing.T) {
	validas := [][2]fiscal.Status{
		{fiscal.StatusRascunho, fiscal.StatusPendente},
		{fiscal.StatusPendente, fiscal.StatusAutorizada},
		{fiscal.StatusPendente, fiscal.StatusDenegada},
		{fiscal.StatusAutorizada, fiscal.StatusCancelada},
	}
	for _, par := range validas {
		assert.NoError(t, fiscal.ValidarTransicao(par[0], par[1]), "%s -> %s", par[0], par[1])
	}

	invalidas := [][2]fiscal.Status{
		{fiscal.StatusDenegada, fiscal.StatusAutorizada},
		{fiscal.StatusCancelada, fiscal.StatusAutorizada},
		{fiscal.StatusRascunho, fiscal.StatusAutorizada},
		{fiscal.StatusAutorizada, fiscal.StatusPendente},
	}
	for _, par := range invalidas {
		err := fiscal.ValidarTransicao(par[0], par[1])
		assert.ErrorIs(t, err, fiscal.ErrTransicaoInvalida, "%s -> %s", par[0], par[1])
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, fiscal.StatusDenegada.Terminal())
	assert.True(t, fiscal.StatusCancelada.Terminal())
	assert.False(t, fiscal.StatusAutorizada.Terminal())
}

// TestValidarCancelamento_LimiteDaJanela: 23h59m59s cancela; 24h00m01s não.
func TestValidarCancelamento_LimiteDaJanela(t *testing.T) {
	agora := time.Date(2024, 7, 16, 12, 0, 0, 0, time.UTC)

	dentro := agora.Add(-(24*time.Hour - time.Second))
	assert.NoError(t, fiscal.ValidarCancelamento(fiscal.StatusAutorizada, &dentro, agora))

	exato := agora.Add(-24 * time.Hour)
	assert.NoError(t, fiscal.ValidarCancelamento(fiscal.StatusAutorizada, &exato, agora), "limite inclusivo")

	fora := agora.Add(-(24*time.Hour + time.Second))
	err := fiscal.ValidarCancelamento(fiscal.StatusAutorizada, &fora, agora)
	assert.ErrorIs(t, err, fiscal.ErrJanelaCancelamento)
}

func TestValidarCancelamento_StatusErrado(t *testing.T) {
	agora := time.Now()
	err := fiscal.ValidarCancelamento(fiscal.StatusPendente, &agora, agora)
	assert.ErrorIs(t, err, fiscal.ErrEstado)
	assert.NotErrorIs(t, err, fiscal.ErrJanelaCancelamento)
}

func TestValidarCorrecao(t *testing.T) {
	assert.NoError(t, fiscal.ValidarCorrecao(fiscal.StatusAutorizada))
	assert.ErrorIs(t, fiscal.ValidarCorrecao(fiscal.StatusDenegada), fiscal.ErrEstado)
	assert.ErrorIs(t, fiscal.ValidarCorrecao(fiscal.StatusPendente), fiscal.ErrEstado)
}
