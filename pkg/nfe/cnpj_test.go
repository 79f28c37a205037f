package nfe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

func TestValidarCNPJ(t *testing.T) {
	assert.NoError(t, nfe.ValidarCNPJ("12.345.678/0001-95"))
	assert.NoError(t, nfe.ValidarCNPJ("12345678000195"))
	assert.Error(t, nfe.ValidarCNPJ("12345678000194"), "DV trocado")
	assert.Error(t, nfe.ValidarCNPJ("123456780001"), "curto")
}

func TestValidarCPF(t *testing.T) {
	assert.NoError(t, nfe.ValidarCPF("123.456.789-09"))
	assert.Error(t, nfe.ValidarCPF("12345678900"), "DV trocado")
	assert.Error(t, nfe.ValidarCPF("123"), "curto")
}

func TestValidarDocumentoFiscal(t *testing.T) {
	assert.NoError(t, nfe.ValidarDocumentoFiscal("12345678000195"))
	assert.NoError(t, nfe.ValidarDocumentoFiscal("12345678909"))
	assert.Error(t, nfe.ValidarDocumentoFiscal("42"))
}
