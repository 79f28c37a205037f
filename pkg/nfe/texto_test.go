package nfe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

func TestNormalizarTexto(t *testing.T) {
	assert.Equal(t, "FARMACIA SAO JOAO LTDA", nfe.NormalizarTexto("  FARMÁCIA   SÃO JOÃO LTDA "))
	assert.Equal(t, "Dipirona 500mg cx 20", nfe.NormalizarTexto("Dipirona\t500mg\ncx 20"))
	assert.Equal(t, "", nfe.NormalizarTexto("   "))
}

func TestTruncarTexto(t *testing.T) {
	assert.Equal(t, "abc", nfe.TruncarTexto("abcdef", 3))
	assert.Equal(t, "abcdef", nfe.TruncarTexto("abcdef", 60))
	assert.Equal(t, "", nfe.TruncarTexto("abc", 0))
}
