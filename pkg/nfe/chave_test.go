package nfe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vetores calculados manualmente com o algoritmo módulo-11 do MOC:
//
//	base NF-e  = 35 + 2407 + 12345678000195 + 55 + 001 + 000000042 + 1 + 12345678
//	DV = 3  →  chave = 35240712345678000195550010000000421123456783
//
//	base NFC-e = 35 + 2407 + 12345678000195 + 65 + 001 + 000000007 + 1 + 00054321
//	DV = 5  →  chave = 35240712345678000195650010000000071000543215
// ──────────────────────────────────────────────────────────────────────────────

func camposNFe() nfe.CamposChave {
	return nfe.CamposChave{
		UF:          nfe.UFSaoPaulo,
		Emissao:     time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC),
		CNPJ:        "12.345.678/0001-95",
		Modelo:      nfe.ModeloNFe,
		Serie:       1,
		Numero:      42,
		TipoEmissao: nfe.EmissaoNormal,
		CodigoNF:    12345678,
	}
}

func TestDerivar_VetorNFe(t *testing.T) {
	chave, dv, err := nfe.Derivar(camposNFe())
	require.NoError(t, err)
	assert.Equal(t, "35240712345678000195550010000000421123456783", chave)
	assert.Equal(t, byte('3'), dv)
	assert.Len(t, chave, 44)
}

func TestDerivar_VetorNFCe(t *testing.T) {
	c := camposNFe()
	c.Modelo = nfe.ModeloNFCe
	c.Numero = 7
	c.CodigoNF = 54321

	chave, dv, err := nfe.Derivar(c)
	require.NoError(t, err)
	assert.Equal(t, "35240712345678000195650010000000071000543215", chave)
	assert.Equal(t, byte('5'), dv)
}

// TestValidar_RoundTrip garante que toda chave derivada valida contra o
// próprio DV, variando número, série e código aleatório.
func TestValidar_RoundTrip(t *testing.T) {
	base := camposNFe()
	for _, numero := range []int64{1, 42, 999, 999_999_999} {
		for _, cNF := range []int{0, 7, 99_999_999} {
			c := base
			c.Numero = numero
			c.CodigoNF = cNF
			chave, _, err := nfe.Derivar(c)
			require.NoError(t, err)
			assert.True(t, nfe.Validar(chave), "chave derivada deve validar: %s", chave)
		}
	}
}

// TestValidar_MutacaoDeDigito: trocar um único dígito da chave deve invalidar
// o DV na maioria esmagadora dos casos (limite de colisão do módulo-11).
func TestValidar_MutacaoDeDigito(t *testing.T) {
	chave, _, err := nfe.Derivar(camposNFe())
	require.NoError(t, err)

	total, invalidas := 0, 0
	for pos := 0; pos < 43; pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if chave[pos] == d {
				continue
			}
			mutada := chave[:pos] + string(d) + chave[pos+1:]
			total++
			if !nfe.Validar(mutada) {
				invalidas++
			}
		}
	}
	// Módulo-11: probabilidade de colisão de uma mutação simples <= 1/11.
	assert.GreaterOrEqual(t, float64(invalidas)/float64(total), 10.0/11.0)
}

func TestValidar_Formato(t *testing.T) {
	assert.False(t, nfe.Validar(""), "vazia")
	assert.False(t, nfe.Validar("123"), "curta demais")
	assert.False(t, nfe.Validar("3524071234567800019555001000000042112345678X"), "não numérica")
	// DV trocado
	assert.False(t, nfe.Validar("35240712345678000195550010000000421123456780"))
}

// ── Larguras fixas ────────────────────────────────────────────────────────────

func TestDerivar_ErroLargura(t *testing.T) {
	casos := map[string]func(*nfe.CamposChave){
		"cnpj curto":       func(c *nfe.CamposChave) { c.CNPJ = "123" },
		"numero estourado": func(c *nfe.CamposChave) { c.Numero = 1_000_000_000 },
		"numero zero":      func(c *nfe.CamposChave) { c.Numero = 0 },
		"serie estourada":  func(c *nfe.CamposChave) { c.Serie = 1000 },
		"uf invalida":      func(c *nfe.CamposChave) { c.UF = "5" },
		"modelo invalido":  func(c *nfe.CamposChave) { c.Modelo = "99" },
		"cnf estourado":    func(c *nfe.CamposChave) { c.CodigoNF = 100_000_000 },
	}
	for nome, mutar := range casos {
		t.Run(nome, func(t *testing.T) {
			c := camposNFe()
			mutar(&c)
			_, _, err := nfe.Derivar(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, nfe.ErrLarguraCampo)
		})
	}
}
