package fiscal_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// ──────────────────────────────────────────────────────────────────────────────
// Cenário Simples Nacional: linha de 100.00 ⇒ ICMS 0.00 (CSOSN 102, sem
// crédito), PIS 0.00, COFINS 0.00, total 0.00.
// ──────────────────────────────────────────────────────────────────────────────

func TestCalcularTributos_SimplesNacional(t *testing.T) {
	tr, err := fiscal.CalcularTributos(nfe.RegimeSimples, nfe.UFSaoPaulo,
		decimal.NewFromFloat(100.00), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, tr.ICMS.Valor.IsZero(), "ICMS do Simples deve ser 0")
	assert.Equal(t, nfe.CSOSNSimplesSemCredito, tr.ICMS.Codigo, "código de classificação não pode ser vazio")
	assert.True(t, tr.PIS.Valor.IsZero())
	assert.True(t, tr.COFINS.Valor.IsZero())
	assert.True(t, tr.Total().IsZero())
}

// ──────────────────────────────────────────────────────────────────────────────
// Cenário regime normal: linha de 1000.00, SP (18%) ⇒ ICMS 180.00;
// par cumulativo (0.65%, 3.00%) ⇒ PIS 6.50, COFINS 30.00; total 216.50;
// alíquota efetiva 21.65%.
// ──────────────────────────────────────────────────────────────────────────────

func TestCalcularTributos_LucroPresumido(t *testing.T) {
	base := decimal.NewFromFloat(1000.00)
	tr, err := fiscal.CalcularTributos(nfe.RegimeLucroPresumido, nfe.UFSaoPaulo, base, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "180.00", tr.ICMS.Valor.StringFixed(2))
	assert.Equal(t, "6.50", tr.PIS.Valor.StringFixed(2))
	assert.Equal(t, "30.00", tr.COFINS.Valor.StringFixed(2))
	assert.Equal(t, "216.50", tr.Total().StringFixed(2))
	assert.Equal(t, "21.65", fiscal.AliquotaEfetiva(tr.Total(), base).StringFixed(2))
}

func TestCalcularTributos_LucroReal(t *testing.T) {
	tr, err := fiscal.CalcularTributos(nfe.RegimeLucroReal, nfe.UFRioDeJaneiro,
		decimal.NewFromFloat(200.00), decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "40.00", tr.ICMS.Valor.StringFixed(2), "RJ 20%")
	assert.Equal(t, "3.30", tr.PIS.Valor.StringFixed(2), "1.65% não cumulativo")
	assert.Equal(t, "15.20", tr.COFINS.Valor.StringFixed(2), "7.60% não cumulativo")
}

func TestCalcularTributos_DescontoReduzBase(t *testing.T) {
	tr, err := fiscal.CalcularTributos(nfe.RegimeLucroPresumido, nfe.UFSaoPaulo,
		decimal.NewFromFloat(150.00), decimal.NewFromFloat(50.00))
	require.NoError(t, err)

	assert.Equal(t, "100.00", tr.ICMS.Base.StringFixed(2))
	assert.Equal(t, "18.00", tr.ICMS.Valor.StringFixed(2))
}

// TestArredondamento_PorLinhaAntesDaSoma: o agregado é a soma dos valores já
// arredondados linha a linha — nunca o arredondamento da soma não arredondada.
// 3 linhas de 33.37 a 18%: por linha 6.0066 → 6.01, soma 18.03;
// re-arredondar a soma crua daria round(18.0198) = 18.02 (divergência de 1 centavo).
func TestArredondamento_PorLinhaAntesDaSoma(t *testing.T) {
	linha := decimal.NewFromFloat(33.37)
	var soma decimal.Decimal
	for i := 0; i < 3; i++ {
		tr, err := fiscal.CalcularTributos(nfe.RegimeLucroPresumido, nfe.UFSaoPaulo, linha, decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, "6.01", tr.ICMS.Valor.StringFixed(2))
		soma = soma.Add(tr.ICMS.Valor)
	}
	assert.Equal(t, "18.03", soma.StringFixed(2))

	cru := linha.Mul(decimal.NewFromInt(3)).Mul(decimal.NewFromInt(18)).Div(decimal.NewFromInt(100))
	assert.Equal(t, "18.02", cru.Round(2).StringFixed(2), "o caminho errado diverge em 1 centavo")
}

func TestCalcularTributos_Erros(t *testing.T) {
	_, err := fiscal.CalcularTributos("9", nfe.UFSaoPaulo, decimal.NewFromInt(10), decimal.Zero)
	assert.ErrorIs(t, err, fiscal.ErrRegimeNaoSuportado)

	_, err = fiscal.CalcularTributos(nfe.RegimeLucroReal, "99", decimal.NewFromInt(10), decimal.Zero)
	assert.ErrorIs(t, err, fiscal.ErrUFNaoSuportada)
}

func TestAliquotaEfetiva_BaseZero(t *testing.T) {
	assert.True(t, fiscal.AliquotaEfetiva(decimal.NewFromInt(10), decimal.Zero).IsZero())
}
