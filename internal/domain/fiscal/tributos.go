// Cálculo de tributos por item: ICMS, PIS e COFINS, a partir de tabelas
// estáticas por regime e UF. Função pura, sem retry nem persistência.
//
// Política de arredondamento: todo valor monetário é arredondado para 2 casas
// (half-away-from-zero) no ponto do cálculo, antes de qualquer soma. Agregados
// são somas de valores já arredondados — nunca re-arredondamento de somas —
// para que o total declarado feche ao centavo com o XML assinado.

package fiscal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// Tributo resultado do cálculo de um tipo de imposto sobre uma linha.
type Tributo struct {
	Codigo   string          // CST/CSOSN do regime
	Base     decimal.Decimal // base de cálculo (2 casas)
	Aliquota decimal.Decimal // percentual aplicado
	Valor    decimal.Decimal // valor devido (2 casas)
}

// TributosItem agrega os três tributos de uma linha.
type TributosItem struct {
	ICMS   Tributo
	PIS    Tributo
	COFINS Tributo
}

// Total soma dos três valores (já arredondados linha a linha).
func (t TributosItem) Total() decimal.Decimal {
	return t.ICMS.Valor.Add(t.PIS.Valor).Add(t.COFINS.Valor)
}

// aliquotasICMS alíquota interna publicada por UF (código IBGE).
var aliquotasICMS = map[string]decimal.Decimal{
	nfe.UFSaoPaulo:     decimal.NewFromInt(18),
	nfe.UFRioDeJaneiro: decimal.NewFromInt(20),
	nfe.UFMinasGerais:  decimal.NewFromInt(18),
	nfe.UFParana:       decimal.NewFromFloat(19.5),
	nfe.UFBahia:        decimal.NewFromFloat(20.5),
	nfe.UFRioGrandeSul: decimal.NewFromInt(17),
}

// pares PIS/COFINS por regime: cumulativo (Lucro Presumido) e
// não cumulativo (Lucro Real); Simples Nacional recolhe via DAS (0/0 aqui).
var (
	aliqPISPresumido    = decimal.NewFromFloat(0.65)
	aliqCOFINSPresumido = decimal.NewFromFloat(3.00)
	aliqPISReal         = decimal.NewFromFloat(1.65)
	aliqCOFINSReal      = decimal.NewFromFloat(7.60)
)

var cem = decimal.NewFromInt(100)

// CalcularTributos calcula ICMS, PIS e COFINS de uma linha com base
// (valorBruto − desconto). No Simples Nacional o ICMS sai com valor zero mas
// código CSOSN 102 (sem aproveitamento de crédito); nos regimes normais aplica
// a alíquota da UF.
func CalcularTributos(regime, uf string, valorBruto, desconto decimal.Decimal) (TributosItem, error) {
	if !nfe.ValidTaxRegimes[regime] {
		return TributosItem{}, fmt.Errorf("%w: %q", ErrRegimeNaoSuportado, regime)
	}
	base := valorBruto.Sub(desconto).Round(2)

	var out TributosItem
	switch regime {
	case nfe.RegimeSimples:
		out.ICMS = Tributo{Codigo: nfe.CSOSNSimplesSemCredito, Base: base, Aliquota: decimal.Zero, Valor: decimal.Zero}
		out.PIS = Tributo{Codigo: nfe.CSTPISCOFINSAliqBasica, Base: base, Aliquota: decimal.Zero, Valor: decimal.Zero}
		out.COFINS = Tributo{Codigo: nfe.CSTPISCOFINSAliqBasica, Base: base, Aliquota: decimal.Zero, Valor: decimal.Zero}
		return out, nil

	case nfe.RegimeLucroPresumido, nfe.RegimeLucroReal:
		aliqICMS, ok := aliquotasICMS[uf]
		if !ok {
			return TributosItem{}, fmt.Errorf("%w: cUF %q", ErrUFNaoSuportada, uf)
		}
		aliqPIS, aliqCOFINS := aliqPISPresumido, aliqCOFINSPresumido
		if regime == nfe.RegimeLucroReal {
			aliqPIS, aliqCOFINS = aliqPISReal, aliqCOFINSReal
		}
		out.ICMS = tributoProporcional(nfe.CSTICMSTributadoIntegral, base, aliqICMS)
		out.PIS = tributoProporcional(nfe.CSTPISCOFINSAliqBasica, base, aliqPIS)
		out.COFINS = tributoProporcional(nfe.CSTPISCOFINSAliqBasica, base, aliqCOFINS)
		return out, nil
	}
	return TributosItem{}, fmt.Errorf("%w: %q", ErrRegimeNaoSuportado, regime)
}

func tributoProporcional(codigo string, base, aliquota decimal.Decimal) Tributo {
	return Tributo{
		Codigo:   codigo,
		Base:     base,
		Aliquota: aliquota,
		// Round(2) do shopspring é half-away-from-zero, exigido pelo leiaute.
		Valor: base.Mul(aliquota).Div(cem).Round(2),
	}
}

// AliquotaEfetiva percentual de carga tributária sobre a base do documento.
// Base zero reporta 0 (indefinido matematicamente, 0 por convenção do leiaute).
func AliquotaEfetiva(totalTributos, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return totalTributos.Div(base).Mul(cem).Round(2)
}
