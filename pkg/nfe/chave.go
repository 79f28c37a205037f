// Chave de acesso da NF-e/NFC-e: 43 dígitos de dados + 1 dígito verificador
// módulo-11 (pesos cíclicos 2..9 aplicados do dígito mais à direita).

package nfe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLarguraCampo indica que um componente da chave não cabe na largura fixa
// definida pelo leiaute (ex.: número > 9 dígitos, CNPJ != 14 dígitos).
var ErrLarguraCampo = errors.New("nfe: componente não cabe na largura fixa da chave")

// CamposChave agrupa os componentes que formam os 43 dígitos da chave de acesso.
// Larguras fixas: cUF(2) + AAMM(4) + CNPJ(14) + mod(2) + série(3) + nNF(9) +
// tpEmis(1) + cNF(8).
type CamposChave struct {
	UF          string    // código IBGE da UF (2 dígitos)
	Emissao     time.Time // usada como AAMM (ano-mês da emissão)
	CNPJ        string    // CNPJ do emitente, somente dígitos (14)
	Modelo      string    // "55" ou "65"
	Serie       int       // série do documento (0..999)
	Numero      int64     // número do documento (1..999999999)
	TipoEmissao string    // tpEmis (1 dígito)
	CodigoNF    int       // cNF, código numérico aleatório (0..99999999)
}

// Derivar monta a chave de 44 dígitos (43 de dados + DV módulo-11).
// Retorna também o dígito verificador isolado, usado no campo cDV do XML.
func Derivar(c CamposChave) (chave string, dv byte, err error) {
	uf := somenteDigitos(c.UF)
	if len(uf) != 2 {
		return "", 0, fmt.Errorf("%w: cUF %q deve ter 2 dígitos", ErrLarguraCampo, c.UF)
	}
	cnpj := somenteDigitos(c.CNPJ)
	if len(cnpj) != 14 {
		return "", 0, fmt.Errorf("%w: CNPJ %q deve ter 14 dígitos", ErrLarguraCampo, c.CNPJ)
	}
	if !ValidDocumentModels[c.Modelo] {
		return "", 0, fmt.Errorf("%w: modelo %q inválido", ErrLarguraCampo, c.Modelo)
	}
	if c.Serie < 0 || c.Serie > 999 {
		return "", 0, fmt.Errorf("%w: série %d fora de 0..999", ErrLarguraCampo, c.Serie)
	}
	if c.Numero < 1 || c.Numero > 999_999_999 {
		return "", 0, fmt.Errorf("%w: número %d fora de 1..999999999", ErrLarguraCampo, c.Numero)
	}
	if len(c.TipoEmissao) != 1 || c.TipoEmissao[0] < '1' || c.TipoEmissao[0] > '9' {
		return "", 0, fmt.Errorf("%w: tpEmis %q deve ter 1 dígito (1..9)", ErrLarguraCampo, c.TipoEmissao)
	}
	if c.CodigoNF < 0 || c.CodigoNF > 99_999_999 {
		return "", 0, fmt.Errorf("%w: cNF %d fora de 0..99999999", ErrLarguraCampo, c.CodigoNF)
	}
	if c.Emissao.IsZero() {
		return "", 0, fmt.Errorf("%w: data de emissão obrigatória", ErrLarguraCampo)
	}

	base := fmt.Sprintf("%s%s%s%s%03d%09d%s%08d",
		uf,
		c.Emissao.Format("0601"), // AAMM
		cnpj,
		c.Modelo,
		c.Serie,
		c.Numero,
		c.TipoEmissao,
		c.CodigoNF,
	)
	// 2+4+14+2+3+9+1+8 = 43; garantido pelas validações acima.
	dv = digitoVerificador(base)
	return base + string(dv), dv, nil
}

// Validar recomputa o DV a partir dos 43 primeiros dígitos e compara com o 44º.
func Validar(chave string) bool {
	if len(chave) != 44 {
		return false
	}
	for i := 0; i < 44; i++ {
		if chave[i] < '0' || chave[i] > '9' {
			return false
		}
	}
	return digitoVerificador(chave[:43]) == chave[43]
}

// digitoVerificador aplica módulo-11 com pesos 2..9 repetidos ciclicamente a
// partir do dígito mais à direita; resto 0 ou 1 vira dígito 0, senão 11−resto.
func digitoVerificador(base43 string) byte {
	sum := 0
	peso := 2
	for i := len(base43) - 1; i >= 0; i-- {
		sum += int(base43[i]-'0') * peso
		peso++
		if peso > 9 {
			peso = 2
		}
	}
	resto := sum % 11
	if resto == 0 || resto == 1 {
		return '0'
	}
	return byte('0' + (11 - resto))
}

func somenteDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
