package nfe

import (
	"fmt"
	"unicode"
)

// pesos dos dígitos verificadores do CNPJ (módulo 11, Receita Federal).
// Aplicados aos 12 primeiros dígitos (1º DV) e aos 13 primeiros (2º DV).
var cnpjPesos1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
var cnpjPesos2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// ValidarCNPJ valida os dois dígitos verificadores de um CNPJ.
// Aceita o documento com ou sem pontuação ("12.345.678/0001-95" ou "12345678000195").
func ValidarCNPJ(doc string) error {
	digits := extrairDigitos(doc)
	if len(digits) != 14 {
		return fmt.Errorf("nfe: CNPJ deve ter 14 dígitos, recebidos %d", len(digits))
	}
	d1 := cnpjDV(digits[:12], cnpjPesos1[:])
	if digits[12] != d1 {
		return fmt.Errorf("nfe: primeiro dígito verificador do CNPJ inválido: esperado %c, recebido %c", d1, digits[12])
	}
	d2 := cnpjDV(digits[:13], cnpjPesos2[:])
	if digits[13] != d2 {
		return fmt.Errorf("nfe: segundo dígito verificador do CNPJ inválido: esperado %c, recebido %c", d2, digits[13])
	}
	return nil
}

// ValidarCPF valida os dois dígitos verificadores de um CPF (consumidor
// identificado na NFC-e).
func ValidarCPF(doc string) error {
	digits := extrairDigitos(doc)
	if len(digits) != 11 {
		return fmt.Errorf("nfe: CPF deve ter 11 dígitos, recebidos %d", len(digits))
	}
	if digits[9] != cpfDV(digits[:9], 10) {
		return fmt.Errorf("nfe: primeiro dígito verificador do CPF inválido")
	}
	if digits[10] != cpfDV(digits[:10], 11) {
		return fmt.Errorf("nfe: segundo dígito verificador do CPF inválido")
	}
	return nil
}

// ValidarDocumentoFiscal aceita CNPJ (14 dígitos) ou CPF (11 dígitos).
func ValidarDocumentoFiscal(doc string) error {
	switch len(extrairDigitos(doc)) {
	case 14:
		return ValidarCNPJ(doc)
	case 11:
		return ValidarCPF(doc)
	default:
		return fmt.Errorf("nfe: documento fiscal deve ter 11 (CPF) ou 14 (CNPJ) dígitos")
	}
}

func cnpjDV(base []byte, pesos []int) byte {
	sum := 0
	for i, d := range base {
		sum += int(d-'0') * pesos[i]
	}
	resto := sum % 11
	if resto < 2 {
		return '0'
	}
	return byte('0' + (11 - resto))
}

func cpfDV(base []byte, pesoInicial int) byte {
	sum := 0
	peso := pesoInicial
	for _, d := range base {
		sum += int(d-'0') * peso
		peso--
	}
	resto := (sum * 10) % 11
	return byte('0' + resto%10)
}

func extrairDigitos(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
