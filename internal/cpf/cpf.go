// Package cpf validates Brazilian national IDs (Cadastro de Pessoas Físicas).
package cpf

import (
	"strings"
	"unicode"

	"github.com/eventportal/backend/pkg/apperror"
)

// ErrInvalid is returned by Validate when the checksum rules fail.
var ErrInvalid = apperror.Validation(apperror.CodeInvalidCPF, "invalid cpf")

// Digits strips every non-digit character from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether s, with punctuation ignored, is a valid CPF.
func IsValid(s string) bool {
	d := Digits(s)
	if len(d) != 11 || d == strings.Repeat(d[:1], 11) {
		return false
	}
	n := make([]int, 11)
	for i, r := range d {
		n[i] = int(r - '0')
	}
	return checkDigit(n, 9) == n[9] && checkDigit(n, 10) == n[10]
}

// checkDigit computes the verifier for position pos using the first pos digits.
func checkDigit(n []int, pos int) int {
	sum := 0
	for i := 0; i < pos; i++ {
		sum += n[i] * (pos + 1 - i)
	}
	return (sum * 10 % 11) % 10
}

// Validate returns s unchanged when valid, ErrInvalid otherwise.
func Validate(s string) (string, error) {
	if !IsValid(s) {
		return "", ErrInvalid
	}
	return s, nil
}

// IsPlain reports whether s is exactly 11 ASCII digits, the shape accepted on the public API.
func IsPlain(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
