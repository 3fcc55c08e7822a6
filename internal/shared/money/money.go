// Package money implementa o tipo monetário de ponto fixo usado em todo o core:
// escala de 2 casas decimais e arredondamento half-up em toda operação derivada.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale é o número de casas decimais de qualquer valor monetário
const Scale = 2

// Money é um valor decimal com sinal e no máximo 2 casas decimais
// O valor zero é R$ 0,00 e pode ser usado diretamente
type Money struct {
	d decimal.Decimal
}

// Zero retorna 0.00
func Zero() Money { return Money{} }

// FromDecimal arredonda half-up para 2 casas
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// FromCents constrói a partir de centavos inteiros (1234 => 12.34)
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// Parse interpreta uma string decimal ("12.5", "10000.00")
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// ParseExact é o Parse das bordas de entrada: recusa valores com centavos fracionários
// ("0.995") em vez de arredondar; zeros à direita ("1.500") são aceitos
func ParseExact(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(Scale)) {
		return Money{}, fmt.Errorf("parse money %q: more than %d decimal places", s, Scale)
	}
	return FromDecimal(d), nil
}

// MustParse é Parse para constantes e testes
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }

// Mul multiplica por um fator decimal (ex: stake x odds) e arredonda half-up
func (m Money) Mul(factor decimal.Decimal) Money {
	return FromDecimal(m.d.Mul(factor))
}

// Cmp retorna -1, 0 ou 1
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool              { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool           { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool        { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) IsPositive() bool                { return m.d.IsPositive() }
func (m Money) IsNegative() bool                { return m.d.IsNegative() }
func (m Money) IsZero() bool                    { return m.d.IsZero() }

// Decimal expõe o valor para cálculos de odds
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents retorna o valor em centavos
func (m Money) Cents() int64 { return m.d.Shift(Scale).IntPart() }

// String sempre com 2 casas ("40.00")
func (m Money) String() string { return m.d.StringFixed(Scale) }

func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum soma uma lista de valores
func Sum(vals ...Money) Money {
	total := Zero()
	for _, v := range vals {
		total = total.Add(v)
	}
	return total
}

// MarshalJSON serializa como string para não perder precisão em clientes JS
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON aceita tanto "12.34" quanto 12.34
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = FromDecimal(d)
	return nil
}

// Value grava como NUMERIC no Postgres
func (m Money) Value() (driver.Value, error) { return m.String(), nil }

// Scan lê colunas NUMERIC
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("money scan: %w", err)
	}
	*m = FromDecimal(d)
	return nil
}
