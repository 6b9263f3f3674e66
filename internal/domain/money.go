package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency identifies the monetary unit a loan is denominated in, together
// with the number of decimal places amounts are rounded to for display.
type Currency struct {
	Code          string `json:"code"`
	DecimalPlaces int32  `json:"decimal_places"`
}

func NewCurrency(code string, decimalPlaces int32) Currency {
	return Currency{Code: code, DecimalPlaces: decimalPlaces}
}

func (c Currency) String() string {
	return c.Code
}

// Money is an immutable decimal amount bound to a currency. All arithmetic
// between two Money values requires matching currencies; a mismatch is a
// programming error and panics rather than returning an error.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func NewMoney(currency Currency, amount decimal.Decimal) Money {
	return Money{amount: amount, currency: currency}
}

func MoneyZero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() Currency {
	return m.currency
}

func (m Money) assertSameCurrency(other Money) {
	if m.currency != other.currency {
		panic(fmt.Sprintf("currency mismatch: %s vs %s", m.currency, other.currency))
	}
}

func (m Money) Plus(other Money) Money {
	m.assertSameCurrency(other)
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}
}

func (m Money) Minus(other Money) Money {
	m.assertSameCurrency(other)
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}
}

func (m Money) MultipliedBy(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

func (m Money) Negated() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsGreaterThanZero() bool {
	return m.amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

func (m Money) IsGreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.amount.GreaterThan(other.amount)
}

func (m Money) IsGreaterThanOrEqualTo(other Money) bool {
	m.assertSameCurrency(other)
	return m.amount.GreaterThanOrEqual(other.amount)
}

func (m Money) IsLessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.amount.LessThan(other.amount)
}

func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) Money {
	if m.IsLessThan(other) {
		return m
	}
	return other
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.DecimalPlaces), m.currency.Code)
}
