package domain

import (
	"fmt"
	"math"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// minorUnitExponents lists ISO 4217 currencies whose minor unit is not 1/100.
var minorUnitExponents = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "TND": 3, "JOD": 3, "IQD": 3, "LYD": 3,
}

const defaultMinorUnitExponent = 2

// Currency is a three letter uppercase currency code.
type Currency struct {
	code string
}

// NewCurrency validates and returns a currency code.
func NewCurrency(code string) (Currency, error) {
	if !currencyCodeRegex.MatchString(code) {
		return Currency{}, fmt.Errorf("%w: must be 3 uppercase letters, got %q", ErrInvalidCurrency, code)
	}

	return Currency{code: code}, nil
}

// MustCurrency is NewCurrency for constants and tests.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}

	return c
}

// Code returns the currency code.
func (c Currency) Code() string {
	return c.code
}

// Exponent returns the number of decimal places of the currency's minor unit.
func (c Currency) Exponent() int32 {
	if exp, ok := minorUnitExponents[c.code]; ok {
		return exp
	}

	return defaultMinorUnitExponent
}

// IsZero reports whether c was never constructed.
func (c Currency) IsZero() bool {
	return c.code == ""
}

func (c Currency) String() string {
	return c.code
}

// Money is a strictly positive amount in minor units of a currency.
type Money struct {
	amount   int64
	currency Currency
}

// NewMoney builds Money from an amount in minor units.
func NewMoney(amountMinor int64, currency Currency) (Money, error) {
	if currency.IsZero() {
		return Money{}, fmt.Errorf("%w: currency is required", ErrInvalidCurrency)
	}

	if amountMinor <= 0 {
		return Money{}, fmt.Errorf("%w: got %d minor units", ErrInvalidAmount, amountMinor)
	}

	return Money{amount: amountMinor, currency: currency}, nil
}

// ParseMoney converts a major-unit decimal string such as "12.34" into Money.
// Values with more precision than the currency's minor unit are rejected.
func ParseMoney(amount, currencyCode string) (Money, error) {
	currency, err := NewCurrency(currencyCode)
	if err != nil {
		return Money{}, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, amount)
	}

	minor := d.Shift(currency.Exponent())
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, currency.Exponent())
	}

	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Money{}, fmt.Errorf("%w: %s is too large", ErrInvalidAmount, amount)
	}

	return NewMoney(minor.IntPart(), currency)
}

// Amount returns the amount in minor units.
func (m Money) Amount() int64 {
	return m.amount
}

// Currency returns the money's currency.
func (m Money) Currency() Currency {
	return m.currency
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.amount, -m.currency.Exponent())
}

// IsZero reports whether m was never constructed.
func (m Money) IsZero() bool {
	return m.amount == 0
}

func (m Money) String() string {
	return m.Decimal().StringFixed(m.currency.Exponent()) + " " + m.currency.code
}

// FormatMinor renders a signed minor-unit balance in major units for the currency.
func FormatMinor(amountMinor int64, currency Currency) string {
	return decimal.New(amountMinor, -currency.Exponent()).StringFixed(currency.Exponent())
}
