package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (2 decimal places).
type Money int64

const moneyPlaces = 2

var (
	ErrInvalidMoney = errors.New("invalid amount")

	maxMoney = decimal.New(1, 15)
)

// MoneyFromDecimal rounds half away from zero to 2 places.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidMoney, d.String())
	}
	return Money(d.Round(moneyPlaces).Shift(moneyPlaces).IntPart()), nil
}

func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidMoney)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return MoneyFromDecimal(d)
}

func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not a finite number", ErrInvalidMoney)
	}
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

// MustMoney is for constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -moneyPlaces)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(moneyPlaces)
}

func (m Money) IsPositive() bool { return m > 0 }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func MinMoney(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
