package lending

import (
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in cents. Fines are always whole cents, so rounding to 2 decimals is exact.
type Money int64

// MoneyFromFloat converts a decimal amount (e.g. 0.50) to Money, rounding half away from zero.
func MoneyFromFloat(amount float64) Money {
	return Money(math.Round(amount * 100))
}

// ParseMoney parses a decimal string like "5.00" or "0.5".
func ParseMoney(s string) (Money, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}

	return MoneyFromFloat(f), nil
}

// Cents returns the amount in cents.
func (m Money) Cents() int64 {
	return int64(m)
}

// Float returns the amount as a decimal value, for display and metrics only.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String renders the amount with exactly 2 decimals.
func (m Money) String() string {
	sign := ""
	cents := int64(m)
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON renders the amount as a JSON number with 2 decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}
