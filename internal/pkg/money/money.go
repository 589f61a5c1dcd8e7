package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

var ErrInvalidAmount = errors.New("invalid monetary amount")

// ToMinorUnits converts a major-unit amount (dollars) into minor units
// (cents), rounding half up. The float is read through its shortest decimal
// representation so 12.345 becomes 1235 rather than 1234.
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(amount, 'f', -1, 64))
	if !ok {
		return 0, ErrInvalidAmount
	}
	r.Mul(r, big.NewRat(100, 1))

	// floor(x + 1/2) for x >= 0; negatives are rounded away from zero symmetrically.
	neg := r.Sign() < 0
	if neg {
		r.Neg(r)
	}
	r.Add(r, big.NewRat(1, 2))
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if !q.IsInt64() {
		return 0, ErrInvalidAmount
	}
	cents := q.Int64()
	if neg {
		cents = -cents
	}
	return cents, nil
}

// PositiveMinorUnits is ToMinorUnits that rejects amounts that round to zero
// or below.
func PositiveMinorUnits(amount float64) (int64, error) {
	cents, err := ToMinorUnits(amount)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, fmt.Errorf("%w: %v rounds to %d minor units", ErrInvalidAmount, amount, cents)
	}
	return cents, nil
}

// Format keeps consistent decimal formatting for currency fields.
func Format(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}
