package units

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for malformed or negative amounts
var ErrInvalidAmount = errors.New("invalid amount")

// ParseUnits converts a human readable amount into the token's smallest unit.
// Digits beyond decimals are truncated.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", amount)
	}
	if d.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is negative", amount)
	}

	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FormatUnits renders a smallest-unit amount as a decimal string
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}
