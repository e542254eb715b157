package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"1", 6, "1000000"},
		{"0.2", 6, "200000"},
		{"1.7", 6, "1700000"},
		{"0.1234567", 6, "123456"},
		{"0.01", 18, "10000000000000000"},
		{"5", 0, "5"},
		{"0", 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ParseUnits(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseUnitsInvalid(t *testing.T) {
	for _, amount := range []string{"", "abc", "1.2.3", "-1"} {
		_, err := ParseUnits(amount, 6)
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.7", FormatUnits(big.NewInt(1700000), 6))
	assert.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6))
	assert.Equal(t, "0", FormatUnits(big.NewInt(0), 18))
	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.Equal(t, "42", FormatUnits(big.NewInt(42), 0))

	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, "1.5", FormatUnits(wei, 18))
}

func TestRoundTrip(t *testing.T) {
	for _, amount := range []string{"1", "0.2", "123.456789", "0.000001"} {
		raw, err := ParseUnits(amount, 6)
		require.NoError(t, err)
		assert.Equal(t, amount, FormatUnits(raw, 6))
	}

	// beyond precision the value is truncated, not rounded
	raw, err := ParseUnits("1.9999999", 6)
	require.NoError(t, err)
	assert.Equal(t, "1.999999", FormatUnits(raw, 6))
}
