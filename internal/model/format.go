package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnits renders a raw token amount in whole units, e.g. 1500000 with 6 decimals -> "1.5".
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// ParseUnits is the inverse of FormatUnits. Digits beyond the token's precision are truncated.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// BigString renders nil as "0".
func BigString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
