package clmath

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityDesk/internal/model"
)

var errDivByZero = errors.New("division by zero")

// toU256 reduces x modulo 2^256. Negative inputs wrap the same way the EVM does.
func toU256(x *big.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	z, _ := uint256.FromBig(x)
	return z
}

func checkedU256(x *big.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative %s", model.ErrAmountOverflow, x)
	}
	z, overflow := uint256.FromBig(x)
	if overflow {
		return nil, fmt.Errorf("%w: %s", model.ErrAmountOverflow, x)
	}
	return z, nil
}

// MulDiv returns floor(a*b/d) computed over a 512-bit intermediate. It fails
// only when d is zero or the quotient does not fit in 256 bits.
func MulDiv(a, b, d *big.Int) (*big.Int, error) {
	x, err := checkedU256(a)
	if err != nil {
		return nil, err
	}
	y, err := checkedU256(b)
	if err != nil {
		return nil, err
	}
	den, err := checkedU256(d)
	if err != nil {
		return nil, err
	}
	if den.IsZero() {
		return nil, fmt.Errorf("mulDiv: %w", errDivByZero)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, den)
	if overflow {
		return nil, fmt.Errorf("mulDiv: %w", model.ErrAmountOverflow)
	}
	return z.ToBig(), nil
}

// SubFeeGrowth returns (a - b) mod 2^256. It never fails.
func SubFeeGrowth(a, b *big.Int) *big.Int {
	return new(uint256.Int).Sub(toU256(a), toU256(b)).ToBig()
}
