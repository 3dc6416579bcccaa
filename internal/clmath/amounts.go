package clmath

import (
	"math/big"
)

// amount0Delta is L * (sqrtB - sqrtA) * 2^96 / sqrtB / sqrtA, rounded down.
func amount0Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Lsh(liquidity, 96)
	num.Mul(num, new(big.Int).Sub(sqrtB, sqrtA))
	num.Quo(num, sqrtB)
	return num.Quo(num, sqrtA)
}

// amount1Delta is L * (sqrtB - sqrtA) / 2^96, rounded down.
func amount1Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return num.Quo(num, Q96)
}

// GetAmountsForLiquidity returns the token amounts represented by liquidity
// between sqrtA and sqrtB at the current price sqrtP. Both results round down.
func GetAmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return amount0Delta(sqrtA, sqrtB, liquidity), new(big.Int)
	case sqrtP.Cmp(sqrtB) >= 0:
		return new(big.Int), amount1Delta(sqrtA, sqrtB, liquidity)
	default:
		return amount0Delta(sqrtP, sqrtB, liquidity), amount1Delta(sqrtA, sqrtP, liquidity)
	}
}

// AmountsForPosition resolves the range bounds from ticks and delegates to GetAmountsForLiquidity.
func AmountsForPosition(liquidity *big.Int, tickLower, tickUpper int32, sqrtP *big.Int) (*big.Int, *big.Int, error) {
	sqrtA, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}
	amount0, amount1 := GetAmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	return amount0, amount1, nil
}
