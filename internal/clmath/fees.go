package clmath

import (
	"math/big"

	"liquidityDesk/internal/model"
)

// FeeGrowthInside reconstructs the fee growth per unit of liquidity accrued
// inside [tickLower, tickUpper). All subtractions wrap modulo 2^256.
func FeeGrowthInside(tick, tickLower, tickUpper int32, global, outsideLower, outsideUpper *big.Int) *big.Int {
	var below, above *big.Int
	if tick >= tickLower {
		below = toU256(outsideLower).ToBig()
	} else {
		below = SubFeeGrowth(global, outsideLower)
	}
	if tick < tickUpper {
		above = toU256(outsideUpper).ToBig()
	} else {
		above = SubFeeGrowth(global, outsideUpper)
	}
	return SubFeeGrowth(SubFeeGrowth(global, below), above)
}

// UncollectedFees is owed + (inside - insideLast) * liquidity / 2^128.
func UncollectedFees(inside, insideLast, liquidity, owed *big.Int) (*big.Int, error) {
	delta := SubFeeGrowth(inside, insideLast)
	accrued, err := MulDiv(delta, liquidity, Q128)
	if err != nil {
		return nil, err
	}
	if owed != nil {
		accrued.Add(accrued, owed)
	}
	return accrued, nil
}

// PositionFees returns the uncollected fees of p given the pool tick and the
// fee growth snapshot read at the same block.
func PositionFees(p model.Position, tick int32, data model.FeeGrowthData) (*big.Int, *big.Int, error) {
	inside0 := FeeGrowthInside(tick, p.TickLower, p.TickUpper,
		data.FeeGrowthGlobal0X128, data.Lower.FeeGrowthOutside0X128, data.Upper.FeeGrowthOutside0X128)
	inside1 := FeeGrowthInside(tick, p.TickLower, p.TickUpper,
		data.FeeGrowthGlobal1X128, data.Lower.FeeGrowthOutside1X128, data.Upper.FeeGrowthOutside1X128)

	fees0, err := UncollectedFees(inside0, p.FeeGrowthInside0LastX128, p.Liquidity, p.TokensOwed0)
	if err != nil {
		return nil, nil, err
	}
	fees1, err := UncollectedFees(inside1, p.FeeGrowthInside1LastX128, p.Liquidity, p.TokensOwed1)
	if err != nil {
		return nil, nil, err
	}
	return fees0, fees1, nil
}
