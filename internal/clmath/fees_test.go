package clmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/model"
)

func TestSubFeeGrowthWraps(t *testing.T) {
	last := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(10))
	delta := SubFeeGrowth(big.NewInt(5), last)
	assert.Equal(t, "15", delta.String())

	assert.Equal(t, "0", SubFeeGrowth(big.NewInt(7), big.NewInt(7)).String())
	assert.Equal(t, MaxUint256.String(), SubFeeGrowth(new(big.Int), big.NewInt(1)).String())
}

func TestUncollectedFeesAfterWrapFloorsToZero(t *testing.T) {
	last := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(10))
	fees, err := UncollectedFees(big.NewInt(5), last, oneE18, nil)
	require.NoError(t, err)
	// 15 * 10^18 / 2^128 < 1
	assert.Equal(t, "0", fees.String())

	fees, err = UncollectedFees(big.NewInt(5), last, oneE18, big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, "42", fees.String())
}

func TestUncollectedFeesAccrues(t *testing.T) {
	// one full token of growth per unit liquidity
	inside := new(big.Int).Set(Q128)
	fees, err := UncollectedFees(inside, new(big.Int), big.NewInt(1000), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "1001", fees.String())
}

func TestFeeGrowthInside(t *testing.T) {
	global := big.NewInt(100)
	lower := big.NewInt(10)
	upper := big.NewInt(20)

	// in range: global - lowerOutside - upperOutside
	assert.Equal(t, "70", FeeGrowthInside(0, -60, 60, global, lower, upper).String())
	// above range: below = lowerOutside, above = global - upperOutside
	assert.Equal(t, "10", FeeGrowthInside(120, -60, 60, global, lower, upper).String())
	// tick exactly at tickUpper counts as above
	assert.Equal(t, "10", FeeGrowthInside(60, -60, 60, global, lower, upper).String())
	// below range: below = global - lowerOutside, above = upperOutside, wraps
	got := FeeGrowthInside(-120, -60, 60, global, lower, upper)
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(10))
	assert.Equal(t, want.String(), got.String())
}

func TestPositionFees(t *testing.T) {
	p := model.Position{
		TickLower:                -60,
		TickUpper:                60,
		Liquidity:                big.NewInt(2),
		FeeGrowthInside0LastX128: new(big.Int),
		FeeGrowthInside1LastX128: new(big.Int).Set(Q128),
		TokensOwed0:              big.NewInt(3),
		TokensOwed1:              new(big.Int),
	}
	data := model.FeeGrowthData{
		FeeGrowthGlobal0X128: new(big.Int).Mul(Q128, big.NewInt(5)),
		FeeGrowthGlobal1X128: new(big.Int).Mul(Q128, big.NewInt(4)),
		Lower: model.TickInfo{
			FeeGrowthOutside0X128: new(big.Int).Set(Q128),
			FeeGrowthOutside1X128: new(big.Int),
		},
		Upper: model.TickInfo{
			FeeGrowthOutside0X128: new(big.Int).Set(Q128),
			FeeGrowthOutside1X128: new(big.Int).Set(Q128),
		},
	}
	fees0, fees1, err := PositionFees(p, 0, data)
	require.NoError(t, err)
	// inside0 = 5-1-1 = 3 per L, times 2, plus 3 owed
	assert.Equal(t, "9", fees0.String())
	// inside1 = 4-0-1 = 3, minus last 1 = 2 per L, times 2
	assert.Equal(t, "4", fees1.String())
}
