package clmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/model"
)

func TestSqrtRatioAtTickZero(t *testing.T) {
	ratio, err := GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	assert.Equal(t, "79228162514264337593543950336", ratio.String())
	assert.Equal(t, 0, ratio.Cmp(Q96))

	tick, err := GetTickAtSqrtRatio(ratio)
	require.NoError(t, err)
	assert.Equal(t, int32(0), tick)
}

func TestSqrtRatioAtTickBounds(t *testing.T) {
	min, err := GetSqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	assert.Equal(t, 0, min.Cmp(MinSqrtRatio), "min: %s", min)

	max, err := GetSqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	assert.Equal(t, 0, max.Cmp(MaxSqrtRatio), "max: %s", max)

	_, err = GetSqrtRatioAtTick(MinTick - 1)
	assert.ErrorIs(t, err, model.ErrTickOutOfRange)
	_, err = GetSqrtRatioAtTick(MaxTick + 1)
	assert.ErrorIs(t, err, model.ErrTickOutOfRange)
}

func TestSqrtRatioSymmetry(t *testing.T) {
	// sqrt(1.0001^t) * sqrt(1.0001^-t) == 1, so the product is ~2^192.
	for _, tick := range []int32{1, 60, 887, 50000, 443636} {
		pos, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		neg, err := GetSqrtRatioAtTick(-tick)
		require.NoError(t, err)
		assert.Equal(t, 1, pos.Cmp(Q96))
		assert.Equal(t, -1, neg.Cmp(Q96))

		product := new(big.Int).Mul(pos, neg)
		diff := new(big.Int).Sub(product, Q192)
		diff.Abs(diff)
		// relative error well below one part in 10^18
		tolerance := new(big.Int).Quo(Q192, big.NewInt(1_000_000_000_000_000_000))
		assert.True(t, diff.Cmp(tolerance) < 0, "tick %d drift %s", tick, diff)
	}
}

func TestTickAtSqrtRatioRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, MinTick + 1, -443636, -200000, -60, -1, 0, 1, 59, 60, 200000, 443636, MaxTick - 1}
	for _, tick := range ticks {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)

		got, err := GetTickAtSqrtRatio(ratio)
		require.NoError(t, err)
		assert.Equal(t, tick, got, "exact ratio of tick %d", tick)

		if tick > MinTick {
			below := new(big.Int).Sub(ratio, big.NewInt(1))
			got, err = GetTickAtSqrtRatio(below)
			require.NoError(t, err)
			assert.Equal(t, tick-1, got, "ratio just below tick %d", tick)
		}
	}
}

func TestTickAtSqrtRatioBounds(t *testing.T) {
	tick, err := GetTickAtSqrtRatio(MinSqrtRatio)
	require.NoError(t, err)
	assert.Equal(t, MinTick, tick)

	tick, err = GetTickAtSqrtRatio(new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1)))
	require.NoError(t, err)
	assert.Equal(t, MaxTick-1, tick)

	_, err = GetTickAtSqrtRatio(MaxSqrtRatio)
	assert.ErrorIs(t, err, model.ErrSqrtPriceOutOfRange)
	_, err = GetTickAtSqrtRatio(new(big.Int).Sub(MinSqrtRatio, big.NewInt(1)))
	assert.ErrorIs(t, err, model.ErrSqrtPriceOutOfRange)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

func TestSqrtRatioMonotonic(t *testing.T) {
	prev, err := GetSqrtRatioAtTick(-1000)
	require.NoError(t, err)
	for tick := int32(-999); tick <= 1000; tick++ {
		cur, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		require.Equal(t, 1, cur.Cmp(prev), "tick %d", tick)
		prev = cur
	}
}

func TestAlignTick(t *testing.T) {
	cases := []struct {
		tick, spacing int32
		roundUp       bool
		want          int32
	}{
		{-65, 60, false, -120},
		{-65, 60, true, -60},
		{65, 60, false, 60},
		{65, 60, true, 120},
		{120, 60, true, 120},
		{MaxTick, 60, true, 887220},
		{MinTick, 60, false, -887220},
		{7, 1, false, 7},
		{-2501, 50, false, -2550},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AlignTick(c.tick, c.spacing, c.roundUp), "align(%d, %d, %v)", c.tick, c.spacing, c.roundUp)
	}
}

func TestNearestUsableTick(t *testing.T) {
	assert.Equal(t, int32(-60), NearestUsableTick(-65, 60))
	assert.Equal(t, int32(-120), NearestUsableTick(-95, 60))
	assert.Equal(t, int32(60), NearestUsableTick(30, 60))
	assert.Equal(t, int32(0), NearestUsableTick(29, 60))
	assert.Equal(t, int32(887220), NearestUsableTick(MaxTick, 60))
	assert.Equal(t, int32(-887200), NearestUsableTick(MinTick, 200))
}

func TestValidateRange(t *testing.T) {
	require.NoError(t, ValidateRange(-120, 120, 60))
	assert.ErrorIs(t, ValidateRange(-100, 120, 60), model.ErrTickUnaligned)
	assert.ErrorIs(t, ValidateRange(120, 120, 60), model.ErrTickOrder)
	assert.ErrorIs(t, ValidateRange(180, 120, 60), model.ErrTickOrder)
	assert.ErrorIs(t, ValidateRange(MinTick-1, 0, 1), model.ErrTickOutOfRange)
	assert.ErrorIs(t, ValidateRange(0, 887280, 60), model.ErrTickOutOfRange)
}
