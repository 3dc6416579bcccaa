package clmath

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/model"
)

var (
	usdc = model.Token{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6, Symbol: "USDC"}
	weth = model.Token{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18, Symbol: "WETH"}
)

func TestTickToPriceDecimalCorrection(t *testing.T) {
	// raw price 1 at tick 0: 1 wei of WETH per 1 micro-USDC
	price, err := TickToPrice(0, usdc, weth)
	require.NoError(t, err)
	assert.Equal(t, "1/1000000000000", price.String())
	assert.Equal(t, "0.000000000001", FormatPrice(price))

	inverted, err := TickToPrice(0, weth, usdc)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000", FormatPrice(inverted))
}

func TestPriceTickRoundTrip(t *testing.T) {
	for _, tick := range []int32{-887272, -276325, -200000, -1, 0, 1, 195000, 887271} {
		for _, pair := range [][2]model.Token{{usdc, weth}, {weth, usdc}} {
			price, err := TickToPrice(tick, pair[0], pair[1])
			require.NoError(t, err)
			got, err := PriceToTick(price, pair[0], pair[1])
			require.NoError(t, err)
			assert.Equal(t, tick, got, "tick %d base %s", tick, pair[0].Symbol)
		}
	}
}

func TestPriceToTickEthUsd(t *testing.T) {
	// 2000 USDC per WETH is raw token1/token0 = 10^12/2000 = 5e8, tick ~ 200311
	price, err := ParsePrice("2000")
	require.NoError(t, err)
	tick, err := PriceToTick(price, weth, usdc)
	require.NoError(t, err)
	assert.InDelta(t, 200311, tick, 1)

	back, err := TickToPrice(tick, weth, usdc)
	require.NoError(t, err)
	// base is token1, so higher ticks mean lower WETH prices and the
	// floored tick brackets the input from above
	assert.True(t, back.Cmp(price) >= 0)
	next, err := TickToPrice(tick+1, weth, usdc)
	require.NoError(t, err)
	assert.True(t, next.Cmp(price) < 0)
}

func TestPriceToTickClampsExtremes(t *testing.T) {
	tiny := new(big.Rat).SetFrac(big.NewInt(1), new(big.Int).Lsh(big.NewInt(1), 300))
	tick, err := PriceToTick(tiny, usdc, weth)
	require.NoError(t, err)
	assert.Equal(t, MinTick, tick)

	huge := new(big.Rat).SetInt(new(big.Int).Lsh(big.NewInt(1), 300))
	tick, err = PriceToTick(huge, usdc, weth)
	require.NoError(t, err)
	assert.Equal(t, MaxTick, tick)
}

func TestPriceRejectsInvalidInput(t *testing.T) {
	_, err := PriceToTick(new(big.Rat), usdc, weth)
	assert.ErrorIs(t, err, model.ErrInvalidPrice)

	_, err = TickToPrice(0, usdc, usdc)
	assert.ErrorIs(t, err, model.ErrSameToken)

	_, err = ParsePrice("-1")
	assert.ErrorIs(t, err, model.ErrInvalidPrice)
	_, err = ParsePrice("abc")
	assert.ErrorIs(t, err, model.ErrInvalidPrice)
}

func TestParsePrice(t *testing.T) {
	r, err := ParsePrice("1834.25")
	require.NoError(t, err)
	assert.Equal(t, "7337/4", r.String())

	r, err = ParsePrice("3/2")
	require.NoError(t, err)
	assert.Equal(t, "3/2", r.String())

	r, err = ParsePrice("1e-6")
	require.NoError(t, err)
	assert.Equal(t, "1/1000000", r.String())
}

func TestFormatRat(t *testing.T) {
	assert.Equal(t, "0.33333", FormatRat(big.NewRat(1, 3), 5))
	assert.Equal(t, "12300000", FormatRat(big.NewRat(12345678, 1), 3))
	assert.Equal(t, "-2.5", FormatRat(big.NewRat(-5, 2), 18))
	assert.Equal(t, "0", FormatRat(new(big.Rat), 18))
	assert.Equal(t, "100", FormatRat(big.NewRat(100, 1), 18))
	assert.Equal(t, "0.666666666666666666", FormatRat(big.NewRat(2, 3), 18))
}
