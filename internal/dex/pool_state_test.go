package dex_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/dex/dextest"
	"liquidityDesk/internal/model"
)

var poolAddr = common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8")

func seedPool(t *testing.T, c *dextest.Chain, tick int32) *dextest.Pool {
	t.Helper()
	sqrtP, err := clmath.GetSqrtRatioAtTick(tick)
	require.NoError(t, err)
	pool := &dextest.Pool{
		Token0:               usdc,
		Token1:               weth,
		Fee:                  3000,
		TickSpacing:          60,
		SqrtPriceX96:         sqrtP,
		Tick:                 tick,
		Liquidity:            big.NewInt(5_000_000),
		FeeGrowthGlobal0X128: big.NewInt(1000),
		FeeGrowthGlobal1X128: big.NewInt(2000),
		Ticks: map[int32]model.TickInfo{
			-60: {LiquidityGross: big.NewInt(10), LiquidityNet: big.NewInt(10), FeeGrowthOutside0X128: big.NewInt(100), FeeGrowthOutside1X128: big.NewInt(200), Initialized: true},
			60:  {LiquidityGross: big.NewInt(10), LiquidityNet: big.NewInt(-10), FeeGrowthOutside0X128: big.NewInt(300), FeeGrowthOutside1X128: big.NewInt(400), Initialized: true},
		},
	}
	c.SetPool(poolAddr, pool)
	return pool
}

func newPoolReader(t *testing.T, c *dextest.Chain) *dex.PoolStateReader {
	t.Helper()
	r, err := dex.NewPoolStateReader(c, nil)
	require.NoError(t, err)
	return r
}

func TestPoolStateLoadSingleBatchPinnedBlock(t *testing.T) {
	c := dextest.New(1, 19_000_000)
	seedPool(t, c, 5)

	state, err := newPoolReader(t, c).Load(context.Background(), poolAddr, 3000, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(5), state.Tick)
	assert.Equal(t, uint64(19_000_000), state.BlockNumber)
	assert.Equal(t, int64(5_000_000), state.Liquidity.Int64())
	assert.Equal(t, int64(1000), state.FeeGrowthGlobal0X128.Int64())
	assert.Equal(t, int64(2000), state.FeeGrowthGlobal1X128.Int64())

	assert.Equal(t, 1, c.Batches())
	assert.Equal(t, []string{"slot0", "liquidity", "feeGrowthGlobal0X128", "feeGrowthGlobal1X128"}, c.Methods())
	for _, block := range c.Blocks() {
		assert.Equal(t, uint64(19_000_000), block)
	}
}

func TestPoolStateInconsistentTick(t *testing.T) {
	c := dextest.New(1, 100)
	seedPool(t, c, 5)
	c.UpdatePool(poolAddr, func(p *dextest.Pool) { p.Tick = 900 })

	_, err := newPoolReader(t, c).Load(context.Background(), poolAddr, 3000, 0)
	assert.ErrorIs(t, err, model.ErrInconsistentPool)
	assert.Equal(t, model.KindInconsistentPoolState, model.KindOf(err))
}

func TestPoolStateBoundaryTickIsConsistent(t *testing.T) {
	c := dextest.New(1, 100)
	seedPool(t, c, 60)
	c.UpdatePool(poolAddr, func(p *dextest.Pool) { p.Tick = 59 })

	state, err := newPoolReader(t, c).Load(context.Background(), poolAddr, 3000, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(59), state.Tick)
}

func TestPoolStateNotFound(t *testing.T) {
	c := dextest.New(1, 100)
	_, err := newPoolReader(t, c).Load(context.Background(), poolAddr, 3000, 0)
	assert.ErrorIs(t, err, model.ErrPoolNotFound)

	seedPool(t, c, 0)
	c.UpdatePool(poolAddr, func(p *dextest.Pool) { p.SqrtPriceX96 = big.NewInt(0) })
	_, err = newPoolReader(t, c).Load(context.Background(), poolAddr, 3000, 0)
	assert.ErrorIs(t, err, model.ErrPoolNotFound)
}

func TestPoolStateTransportFailure(t *testing.T) {
	c := dextest.New(1, 100)
	seedPool(t, c, 0)
	c.SetDown(errors.Join(model.ErrRPC, errors.New("connection refused")))

	_, err := newPoolReader(t, c).Load(context.Background(), poolAddr, 3000, 42)
	assert.ErrorIs(t, err, model.ErrRPC)
}

func TestLoadFeeGrowth(t *testing.T) {
	c := dextest.New(1, 100)
	seedPool(t, c, 0)

	data, err := newPoolReader(t, c).LoadFeeGrowth(context.Background(), poolAddr, -60, 60, 77)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), data.BlockNumber)
	assert.Equal(t, int32(-60), data.Lower.Tick)
	assert.Equal(t, int64(100), data.Lower.FeeGrowthOutside0X128.Int64())
	assert.Equal(t, int64(-10), data.Upper.LiquidityNet.Int64())
	assert.Equal(t, int64(400), data.Upper.FeeGrowthOutside1X128.Int64())
	assert.True(t, data.Upper.Initialized)
	assert.Equal(t, 1, c.Batches())
}

func TestPoolInfo(t *testing.T) {
	c := dextest.New(1, 100)
	seedPool(t, c, 0)

	info, err := newPoolReader(t, c).Info(context.Background(), poolAddr, 0)
	require.NoError(t, err)
	assert.Equal(t, dex.PoolInfo{Address: poolAddr, Token0: usdc, Token1: weth, Fee: 3000, TickSpacing: 60}, info)
	assert.Equal(t, []uint64{100, 100, 100, 100}, c.Blocks())

	assert.NoError(t, info.Matches(model.PoolKey{Token0: usdc, Token1: weth, Fee: 3000}))
	err = info.Matches(model.PoolKey{Token0: usdc, Token1: weth, Fee: 500})
	assert.ErrorIs(t, err, model.ErrInconsistentPool)
}
