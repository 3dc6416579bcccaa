package dex_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/dex/dextest"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

var holder = common.HexToAddress("0x00000000000000000000000000000000000000b0")

func position(id int64, liquidity, owed0 int64) model.Position {
	return model.Position{
		TokenID:                  big.NewInt(id),
		Owner:                    holder,
		Nonce:                    big.NewInt(0),
		Pool:                     model.PoolKey{Platform: model.PlatformUniswapV3, ChainID: 1, Token0: usdc, Token1: weth, Fee: 3000},
		TickLower:                -120,
		TickUpper:                120,
		Liquidity:                big.NewInt(liquidity),
		FeeGrowthInside0LastX128: big.NewInt(0),
		FeeGrowthInside1LastX128: big.NewInt(0),
		TokensOwed0:              big.NewInt(owed0),
		TokensOwed1:              big.NewInt(0),
	}
}

func newPositionReader(t *testing.T, c *dextest.Chain, cfg registry.PlatformConfig, batchSize int) *dex.PositionReader {
	t.Helper()
	r, err := dex.NewPositionReader(c, cfg, batchSize, nil)
	require.NoError(t, err)
	return r
}

func TestEnumerateDropsNoise(t *testing.T) {
	c := dextest.New(1, 500)
	cfg := mainnetUniswap(t)
	c.AddPosition(cfg.PositionManager, position(1, 100, 0))
	c.AddPosition(cfg.PositionManager, position(2, 0, 0))
	c.AddPosition(cfg.PositionManager, position(3, 0, 9))
	c.AddPosition(cfg.PositionManager, position(4, 7, 0))
	c.AddPosition(cfg.PositionManager, position(5, 1, 1))
	r := newPositionReader(t, c, cfg, 2)

	results, err := r.Enumerate(context.Background(), holder, 500)
	require.NoError(t, err)

	var ids []int64
	var statuses []model.PositionStatus
	for _, res := range results {
		require.NoError(t, res.Err)
		ids = append(ids, res.TokenID.Int64())
		statuses = append(statuses, res.Status)
	}
	assert.Equal(t, []int64{1, 3, 4, 5}, ids)
	assert.Equal(t, []model.PositionStatus{model.StatusActive, model.StatusEmpty, model.StatusActive, model.StatusActive}, statuses)
	assert.Equal(t, usdc, results[0].Position.Pool.Token0)
	assert.Equal(t, uint64(1), results[0].Position.Pool.ChainID)
	assert.Equal(t, int32(-120), results[0].Position.TickLower)

	// balanceOf + 3 id chunks + 3 position chunks
	assert.Equal(t, 7, c.Batches())
	for _, block := range c.Blocks() {
		assert.Equal(t, uint64(500), block)
	}
}

func TestEnumerateEmptyHolder(t *testing.T) {
	c := dextest.New(1, 500)
	cfg := mainnetUniswap(t)
	c.AddPosition(cfg.PositionManager, position(1, 100, 0))
	r := newPositionReader(t, c, cfg, 10)

	results, err := r.Enumerate(context.Background(), common.HexToAddress("0x01"), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEnumerateKeepsFailures(t *testing.T) {
	c := dextest.New(1, 500)
	cfg := mainnetUniswap(t)
	for id := int64(1); id <= 3; id++ {
		c.AddPosition(cfg.PositionManager, position(id, 100, 0))
	}
	c.SetHook(func(_ context.Context, req dextest.Request) error {
		if req.Method == "positions" && req.Args[0].(*big.Int).Int64() == 2 {
			return fmt.Errorf("%w: header not found", model.ErrRPC)
		}
		return nil
	})
	r := newPositionReader(t, c, cfg, 10)

	results, err := r.Enumerate(context.Background(), holder, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, model.ErrRPC)
	assert.Equal(t, "token 2", results[1].Ref())
	assert.NoError(t, results[2].Err)
}

func TestEnumerateTransportFailure(t *testing.T) {
	c := dextest.New(1, 500)
	r := newPositionReader(t, c, mainnetUniswap(t), 10)
	c.SetDown(errors.Join(model.ErrRPC, errors.New("timeout")))

	_, err := r.Enumerate(context.Background(), holder, 0)
	assert.ErrorIs(t, err, model.ErrRPC)
}

func TestPositionByID(t *testing.T) {
	c := dextest.New(1, 500)
	cfg := mainnetUniswap(t)
	c.AddPosition(cfg.PositionManager, position(11, 0, 0))
	r := newPositionReader(t, c, cfg, 10)

	res, err := r.Position(context.Background(), big.NewInt(11), 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDrained, res.Status)
	assert.Equal(t, holder, res.Position.Owner)
	assert.True(t, res.Position.Burnable())

	res, err = r.Position(context.Background(), big.NewInt(12), 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBurned, res.Status)
}
