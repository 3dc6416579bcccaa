package dex_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

var (
	testNow      = time.Unix(1_700_000_000, 0)
	testDeadline = uint64(testNow.Unix()) + 1200
	recipient    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func mainnetUniswap(t *testing.T) registry.PlatformConfig {
	t.Helper()
	cfg, err := registry.Default().Platform(model.PlatformUniswapV3, registry.ChainEthereum)
	require.NoError(t, err)
	return cfg
}

func newBuilder(t *testing.T, cfg registry.PlatformConfig) *dex.CalldataBuilder {
	t.Helper()
	b, err := dex.NewCalldataBuilder(cfg, dex.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return b
}

func decodeCall(t *testing.T, data []byte) (string, []interface{}) {
	t.Helper()
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	method, err := parsed.MethodById(data[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return method.Name, args
}

func mintRequest() dex.MintRequest {
	return dex.MintRequest{
		Token0:         usdc,
		Token1:         weth,
		Fee:            3000,
		TickLower:      -600,
		TickUpper:      600,
		Amount0Desired: big.NewInt(1_000_000),
		Amount1Desired: big.NewInt(2_000_000),
		SlippageBps:    50,
		Recipient:      recipient,
		Deadline:       testDeadline,
	}
}

func TestMintSlippage(t *testing.T) {
	cfg := mainnetUniswap(t)
	tx, err := newBuilder(t, cfg).Mint(mintRequest())
	require.NoError(t, err)
	assert.Equal(t, cfg.PositionManager, tx.To)
	assert.Equal(t, 0, tx.Value.Sign())

	name, args := decodeCall(t, tx.Data)
	require.Equal(t, "mint", name)
	params := *abi.ConvertType(args[0], new(dex.MintParams)).(*dex.MintParams)

	assert.Equal(t, usdc, params.Token0)
	assert.Equal(t, weth, params.Token1)
	assert.Equal(t, int64(3000), params.Fee.Int64())
	assert.Equal(t, int64(-600), params.TickLower.Int64())
	assert.Equal(t, int64(600), params.TickUpper.Int64())
	assert.Equal(t, int64(995_000), params.Amount0Min.Int64())
	assert.Equal(t, int64(1_990_000), params.Amount1Min.Int64())
	assert.Equal(t, recipient, params.Recipient)
	assert.Equal(t, testDeadline, params.Deadline.Uint64())
}

func TestMintValidation(t *testing.T) {
	b := newBuilder(t, mainnetUniswap(t))

	cases := []struct {
		name   string
		mutate func(*dex.MintRequest)
		err    error
	}{
		{"unaligned", func(r *dex.MintRequest) { r.TickLower = -601 }, model.ErrTickUnaligned},
		{"order", func(r *dex.MintRequest) { r.TickLower, r.TickUpper = 600, -600 }, model.ErrTickOrder},
		{"out of range", func(r *dex.MintRequest) { r.TickUpper = 887280 }, model.ErrTickOutOfRange},
		{"slippage low", func(r *dex.MintRequest) { r.SlippageBps = 5 }, model.ErrSlippageOutOfRange},
		{"slippage high", func(r *dex.MintRequest) { r.SlippageBps = 501 }, model.ErrSlippageOutOfRange},
		{"deadline", func(r *dex.MintRequest) { r.Deadline = uint64(testNow.Unix()) }, model.ErrDeadlineInPast},
		{"zero amounts", func(r *dex.MintRequest) { r.Amount0Desired, r.Amount1Desired = nil, big.NewInt(0) }, model.ErrAmountsZero},
		{"unordered", func(r *dex.MintRequest) { r.Token0, r.Token1 = weth, usdc }, model.ErrTokensUnordered},
		{"same token", func(r *dex.MintRequest) { r.Token1 = usdc }, model.ErrSameToken},
		{"fee tier", func(r *dex.MintRequest) { r.Fee = 2500 }, model.ErrUnsupportedFeeTier},
		{"recipient", func(r *dex.MintRequest) { r.Recipient = common.Address{} }, model.ErrZeroRecipient},
		{"overflow", func(r *dex.MintRequest) { r.Amount0Desired = new(big.Int).Lsh(big.NewInt(1), 256) }, model.ErrAmountOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := mintRequest()
			tc.mutate(&req)
			_, err := b.Mint(req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	req := mintRequest()
	req.SlippageBps = 10
	_, err := b.Mint(req)
	assert.NoError(t, err)
	req.SlippageBps = 500
	_, err = b.Mint(req)
	assert.NoError(t, err)
}

func TestIncreaseLiquidity(t *testing.T) {
	b := newBuilder(t, mainnetUniswap(t))
	tx, err := b.IncreaseLiquidity(dex.IncreaseRequest{
		TokenID:        big.NewInt(42),
		Amount0Desired: big.NewInt(10_000),
		SlippageBps:    100,
		Deadline:       testDeadline,
	})
	require.NoError(t, err)

	name, args := decodeCall(t, tx.Data)
	require.Equal(t, "increaseLiquidity", name)
	params := *abi.ConvertType(args[0], new(dex.IncreaseLiquidityParams)).(*dex.IncreaseLiquidityParams)
	assert.Equal(t, int64(42), params.TokenId.Int64())
	assert.Equal(t, int64(9_900), params.Amount0Min.Int64())
	assert.Equal(t, int64(0), params.Amount1Desired.Int64())
	assert.Equal(t, int64(0), params.Amount1Min.Int64())
}

func activePosition() model.Position {
	return model.Position{
		TokenID:     big.NewInt(7),
		Pool:        model.PoolKey{Platform: model.PlatformUniswapV3, ChainID: 1, Token0: usdc, Token1: weth, Fee: 3000},
		TickLower:   -60,
		TickUpper:   60,
		Liquidity:   big.NewInt(1_000_000_000_000_000_000),
		TokensOwed0: big.NewInt(0),
		TokensOwed1: big.NewInt(0),
	}
}

func TestDecreaseLiquidity(t *testing.T) {
	b := newBuilder(t, mainnetUniswap(t))
	pos := activePosition()
	sqrtP, err := clmath.GetSqrtRatioAtTick(0)
	require.NoError(t, err)

	tx, err := b.DecreaseLiquidity(dex.DecreaseRequest{
		Position:      pos,
		SqrtPriceX96:  sqrtP,
		PercentageBps: 5000,
		SlippageBps:   50,
		Deadline:      testDeadline,
	})
	require.NoError(t, err)

	name, args := decodeCall(t, tx.Data)
	require.Equal(t, "decreaseLiquidity", name)
	params := *abi.ConvertType(args[0], new(dex.DecreaseLiquidityParams)).(*dex.DecreaseLiquidityParams)

	half := big.NewInt(500_000_000_000_000_000)
	assert.Equal(t, 0, params.Liquidity.Cmp(half))
	a0, a1, err := clmath.AmountsForPosition(half, -60, 60, sqrtP)
	require.NoError(t, err)
	assert.Equal(t, 0, params.Amount0Min.Cmp(dex.MinAmount(a0, 50)))
	assert.Equal(t, 0, params.Amount1Min.Cmp(dex.MinAmount(a1, 50)))
	assert.Positive(t, params.Amount0Min.Sign())

	_, err = b.DecreaseLiquidity(dex.DecreaseRequest{Position: pos, SqrtPriceX96: sqrtP, PercentageBps: 0, SlippageBps: 50, Deadline: testDeadline})
	assert.ErrorIs(t, err, model.ErrPercentageOutOfRange)
	_, err = b.DecreaseLiquidity(dex.DecreaseRequest{Position: pos, SqrtPriceX96: sqrtP, PercentageBps: 10_001, SlippageBps: 50, Deadline: testDeadline})
	assert.ErrorIs(t, err, model.ErrPercentageOutOfRange)

	tiny := activePosition()
	tiny.Liquidity = big.NewInt(1)
	_, err = b.DecreaseLiquidity(dex.DecreaseRequest{Position: tiny, SqrtPriceX96: sqrtP, PercentageBps: 1, SlippageBps: 50, Deadline: testDeadline})
	assert.ErrorIs(t, err, model.ErrAmountsZero)
}

func TestCollectUsesMaxUint128(t *testing.T) {
	b := newBuilder(t, mainnetUniswap(t))
	tx, err := b.Collect(big.NewInt(7), recipient)
	require.NoError(t, err)

	name, args := decodeCall(t, tx.Data)
	require.Equal(t, "collect", name)
	params := *abi.ConvertType(args[0], new(dex.CollectParams)).(*dex.CollectParams)
	assert.Equal(t, 0, params.Amount0Max.Cmp(clmath.MaxUint128))
	assert.Equal(t, 0, params.Amount1Max.Cmp(clmath.MaxUint128))
	assert.Equal(t, recipient, params.Recipient)

	_, err = b.Collect(big.NewInt(7), common.Address{})
	assert.ErrorIs(t, err, model.ErrZeroRecipient)
}

func TestBurnRequiresEmptyPosition(t *testing.T) {
	b := newBuilder(t, mainnetUniswap(t))

	_, err := b.Burn(activePosition())
	assert.ErrorIs(t, err, model.ErrNotBurnable)

	owed := activePosition()
	owed.Liquidity = big.NewInt(0)
	owed.TokensOwed1 = big.NewInt(3)
	_, err = b.Burn(owed)
	assert.ErrorIs(t, err, model.ErrNotBurnable)

	drained := activePosition()
	drained.Liquidity = big.NewInt(0)
	tx, err := b.Burn(drained)
	require.NoError(t, err)
	name, args := decodeCall(t, tx.Data)
	assert.Equal(t, "burn", name)
	assert.Equal(t, int64(7), args[0].(*big.Int).Int64())
}

func TestCloseMulticall(t *testing.T) {
	b := newBuilder(t, mainnetUniswap(t))
	sqrtP, err := clmath.GetSqrtRatioAtTick(0)
	require.NoError(t, err)

	plan, err := b.Close(dex.CloseRequest{
		Position:     activePosition(),
		SqrtPriceX96: sqrtP,
		SlippageBps:  50,
		Recipient:    recipient,
		Deadline:     testDeadline,
		Burn:         true,
	})
	require.NoError(t, err)
	require.True(t, plan.Atomic)
	require.Len(t, plan.Transactions, 1)

	name, args := decodeCall(t, plan.Transactions[0].Data)
	require.Equal(t, "multicall", name)
	inner := args[0].([][]byte)
	require.Len(t, inner, 3)

	var names []string
	for _, data := range inner {
		n, _ := decodeCall(t, data)
		names = append(names, n)
	}
	assert.Equal(t, []string{"decreaseLiquidity", "collect", "burn"}, names)
}

func TestCloseSequential(t *testing.T) {
	cfg := mainnetUniswap(t)
	cfg.SupportsMulticall = false
	b := newBuilder(t, cfg)
	sqrtP, err := clmath.GetSqrtRatioAtTick(0)
	require.NoError(t, err)

	plan, err := b.Close(dex.CloseRequest{
		Position:     activePosition(),
		SqrtPriceX96: sqrtP,
		SlippageBps:  50,
		Recipient:    recipient,
		Deadline:     testDeadline,
	})
	require.NoError(t, err)
	assert.False(t, plan.Atomic)
	require.Len(t, plan.Transactions, 2)
	first, _ := decodeCall(t, plan.Transactions[0].Data)
	second, _ := decodeCall(t, plan.Transactions[1].Data)
	assert.Equal(t, "decreaseLiquidity", first)
	assert.Equal(t, "collect", second)

	empty := activePosition()
	empty.Liquidity = big.NewInt(0)
	empty.TokensOwed0 = big.NewInt(10)
	plan, err = b.Close(dex.CloseRequest{Position: empty, Recipient: recipient, Deadline: testDeadline})
	require.NoError(t, err)
	assert.True(t, plan.Atomic)
	require.Len(t, plan.Transactions, 1)
}
