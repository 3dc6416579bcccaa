package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/model"
)

// PoolInfo is the immutable configuration of a deployed pool.
type PoolInfo struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
}

// PoolStateReader reads live pool state through batched eth_calls.
type PoolStateReader struct {
	reader  chain.Reader
	poolABI abi.ABI
	logger  *zap.Logger
}

// NewPoolStateReader binds a reader to the pool ABI.
func NewPoolStateReader(reader chain.Reader, logger *zap.Logger) (*PoolStateReader, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolStateReader{reader: reader, poolABI: parsed, logger: logger}, nil
}

// ResolveBlock pins block 0 to the current head so every read of a refresh sees the same state.
func ResolveBlock(ctx context.Context, reader chain.Reader, block uint64) (uint64, error) {
	if block > 0 {
		return block, nil
	}
	head, err := reader.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return head, nil
}

func (r *PoolStateReader) batch(ctx context.Context, pool common.Address, block uint64, methods []string, args [][]interface{}) ([][]interface{}, error) {
	calls := make([]chain.Call, 0, len(methods))
	for i, method := range methods {
		var callArgs []interface{}
		if args != nil {
			callArgs = args[i]
		}
		call, err := packCall(r.poolABI, pool, method, callArgs...)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}

	results, err := r.reader.BatchCall(ctx, calls, block)
	if err != nil {
		return nil, err
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("%w: expected %d results, got %d", model.ErrMalformedReturn, len(calls), len(results))
	}

	out := make([][]interface{}, len(methods))
	for i, method := range methods {
		if results[i].Err == nil && len(results[i].Data) == 0 {
			return nil, fmt.Errorf("%w: %s has no code at block %d", model.ErrPoolNotFound, pool.Hex(), block)
		}
		values, err := unpackResult(r.poolABI, method, results[i])
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", pool.Hex(), err)
		}
		out[i] = values
	}
	return out, nil
}

// Load reads slot0, liquidity and both global fee growth accumulators in one
// round trip and checks the reported tick against the sqrt price.
func (r *PoolStateReader) Load(ctx context.Context, pool common.Address, fee uint32, block uint64) (model.PoolState, error) {
	block, err := ResolveBlock(ctx, r.reader, block)
	if err != nil {
		return model.PoolState{}, err
	}
	values, err := r.batch(ctx, pool, block,
		[]string{"slot0", "liquidity", "feeGrowthGlobal0X128", "feeGrowthGlobal1X128"}, nil)
	if err != nil {
		return model.PoolState{}, err
	}

	slot0 := values[0]
	if len(slot0) < 2 {
		return model.PoolState{}, fmt.Errorf("%w: slot0 has %d fields", model.ErrMalformedReturn, len(slot0))
	}
	sqrtPrice, err := asBigInt(slot0[0])
	if err != nil {
		return model.PoolState{}, malformed("slot0.sqrtPriceX96", err)
	}
	tick, err := asInt24(slot0[1])
	if err != nil {
		return model.PoolState{}, malformed("slot0.tick", err)
	}
	if sqrtPrice.Sign() == 0 {
		return model.PoolState{}, fmt.Errorf("%w: %s is not initialized", model.ErrPoolNotFound, pool.Hex())
	}
	if err := checkTick(sqrtPrice, tick); err != nil {
		return model.PoolState{}, fmt.Errorf("pool %s block %d: %w", pool.Hex(), block, err)
	}

	liquidity, err := asBigInt(values[1][0])
	if err != nil {
		return model.PoolState{}, malformed("liquidity", err)
	}
	fg0, err := asBigInt(values[2][0])
	if err != nil {
		return model.PoolState{}, malformed("feeGrowthGlobal0X128", err)
	}
	fg1, err := asBigInt(values[3][0])
	if err != nil {
		return model.PoolState{}, malformed("feeGrowthGlobal1X128", err)
	}

	r.logger.Debug("pool state loaded",
		zap.String("pool", pool.Hex()),
		zap.Uint64("block", block),
		zap.Int32("tick", tick),
	)
	return model.PoolState{
		Address:              pool,
		BlockNumber:          block,
		SqrtPriceX96:         sqrtPrice,
		Tick:                 tick,
		Liquidity:            liquidity,
		Fee:                  fee,
		FeeGrowthGlobal0X128: fg0,
		FeeGrowthGlobal1X128: fg1,
	}, nil
}

// checkTick compares the reported tick with the one derived from the sqrt price.
// A swap that ends exactly on an initialized tick while moving down leaves the
// pool at boundary-1 with the boundary's sqrt price; that case is consistent.
func checkTick(sqrtPrice *big.Int, reported int32) error {
	derived, err := clmath.GetTickAtSqrtRatio(sqrtPrice)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInconsistentPool, err)
	}
	if derived == reported {
		return nil
	}
	if reported == derived-1 {
		boundary, err := clmath.GetSqrtRatioAtTick(derived)
		if err == nil && boundary.Cmp(sqrtPrice) == 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: slot0 tick %d, sqrt price implies %d", model.ErrInconsistentPool, reported, derived)
}

// LoadFeeGrowth reads the global accumulators and both boundary ticks of a range in one round trip.
func (r *PoolStateReader) LoadFeeGrowth(ctx context.Context, pool common.Address, tickLower, tickUpper int32, block uint64) (model.FeeGrowthData, error) {
	block, err := ResolveBlock(ctx, r.reader, block)
	if err != nil {
		return model.FeeGrowthData{}, err
	}
	values, err := r.batch(ctx, pool, block,
		[]string{"feeGrowthGlobal0X128", "feeGrowthGlobal1X128", "ticks", "ticks"},
		[][]interface{}{nil, nil, {big.NewInt(int64(tickLower))}, {big.NewInt(int64(tickUpper))}},
	)
	if err != nil {
		return model.FeeGrowthData{}, err
	}

	fg0, err := asBigInt(values[0][0])
	if err != nil {
		return model.FeeGrowthData{}, malformed("feeGrowthGlobal0X128", err)
	}
	fg1, err := asBigInt(values[1][0])
	if err != nil {
		return model.FeeGrowthData{}, malformed("feeGrowthGlobal1X128", err)
	}
	lower, err := decodeTickInfo(tickLower, values[2])
	if err != nil {
		return model.FeeGrowthData{}, err
	}
	upper, err := decodeTickInfo(tickUpper, values[3])
	if err != nil {
		return model.FeeGrowthData{}, err
	}
	return model.FeeGrowthData{
		BlockNumber:          block,
		FeeGrowthGlobal0X128: fg0,
		FeeGrowthGlobal1X128: fg1,
		Lower:                lower,
		Upper:                upper,
	}, nil
}

func decodeTickInfo(tick int32, values []interface{}) (model.TickInfo, error) {
	if len(values) < 8 {
		return model.TickInfo{}, fmt.Errorf("%w: ticks(%d) has %d fields", model.ErrMalformedReturn, tick, len(values))
	}
	gross, err := asBigInt(values[0])
	if err != nil {
		return model.TickInfo{}, malformed("ticks.liquidityGross", err)
	}
	net, err := asBigInt(values[1])
	if err != nil {
		return model.TickInfo{}, malformed("ticks.liquidityNet", err)
	}
	out0, err := asBigInt(values[2])
	if err != nil {
		return model.TickInfo{}, malformed("ticks.feeGrowthOutside0X128", err)
	}
	out1, err := asBigInt(values[3])
	if err != nil {
		return model.TickInfo{}, malformed("ticks.feeGrowthOutside1X128", err)
	}
	initialized, _ := values[7].(bool)
	return model.TickInfo{
		Tick:                  tick,
		LiquidityGross:        gross,
		LiquidityNet:          net,
		FeeGrowthOutside0X128: out0,
		FeeGrowthOutside1X128: out1,
		Initialized:           initialized,
	}, nil
}

// Info reads the immutable pool configuration.
func (r *PoolStateReader) Info(ctx context.Context, pool common.Address, block uint64) (PoolInfo, error) {
	block, err := ResolveBlock(ctx, r.reader, block)
	if err != nil {
		return PoolInfo{}, err
	}
	values, err := r.batch(ctx, pool, block, []string{"token0", "token1", "fee", "tickSpacing"}, nil)
	if err != nil {
		return PoolInfo{}, err
	}
	token0, err := asAddress(values[0][0])
	if err != nil {
		return PoolInfo{}, malformed("token0", err)
	}
	token1, err := asAddress(values[1][0])
	if err != nil {
		return PoolInfo{}, malformed("token1", err)
	}
	fee, err := asUint24(values[2][0])
	if err != nil {
		return PoolInfo{}, malformed("fee", err)
	}
	spacing, err := asInt24(values[3][0])
	if err != nil {
		return PoolInfo{}, malformed("tickSpacing", err)
	}
	return PoolInfo{Address: pool, Token0: token0, Token1: token1, Fee: fee, TickSpacing: spacing}, nil
}

// Matches reports an InconsistentPoolState error when the deployed pool does not
// hold the pair and fee its address was derived from.
func (i PoolInfo) Matches(key model.PoolKey) error {
	if i.Token0 != key.Token0 || i.Token1 != key.Token1 || i.Fee != key.Fee {
		return fmt.Errorf("%w: %s holds %s/%s fee %d, expected %s/%s fee %d", model.ErrInconsistentPool,
			i.Address.Hex(), i.Token0.Hex(), i.Token1.Hex(), i.Fee, key.Token0.Hex(), key.Token1.Hex(), key.Fee)
	}
	return nil
}
