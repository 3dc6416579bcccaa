package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
)

// DecreaseIntent removes PercentageBps of a position's liquidity.
type DecreaseIntent struct {
	TokenID       *big.Int
	PercentageBps uint32
	SlippageBps   uint32
	Deadline      uint64
}

// CloseIntent empties a position. RequireAtomic fails on platforms without multicall
// instead of returning sequential transactions.
type CloseIntent struct {
	TokenID       *big.Int
	SlippageBps   uint32
	Recipient     common.Address
	Deadline      uint64
	Burn          bool
	RequireAtomic bool
}

// Mint builds calldata for a new position.
func (a *Adapter) Mint(req dex.MintRequest) (model.TxRequest, error) {
	return a.builder.Mint(req)
}

// IncreaseLiquidity builds calldata adding to an existing position.
func (a *Adapter) IncreaseLiquidity(req dex.IncreaseRequest) (model.TxRequest, error) {
	return a.builder.IncreaseLiquidity(req)
}

// Collect builds calldata collecting everything owed to recipient.
func (a *Adapter) Collect(tokenID *big.Int, recipient common.Address) (model.TxRequest, error) {
	return a.builder.Collect(tokenID, recipient)
}

// livePosition reads a position and its pool at the current head.
func (a *Adapter) livePosition(ctx context.Context, tokenID *big.Int) (model.Position, model.PoolState, error) {
	if tokenID == nil || tokenID.Sign() <= 0 {
		return model.Position{}, model.PoolState{}, fmt.Errorf("%w: token id %v", model.ErrAmountsZero, tokenID)
	}
	block, err := dex.ResolveBlock(ctx, a.reader, 0)
	if err != nil {
		return model.Position{}, model.PoolState{}, err
	}
	res, err := a.positions.Position(ctx, tokenID, block)
	if err != nil {
		return model.Position{}, model.PoolState{}, err
	}
	if res.Status == model.StatusBurned {
		return model.Position{}, model.PoolState{}, fmt.Errorf("%w: token %s", model.ErrPositionBurned, tokenID)
	}
	key := res.Position.Pool
	address, err := a.PoolAddress(key.Token0, key.Token1, key.Fee)
	if err != nil {
		return model.Position{}, model.PoolState{}, err
	}
	state, err := a.poolState(ctx, key, address, block)
	if err != nil {
		return model.Position{}, model.PoolState{}, err
	}
	return res.Position, state, nil
}

// DecreaseLiquidity reads the position and its pool, then builds calldata whose
// minimum amounts are the expected amounts less slippage.
func (a *Adapter) DecreaseLiquidity(ctx context.Context, intent DecreaseIntent) (model.TxRequest, error) {
	pos, state, err := a.livePosition(ctx, intent.TokenID)
	if err != nil {
		return model.TxRequest{}, err
	}
	return a.builder.DecreaseLiquidity(dex.DecreaseRequest{
		Position:      pos,
		SqrtPriceX96:  state.SqrtPriceX96,
		PercentageBps: intent.PercentageBps,
		SlippageBps:   intent.SlippageBps,
		Deadline:      intent.Deadline,
	})
}

// Burn reads the position and builds burn calldata when it is empty.
func (a *Adapter) Burn(ctx context.Context, tokenID *big.Int) (model.TxRequest, error) {
	block, err := dex.ResolveBlock(ctx, a.reader, 0)
	if err != nil {
		return model.TxRequest{}, err
	}
	res, err := a.positions.Position(ctx, tokenID, block)
	if err != nil {
		return model.TxRequest{}, err
	}
	if res.Status == model.StatusBurned {
		return model.TxRequest{}, fmt.Errorf("%w: token %s", model.ErrPositionBurned, tokenID)
	}
	return a.builder.Burn(res.Position)
}

// Close builds decrease(100%) + collect [+ burn]. It is one multicall transaction
// when the platform supports it and ordered sequential transactions otherwise.
func (a *Adapter) Close(ctx context.Context, intent CloseIntent) (model.ClosePlan, error) {
	if intent.RequireAtomic && !a.platform.SupportsMulticall {
		return model.ClosePlan{}, fmt.Errorf("%w: %s has no multicall", model.ErrUnsupportedOperation, a.platform.ID)
	}
	pos, state, err := a.livePosition(ctx, intent.TokenID)
	if err != nil {
		return model.ClosePlan{}, err
	}
	plan, err := a.builder.Close(dex.CloseRequest{
		Position:     pos,
		SqrtPriceX96: state.SqrtPriceX96,
		SlippageBps:  intent.SlippageBps,
		Recipient:    intent.Recipient,
		Deadline:     intent.Deadline,
		Burn:         intent.Burn,
	})
	if err != nil {
		return model.ClosePlan{}, err
	}
	a.logger.Debug("close plan built",
		zap.String("token_id", intent.TokenID.String()),
		zap.Int("transactions", len(plan.Transactions)),
		zap.Bool("atomic", plan.Atomic),
	)
	return plan, nil
}
