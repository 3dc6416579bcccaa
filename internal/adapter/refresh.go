package adapter

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
)

// Refresh runs one epoch: pin the head block, read every holder's positions and
// their pools at that block, derive amounts and fees, then publish. Starting a
// refresh cancels the one in flight; a superseded refresh returns ErrSuperseded
// and never publishes. A partial snapshot is published and returned together
// with a *model.PartialError.
func (a *Adapter) Refresh(ctx context.Context, holders ...common.Address) (*Snapshot, error) {
	epoch, ctx, done := a.beginEpoch(ctx)
	defer done()

	block, err := dex.ResolveBlock(ctx, a.reader, 0)
	if err != nil {
		return nil, a.settle(epoch, err)
	}
	snap, err := a.read(ctx, holders, block)
	if err != nil {
		return nil, a.settle(epoch, err)
	}
	snap.Epoch = epoch
	if !a.publish(snap) {
		return nil, a.settle(epoch, nil)
	}

	if snap.Partial() {
		a.logger.Warn("partial snapshot",
			zap.Uint64("epoch", epoch),
			zap.Uint64("block", block),
			zap.Int("positions", len(snap.Positions)),
			zap.Int("failures", len(snap.Failures)),
		)
	}
	return snap, snap.Err()
}

// Latest returns the most recently published snapshot, or nil.
func (a *Adapter) Latest() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Epoch returns the number of refreshes started so far.
func (a *Adapter) Epoch() uint64 {
	return a.epoch.Load()
}

func (a *Adapter) beginEpoch(ctx context.Context) (uint64, context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	epoch := a.epoch.Add(1)
	if a.cancel != nil {
		a.cancel()
	}
	a.cancel = cancel
	a.cache.Purge()
	a.mu.Unlock()

	return epoch, ctx, func() {
		cancel()
		a.mu.Lock()
		if a.epoch.Load() == epoch {
			a.cancel = nil
		}
		a.mu.Unlock()
	}
}

func (a *Adapter) publish(snap *Snapshot) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.epoch.Load() != snap.Epoch {
		return false
	}
	a.latest = snap
	return true
}

// settle replaces the outcome of a superseded epoch with ErrSuperseded.
func (a *Adapter) settle(epoch uint64, err error) error {
	if current := a.epoch.Load(); current != epoch {
		a.logger.Debug("refresh superseded", zap.Uint64("epoch", epoch), zap.Uint64("current", current))
		return fmt.Errorf("%w: epoch %d, current %d", model.ErrSuperseded, epoch, current)
	}
	return err
}

func (a *Adapter) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	return g, gctx
}

// read enumerates holders and derives their positions at block. It fails as a
// whole only when the context ends or every holder failed.
func (a *Adapter) read(ctx context.Context, holders []common.Address, block uint64) (*Snapshot, error) {
	snap := &Snapshot{
		ChainID:     a.chain.ChainID,
		Platform:    a.platform.ID,
		BlockNumber: block,
		CapturedAt:  a.now(),
		BlockTime:   a.blockTime(ctx, block),
	}

	found := make([][]dex.PositionResult, len(holders))
	failed := make([]error, len(holders))
	g, gctx := a.group(ctx)
	for i, holder := range holders {
		i, holder := i, holder
		g.Go(func() error {
			found[i], failed[i] = a.positions.Enumerate(gctx, holder, block)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	holderFailures := 0
	for i, holder := range holders {
		if failed[i] != nil {
			holderFailures++
			snap.Failures = append(snap.Failures, model.ItemFailure{Ref: "holder " + holder.Hex(), Err: failed[i]})
			continue
		}
		for _, res := range found[i] {
			snap.Positions = append(snap.Positions, PositionView{
				Holder:   holder,
				Position: res.Position,
				Status:   res.Status,
				Err:      res.Err,
			})
			if res.Position.TokenID == nil {
				snap.Positions[len(snap.Positions)-1].Position.TokenID = res.TokenID
			}
		}
	}
	if len(holders) > 0 && holderFailures == len(holders) {
		return nil, failed[0]
	}

	snap.Pools = a.derive(ctx, snap.Positions, block)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, v := range snap.Positions {
		if v.Err != nil {
			snap.Failures = append(snap.Failures, model.ItemFailure{Ref: v.Ref(), Err: v.Err})
		}
	}
	return snap, nil
}

// blockTime resolves the timestamp of block when the reader supports it. A
// failure only leaves the field empty.
func (a *Adapter) blockTime(ctx context.Context, block uint64) time.Time {
	timer, ok := a.reader.(chain.BlockTimer)
	if !ok {
		return time.Time{}
	}
	ts, err := timer.BlockTimestamp(ctx, block)
	if err != nil {
		a.logger.Debug("block timestamp unavailable", zap.Uint64("block", block), zap.Error(err))
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}

type poolLoad struct {
	fee   uint32
	key   model.PoolKey
	state model.PoolState
	err   error
}

type tokenLoad struct {
	token model.Token
	err   error
}

// derive fills pool, token, amount and fee fields of views in place and returns
// the pools it loaded. Views that already carry an error are left alone.
func (a *Adapter) derive(ctx context.Context, views []PositionView, block uint64) []PoolView {
	pools := make(map[common.Address]*poolLoad)
	tokens := make(map[common.Address]*tokenLoad)
	for i := range views {
		v := &views[i]
		if v.Err != nil {
			continue
		}
		key := v.Position.Pool
		address, err := dex.PoolAddressFor(a.platform, key.Token0, key.Token1, key.Fee)
		if err != nil {
			v.Err = err
			continue
		}
		v.Pool = address
		if pools[address] == nil {
			pools[address] = &poolLoad{fee: key.Fee, key: key}
		}
		for _, token := range []common.Address{key.Token0, key.Token1} {
			if tokens[token] == nil {
				tokens[token] = &tokenLoad{}
			}
		}
	}

	g, gctx := a.group(ctx)
	for address, load := range pools {
		address, load := address, load
		g.Go(func() error {
			load.state, load.err = a.poolState(gctx, load.key, address, block)
			return nil
		})
	}
	for address, load := range tokens {
		address, load := address, load
		g.Go(func() error {
			load.token, load.err = a.Token(gctx, address)
			return nil
		})
	}
	_ = g.Wait()

	fees := make([]model.FeeGrowthData, len(views))
	feeErrs := make([]error, len(views))
	g, gctx = a.group(ctx)
	for i := range views {
		v := &views[i]
		if v.Err != nil {
			continue
		}
		if load := pools[v.Pool]; load.err != nil {
			v.Err = fmt.Errorf("pool %s: %w", v.Pool.Hex(), load.err)
			continue
		}
		for _, token := range []common.Address{v.Position.Pool.Token0, v.Position.Pool.Token1} {
			if load := tokens[token]; load.err != nil && v.Err == nil {
				v.Err = fmt.Errorf("token %s: %w", token.Hex(), load.err)
			}
		}
		if v.Err != nil {
			continue
		}
		i, pos, pool := i, v.Position, v.Pool
		g.Go(func() error {
			fees[i], feeErrs[i] = a.pools.LoadFeeGrowth(gctx, pool, pos.TickLower, pos.TickUpper, block)
			return nil
		})
	}
	_ = g.Wait()

	for i := range views {
		v := &views[i]
		if v.Err != nil {
			continue
		}
		v.Token0 = tokens[v.Position.Pool.Token0].token
		v.Token1 = tokens[v.Position.Pool.Token1].token
		if feeErrs[i] != nil {
			v.Err = feeErrs[i]
			continue
		}
		state := pools[v.Pool].state
		v.Tick = state.Tick
		v.SqrtPriceX96 = state.SqrtPriceX96
		v.InRange = model.InRange(state.Tick, v.Position.TickLower, v.Position.TickUpper)
		v.Amount0, v.Amount1, v.Err = clmath.AmountsForPosition(v.Position.Liquidity, v.Position.TickLower, v.Position.TickUpper, state.SqrtPriceX96)
		if v.Err != nil {
			continue
		}
		v.Fees0, v.Fees1, v.Err = clmath.PositionFees(v.Position, state.Tick, fees[i])
	}

	out := make([]PoolView, 0, len(pools))
	for address, load := range pools {
		if load.err != nil {
			continue
		}
		spacing, _ := a.platform.TickSpacing(load.fee)
		out = append(out, PoolView{
			Address:     address,
			Key:         load.key,
			TickSpacing: spacing,
			Token0:      tokens[load.key.Token0].token,
			Token1:      tokens[load.key.Token1].token,
			State:       load.state,
		})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Address.Bytes(), out[j].Address.Bytes()) < 0 })
	return out
}
