package adapter

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

// Adapter is the facade over one platform deployment on one chain.
type Adapter struct {
	platform    registry.PlatformConfig
	chain       registry.ChainConfig
	reader      chain.Reader
	pools       *dex.PoolStateReader
	positions   *dex.PositionReader
	builder     *dex.CalldataBuilder
	tokens      *dex.TokenCache
	cache       *poolCache
	verified    sync.Map
	concurrency int
	now         func() time.Time
	logger      *zap.Logger

	epoch  atomic.Uint64
	mu     sync.Mutex
	cancel context.CancelFunc
	latest *Snapshot
}

func newAdapter(cfg registry.ChainConfig, platform registry.PlatformConfig, reader chain.Reader, f *Factory) (*Adapter, error) {
	if reader.ChainID() != cfg.ChainID {
		return nil, fmt.Errorf("%w: reader chain %d, want %d", model.ErrChainMismatch, reader.ChainID(), cfg.ChainID)
	}
	if platform.InitCodeHash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: %s on chain %d", model.ErrMissingInitCodeHash, platform.ID, cfg.ChainID)
	}
	logger := f.logger.With(zap.Uint64("chain_id", cfg.ChainID), zap.String("platform", string(platform.ID)))

	pools, err := dex.NewPoolStateReader(reader, logger)
	if err != nil {
		return nil, err
	}
	positions, err := dex.NewPositionReader(reader, platform, f.batchSize, logger)
	if err != nil {
		return nil, err
	}
	builder, err := dex.NewCalldataBuilder(platform, dex.WithClock(f.now))
	if err != nil {
		return nil, err
	}
	cache, err := newPoolCache(f.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		platform:    platform,
		chain:       cfg,
		reader:      reader,
		pools:       pools,
		positions:   positions,
		builder:     builder,
		tokens:      dex.NewTokenCache(),
		cache:       cache,
		concurrency: f.concurrency,
		now:         f.now,
		logger:      logger,
	}, nil
}

func (a *Adapter) Platform() model.PlatformID { return a.platform.ID }

func (a *Adapter) ChainID() uint64 { return a.chain.ChainID }

// Executor returns the chain's automation executor.
func (a *Adapter) Executor() (common.Address, error) {
	if !a.chain.AutomationEnabled() {
		return common.Address{}, fmt.Errorf("%w: no executor configured on chain %d", model.ErrUnsupportedOperation, a.chain.ChainID)
	}
	return *a.chain.ExecutorAddress, nil
}

// IsPositionInRange applies tickLower <= tick < tickUpper.
func (a *Adapter) IsPositionInRange(tick, tickLower, tickUpper int32) bool {
	return model.InRange(tick, tickLower, tickUpper)
}

// TickToPrice returns the price at tick as quote per base.
func (a *Adapter) TickToPrice(tick int32, base, quote model.Token) (*big.Rat, error) {
	return clmath.TickToPrice(tick, base, quote)
}

// PriceToTick returns the greatest tick whose price does not exceed price.
func (a *Adapter) PriceToTick(price *big.Rat, base, quote model.Token) (int32, error) {
	return clmath.PriceToTick(price, base, quote)
}

// NearestUsableTick rounds tick to the fee tier's spacing.
func (a *Adapter) NearestUsableTick(tick int32, fee uint32) (int32, error) {
	spacing, err := a.platform.TickSpacing(fee)
	if err != nil {
		return 0, err
	}
	return clmath.NearestUsableTick(tick, spacing), nil
}

// AlignTick floors (roundUp=false) or ceils tick to the fee tier's spacing.
func (a *Adapter) AlignTick(tick int32, fee uint32, roundUp bool) (int32, error) {
	spacing, err := a.platform.TickSpacing(fee)
	if err != nil {
		return 0, err
	}
	return clmath.AlignTick(tick, spacing, roundUp), nil
}

// Token resolves metadata from the registry or the chain.
func (a *Adapter) Token(ctx context.Context, address common.Address) (model.Token, error) {
	if token, ok := a.chain.TokenByAddress(address); ok {
		return token, nil
	}
	return a.tokens.Resolve(ctx, a.reader, address, a.logger)
}

// LookupToken accepts a registry symbol or a hex address.
func (a *Adapter) LookupToken(ctx context.Context, ref string) (model.Token, error) {
	if common.IsHexAddress(ref) {
		return a.Token(ctx, common.HexToAddress(ref))
	}
	if token, ok := a.chain.TokenBySymbol(ref); ok {
		return token, nil
	}
	return model.Token{}, fmt.Errorf("%w: %q on chain %d", model.ErrUnknownToken, ref, a.chain.ChainID)
}

// PoolAddress derives the pool of an unordered pair.
func (a *Adapter) PoolAddress(tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	return dex.PoolAddressFor(a.platform, tokenA, tokenB, fee)
}

// poolState loads pool state at a pinned block, memoized per (pool, block). The
// first load of a pool checks its deployed pair and fee against key.
func (a *Adapter) poolState(ctx context.Context, key model.PoolKey, pool common.Address, block uint64) (model.PoolState, error) {
	if state, ok := a.cache.Get(pool, block); ok {
		a.logger.Debug("pool cache hit", zap.String("pool", pool.Hex()), zap.Uint64("block", block))
		return state, nil
	}
	if _, ok := a.verified.Load(pool); !ok {
		info, err := a.pools.Info(ctx, pool, block)
		if err != nil {
			return model.PoolState{}, err
		}
		if err := info.Matches(key); err != nil {
			return model.PoolState{}, err
		}
		a.verified.Store(pool, struct{}{})
	}
	state, err := a.pools.Load(ctx, pool, key.Fee, block)
	if err != nil {
		return model.PoolState{}, err
	}
	a.cache.Add(state)
	return state, nil
}

// Pool reads one pool. block 0 reads at the current head.
func (a *Adapter) Pool(ctx context.Context, tokenA, tokenB common.Address, fee uint32, block uint64) (PoolView, error) {
	key, err := model.NewPoolKey(a.platform.ID, a.chain.ChainID, tokenA, tokenB, fee)
	if err != nil {
		return PoolView{}, err
	}
	spacing, err := a.platform.TickSpacing(fee)
	if err != nil {
		return PoolView{}, err
	}
	address, err := a.PoolAddress(key.Token0, key.Token1, fee)
	if err != nil {
		return PoolView{}, err
	}
	block, err = dex.ResolveBlock(ctx, a.reader, block)
	if err != nil {
		return PoolView{}, err
	}
	state, err := a.poolState(ctx, key, address, block)
	if err != nil {
		return PoolView{}, err
	}
	token0, err := a.Token(ctx, key.Token0)
	if err != nil {
		return PoolView{}, err
	}
	token1, err := a.Token(ctx, key.Token1)
	if err != nil {
		return PoolView{}, err
	}
	return PoolView{Address: address, Key: key, TickSpacing: spacing, Token0: token0, Token1: token1, State: state}, nil
}

// Position reads and derives one position by id. A burned id is returned with
// StatusBurned and no error.
func (a *Adapter) Position(ctx context.Context, tokenID *big.Int, block uint64) (PositionView, error) {
	block, err := dex.ResolveBlock(ctx, a.reader, block)
	if err != nil {
		return PositionView{}, err
	}
	res, err := a.positions.Position(ctx, tokenID, block)
	if err != nil {
		return PositionView{}, err
	}
	views := []PositionView{{Holder: res.Position.Owner, Position: res.Position, Status: res.Status}}
	if res.Status != model.StatusBurned {
		a.derive(ctx, views, block)
	}
	return views[0], views[0].Err
}

// Positions reads and derives every position of holder at one block. Failed
// positions are returned with Err set together with a *model.PartialError.
func (a *Adapter) Positions(ctx context.Context, holder common.Address, block uint64) ([]PositionView, error) {
	block, err := dex.ResolveBlock(ctx, a.reader, block)
	if err != nil {
		return nil, err
	}
	snap, err := a.read(ctx, []common.Address{holder}, block)
	if err != nil {
		return nil, err
	}
	return snap.Positions, snap.Err()
}
