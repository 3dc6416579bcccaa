// Package adapter binds the readers, math and calldata builder of one platform
// on one chain behind a single facade.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

const DefaultConcurrency = 8

// sentinelHolder is queried with balanceOf to check a position manager answers.
var sentinelHolder = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// Factory builds adapters from the registry.
type Factory struct {
	registry    *registry.Registry
	logger      *zap.Logger
	batchSize   int
	cacheSize   int
	concurrency int
	now         func() time.Time
}

// Option configures a Factory.
type Option func(*Factory)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithBatchSize caps the number of calls per batch round trip.
func WithBatchSize(n int) Option {
	return func(f *Factory) { f.batchSize = n }
}

// WithCacheSize bounds the per-adapter pool state cache.
func WithCacheSize(n int) Option {
	return func(f *Factory) { f.cacheSize = n }
}

// WithConcurrency bounds parallel reads within one refresh.
func WithConcurrency(n int) Option {
	return func(f *Factory) { f.concurrency = n }
}

// WithClock overrides the clock used for deadlines and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFactory(reg *registry.Registry, opts ...Option) *Factory {
	f := &Factory{
		registry:    reg,
		logger:      zap.NewNop(),
		cacheSize:   DefaultCacheSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PlatformFailure records a platform that could not be brought up.
type PlatformFailure struct {
	Platform model.PlatformID
	Err      error
}

// ForChainResult holds one adapter per platform that came up and the failures of the rest.
type ForChainResult struct {
	Adapters []*Adapter
	Failures []PlatformFailure
}

// Adapter returns the adapter of a platform.
func (r ForChainResult) Adapter(platform model.PlatformID) (*Adapter, bool) {
	for _, a := range r.Adapters {
		if a.Platform() == platform {
			return a, true
		}
	}
	return nil, false
}

// ForChain builds an adapter for every platform configured on chainID. The reader
// must be scoped to that chain. Each platform is checked once; a platform that fails
// construction or the check is reported in Failures and does not fail the others.
func (f *Factory) ForChain(ctx context.Context, chainID uint64, reader chain.Reader) (ForChainResult, error) {
	cfg, err := f.registry.Chain(chainID)
	if err != nil {
		return ForChainResult{}, err
	}
	if reader.ChainID() != chainID {
		return ForChainResult{}, fmt.Errorf("%w: reader chain %d, want %d", model.ErrChainMismatch, reader.ChainID(), chainID)
	}
	head, err := reader.BlockNumber(ctx)
	if err != nil {
		return ForChainResult{}, fmt.Errorf("chain %d: %w", chainID, err)
	}

	var result ForChainResult
	for _, id := range cfg.PlatformIDs() {
		a, err := newAdapter(cfg, cfg.Platforms[id], reader, f)
		if err == nil {
			_, err = a.positions.BalanceOf(ctx, sentinelHolder, head)
		}
		if err != nil {
			f.logger.Warn("platform unavailable",
				zap.Uint64("chain_id", chainID),
				zap.String("platform", string(id)),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, PlatformFailure{Platform: id, Err: err})
			continue
		}
		result.Adapters = append(result.Adapters, a)
	}
	return result, nil
}

// New builds a single adapter without probing.
func (f *Factory) New(platform model.PlatformID, chainID uint64, reader chain.Reader) (*Adapter, error) {
	cfg, err := f.registry.Chain(chainID)
	if err != nil {
		return nil, err
	}
	pcfg, err := f.registry.Platform(platform, chainID)
	if err != nil {
		return nil, err
	}
	return newAdapter(cfg, pcfg, reader, f)
}
