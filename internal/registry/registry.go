package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/model"
)

// PlatformConfig holds the per-chain constants of one deployment. Deployer is
// the CREATE2 sender for pools; it is left empty when the factory deploys them.
type PlatformConfig struct {
	ID                model.PlatformID
	Name              string
	Factory           common.Address
	Deployer          common.Address
	PositionManager   common.Address
	InitCodeHash      common.Hash
	TickSpacingByFee  map[uint32]int32
	SupportsMulticall bool
}

// TickSpacing returns the spacing of a fee tier. A missing entry means the tier is unsupported.
func (p PlatformConfig) TickSpacing(fee uint32) (int32, error) {
	spacing, ok := p.TickSpacingByFee[fee]
	if !ok {
		return 0, fmt.Errorf("%w: %s fee %d", model.ErrUnsupportedFeeTier, p.ID, fee)
	}
	return spacing, nil
}

// FeeTiers returns the supported fee tiers in ascending order.
func (p PlatformConfig) FeeTiers() []uint32 {
	fees := make([]uint32, 0, len(p.TickSpacingByFee))
	for fee := range p.TickSpacingByFee {
		fees = append(fees, fee)
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })
	return fees
}

// PoolDeployer returns the CREATE2 sender, falling back to the factory.
func (p PlatformConfig) PoolDeployer() common.Address {
	if p.Deployer != (common.Address{}) {
		return p.Deployer
	}
	return p.Factory
}

// ChainConfig is everything chain-specific the adapters need.
type ChainConfig struct {
	ChainID         uint64
	Name            string
	Platforms       map[model.PlatformID]PlatformConfig
	Tokens          map[string]model.Token
	RPCEndpoints    []string
	ExplorerURL     string
	ExecutorAddress *common.Address
}

// AutomationEnabled reports whether an executor is configured for the chain.
func (c ChainConfig) AutomationEnabled() bool {
	return c.ExecutorAddress != nil
}

// PlatformIDs returns the configured platforms in a stable order.
func (c ChainConfig) PlatformIDs() []model.PlatformID {
	ids := make([]model.PlatformID, 0, len(c.Platforms))
	for id := range c.Platforms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TokenBySymbol looks a token up case-insensitively.
func (c ChainConfig) TokenBySymbol(symbol string) (model.Token, bool) {
	if tok, ok := c.Tokens[symbol]; ok {
		return tok, true
	}
	for sym, tok := range c.Tokens {
		if strings.EqualFold(sym, symbol) {
			return tok, true
		}
	}
	return model.Token{}, false
}

// TokenByAddress returns the registry entry for a token address.
func (c ChainConfig) TokenByAddress(addr common.Address) (model.Token, bool) {
	for _, tok := range c.Tokens {
		if tok.Address == addr {
			return tok, true
		}
	}
	return model.Token{}, false
}

// Registry maps chain IDs to their configuration. It is read-only once built.
type Registry struct {
	chains map[uint64]ChainConfig
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry of built-in chains.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := New(builtinChains()...)
		if err != nil {
			panic(fmt.Sprintf("registry: builtin chains: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// New validates and indexes the given chains.
func New(chains ...ChainConfig) (*Registry, error) {
	r := &Registry{chains: make(map[uint64]ChainConfig, len(chains))}
	for _, c := range chains {
		if _, dup := r.chains[c.ChainID]; dup {
			return nil, fmt.Errorf("duplicate chain %d", c.ChainID)
		}
		for id, p := range c.Platforms {
			if p.ID != id {
				return nil, fmt.Errorf("chain %d: platform key %s does not match id %s", c.ChainID, id, p.ID)
			}
			if p.InitCodeHash == (common.Hash{}) {
				return nil, fmt.Errorf("%w: chain %d platform %s", model.ErrMissingInitCodeHash, c.ChainID, id)
			}
			if len(p.TickSpacingByFee) == 0 {
				return nil, fmt.Errorf("chain %d platform %s: no fee tiers", c.ChainID, id)
			}
		}
		for sym, tok := range c.Tokens {
			if tok.ChainID != c.ChainID {
				return nil, fmt.Errorf("chain %d: token %s is scoped to chain %d", c.ChainID, sym, tok.ChainID)
			}
		}
		r.chains[c.ChainID] = c
	}
	return r, nil
}

// Chain returns the configuration of chainID.
func (r *Registry) Chain(chainID uint64) (ChainConfig, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %d", model.ErrUnknownChain, chainID)
	}
	return c, nil
}

// Platform returns one platform's constants on chainID.
func (r *Registry) Platform(platform model.PlatformID, chainID uint64) (PlatformConfig, error) {
	c, err := r.Chain(chainID)
	if err != nil {
		return PlatformConfig{}, fmt.Errorf("%w: %s on chain %d: %w", model.ErrUnsupportedPlatform, platform, chainID, err)
	}
	p, ok := c.Platforms[platform]
	if !ok {
		return PlatformConfig{}, fmt.Errorf("%w: %s on chain %d", model.ErrUnsupportedPlatform, platform, chainID)
	}
	return p, nil
}

// ChainIDs returns every configured chain in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WithOverrides returns a copy of the registry with the RPC endpoints and
// executor of one chain replaced. Empty overrides keep the built-in values.
func (r *Registry) WithOverrides(chainID uint64, rpcEndpoints []string, executor *common.Address) (*Registry, error) {
	c, err := r.Chain(chainID)
	if err != nil {
		return nil, err
	}
	if len(rpcEndpoints) > 0 {
		c.RPCEndpoints = append([]string(nil), rpcEndpoints...)
	}
	if executor != nil {
		addr := *executor
		c.ExecutorAddress = &addr
	}
	next := &Registry{chains: make(map[uint64]ChainConfig, len(r.chains))}
	for id, existing := range r.chains {
		next.chains[id] = existing
	}
	next.chains[chainID] = c
	return next, nil
}
