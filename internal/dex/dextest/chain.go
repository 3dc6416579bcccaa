// Package dextest provides an in-memory chain that answers eth_calls against
// pools, position managers and ERC-20 tokens using the real ABIs.
package dextest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
)

// Pool is the mutable state of a fake pool.
type Pool struct {
	Token0               common.Address
	Token1               common.Address
	Fee                  uint32
	TickSpacing          int32
	SqrtPriceX96         *big.Int
	Tick                 int32
	Liquidity            *big.Int
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
	Ticks                map[int32]model.TickInfo
}

// Token is a fake ERC-20. Bytes32 makes symbol and name return bytes32.
type Token struct {
	Decimals uint8
	Symbol   string
	Name     string
	Bytes32  bool
}

// Manager is a fake position manager.
type Manager struct {
	Owned     map[common.Address][]*big.Int
	Positions map[string]model.Position
}

// Request is one decoded eth_call.
type Request struct {
	To     common.Address
	Method string
	Args   []interface{}
	Block  uint64
}

// Hook may block or fail a single call. A non-nil error becomes that element's error.
type Hook func(ctx context.Context, req Request) error

// Chain implements chain.Reader.
type Chain struct {
	mu       sync.Mutex
	chainID  uint64
	head     uint64
	pools    map[common.Address]*Pool
	tokens   map[common.Address]Token
	managers map[common.Address]*Manager
	hook     Hook
	down     error
	batches  int
	blocks   []uint64
	methods  []string

	poolABI  abi.ABI
	npmABI   abi.ABI
	erc20ABI abi.ABI
	bytesABI abi.ABI
}

var (
	_ chain.Reader     = (*Chain)(nil)
	_ chain.BlockTimer = (*Chain)(nil)
)

// GenesisTime is the timestamp of block 0; blocks are BlockInterval seconds apart.
const (
	GenesisTime   = 1_600_000_000
	BlockInterval = 12
)

const bytes32ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

// New returns an empty chain at the given head.
func New(chainID, head uint64) *Chain {
	poolABI, err := dex.PoolABI()
	if err != nil {
		panic(err)
	}
	npmABI, err := dex.PositionManagerABI()
	if err != nil {
		panic(err)
	}
	erc20ABI, err := dex.ERC20ABI()
	if err != nil {
		panic(err)
	}
	bytesABI, err := abi.JSON(strings.NewReader(bytes32ABIJSON))
	if err != nil {
		panic(err)
	}
	return &Chain{
		chainID:  chainID,
		head:     head,
		pools:    make(map[common.Address]*Pool),
		tokens:   make(map[common.Address]Token),
		managers: make(map[common.Address]*Manager),
		poolABI:  poolABI,
		npmABI:   npmABI,
		erc20ABI: erc20ABI,
		bytesABI: bytesABI,
	}
}

func (c *Chain) SetPool(address common.Address, pool *Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pool.Ticks == nil {
		pool.Ticks = make(map[int32]model.TickInfo)
	}
	c.pools[address] = pool
}

func (c *Chain) SetToken(address common.Address, token Token) {
	c.mu.Lock()
	c.tokens[address] = token
	c.mu.Unlock()
}

// AddManager deploys an empty position manager.
func (c *Chain) AddManager(manager common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.managers[manager] == nil {
		c.managers[manager] = &Manager{Owned: make(map[common.Address][]*big.Int), Positions: make(map[string]model.Position)}
	}
}

// AddPosition registers a position under the manager. A nil owner leaves it unowned (burned).
func (c *Chain) AddPosition(manager common.Address, pos model.Position) {
	c.AddManager(manager)
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.managers[manager]
	m.Positions[pos.TokenID.String()] = pos
	if pos.Owner != (common.Address{}) {
		m.Owned[pos.Owner] = append(m.Owned[pos.Owner], pos.TokenID)
	}
}

// UpdatePool mutates a pool under the chain lock.
func (c *Chain) UpdatePool(address common.Address, fn func(*Pool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.pools[address]; p != nil {
		fn(p)
	}
}

func (c *Chain) SetHead(head uint64) {
	c.mu.Lock()
	c.head = head
	c.mu.Unlock()
}

func (c *Chain) SetHook(hook Hook) {
	c.mu.Lock()
	c.hook = hook
	c.mu.Unlock()
}

// SetDown makes every batch fail as a whole with err. nil restores service.
func (c *Chain) SetDown(err error) {
	c.mu.Lock()
	c.down = err
	c.mu.Unlock()
}

// Batches returns the number of batch round trips served.
func (c *Chain) Batches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches
}

// Blocks returns the block tag of every call served, in order.
func (c *Chain) Blocks() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.blocks...)
}

// Methods returns the method name of every call served, in order.
func (c *Chain) Methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.methods...)
}

func (c *Chain) ChainID() uint64 { return c.chainID }

func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return 0, c.down
	}
	return c.head, nil
}

func (c *Chain) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return 0, c.down
	}
	return GenesisTime + number*BlockInterval, nil
}

func (c *Chain) Call(ctx context.Context, call chain.Call, block uint64) ([]byte, error) {
	results, err := c.BatchCall(ctx, []chain.Call{call}, block)
	if err != nil {
		return nil, err
	}
	return results[0].Data, results[0].Err
}

func (c *Chain) BatchCall(ctx context.Context, calls []chain.Call, block uint64) ([]chain.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.down != nil {
		err := c.down
		c.mu.Unlock()
		return nil, err
	}
	c.batches++
	if block == 0 {
		block = c.head
	}
	hook := c.hook
	c.mu.Unlock()

	out := make([]chain.CallResult, len(calls))
	for i, call := range calls {
		req, parsed, err := c.decode(call)
		if err != nil {
			out[i].Err = err
			continue
		}
		req.Block = block
		c.mu.Lock()
		c.blocks = append(c.blocks, block)
		c.methods = append(c.methods, req.Method)
		c.mu.Unlock()
		if parsed == nil {
			// no code at the address
			continue
		}
		if hook != nil {
			if err := hook(ctx, req); err != nil {
				out[i].Err = err
				continue
			}
		}
		out[i].Data, out[i].Err = c.answer(req, parsed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Chain) decode(call chain.Call) (Request, *abi.ABI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var parsed *abi.ABI
	switch {
	case c.pools[call.To] != nil:
		parsed = &c.poolABI
	case c.managers[call.To] != nil:
		parsed = &c.npmABI
	default:
		if token, ok := c.tokens[call.To]; ok {
			parsed = &c.erc20ABI
			if token.Bytes32 {
				parsed = &c.bytesABI
			}
		}
	}
	req := Request{To: call.To}
	if len(call.Data) < 4 {
		return req, nil, fmt.Errorf("%w: short calldata", model.ErrReverted)
	}
	if parsed == nil {
		if m, err := c.npmABI.MethodById(call.Data[:4]); err == nil {
			req.Method = m.Name
		}
		return req, nil, nil
	}
	method, err := parsed.MethodById(call.Data[:4])
	if err != nil {
		return req, nil, fmt.Errorf("%w: unknown selector", model.ErrReverted)
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return req, nil, fmt.Errorf("%w: bad arguments: %v", model.ErrReverted, err)
	}
	req.Method = method.Name
	req.Args = args
	return req, parsed, nil
}

func (c *Chain) answer(req Request, parsed *abi.ABI) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var values []interface{}
	var err error
	switch {
	case c.pools[req.To] != nil:
		values, err = c.answerPool(c.pools[req.To], req)
	case c.managers[req.To] != nil:
		values, err = c.answerManager(c.managers[req.To], req)
	default:
		values, err = answerToken(c.tokens[req.To], req)
	}
	if err != nil {
		return nil, err
	}
	return parsed.Methods[req.Method].Outputs.Pack(values...)
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

func (c *Chain) answerPool(p *Pool, req Request) ([]interface{}, error) {
	switch req.Method {
	case "token0":
		return []interface{}{p.Token0}, nil
	case "token1":
		return []interface{}{p.Token1}, nil
	case "fee":
		return []interface{}{big.NewInt(int64(p.Fee))}, nil
	case "tickSpacing":
		return []interface{}{big.NewInt(int64(p.TickSpacing))}, nil
	case "liquidity":
		return []interface{}{orZero(p.Liquidity)}, nil
	case "slot0":
		return []interface{}{orZero(p.SqrtPriceX96), big.NewInt(int64(p.Tick)), uint16(0), uint16(1), uint16(1), uint32(0), true}, nil
	case "feeGrowthGlobal0X128":
		return []interface{}{orZero(p.FeeGrowthGlobal0X128)}, nil
	case "feeGrowthGlobal1X128":
		return []interface{}{orZero(p.FeeGrowthGlobal1X128)}, nil
	case "ticks":
		tick := int32(req.Args[0].(*big.Int).Int64())
		info := p.Ticks[tick]
		return []interface{}{
			orZero(info.LiquidityGross), orZero(info.LiquidityNet),
			orZero(info.FeeGrowthOutside0X128), orZero(info.FeeGrowthOutside1X128),
			new(big.Int), new(big.Int), uint32(0), info.Initialized,
		}, nil
	}
	return nil, fmt.Errorf("%w: pool method %s", model.ErrReverted, req.Method)
}

func (c *Chain) answerManager(m *Manager, req Request) ([]interface{}, error) {
	switch req.Method {
	case "balanceOf":
		owner := req.Args[0].(common.Address)
		return []interface{}{big.NewInt(int64(len(m.Owned[owner])))}, nil
	case "tokenOfOwnerByIndex":
		owner := req.Args[0].(common.Address)
		idx := req.Args[1].(*big.Int)
		ids := m.Owned[owner]
		if !idx.IsInt64() || idx.Int64() >= int64(len(ids)) {
			return nil, fmt.Errorf("%w: ERC721Enumerable: owner index out of bounds", model.ErrReverted)
		}
		return []interface{}{ids[idx.Int64()]}, nil
	case "ownerOf", "positions":
		id := req.Args[0].(*big.Int)
		pos, ok := m.Positions[id.String()]
		if !ok || pos.Owner == (common.Address{}) {
			return nil, fmt.Errorf("%w: Invalid token ID", model.ErrReverted)
		}
		if req.Method == "ownerOf" {
			return []interface{}{pos.Owner}, nil
		}
		return []interface{}{
			orZero(pos.Nonce), pos.Operator, pos.Pool.Token0, pos.Pool.Token1,
			big.NewInt(int64(pos.Pool.Fee)), big.NewInt(int64(pos.TickLower)), big.NewInt(int64(pos.TickUpper)),
			orZero(pos.Liquidity), orZero(pos.FeeGrowthInside0LastX128), orZero(pos.FeeGrowthInside1LastX128),
			orZero(pos.TokensOwed0), orZero(pos.TokensOwed1),
		}, nil
	}
	return nil, fmt.Errorf("%w: manager method %s", model.ErrReverted, req.Method)
}

func answerToken(t Token, req Request) ([]interface{}, error) {
	switch req.Method {
	case "decimals":
		return []interface{}{t.Decimals}, nil
	case "symbol", "name":
		s := t.Symbol
		if req.Method == "name" {
			s = t.Name
		}
		if t.Bytes32 {
			var b [32]byte
			copy(b[:], s)
			return []interface{}{b}, nil
		}
		return []interface{}{s}, nil
	}
	return nil, fmt.Errorf("%w: token method %s", model.ErrReverted, req.Method)
}
