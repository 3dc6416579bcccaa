package dex

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
)

// TokenCache caches token metadata by address.
type TokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.Token
}

func NewTokenCache(seed ...model.Token) *TokenCache {
	c := &TokenCache{data: make(map[common.Address]model.Token, len(seed))}
	for _, token := range seed {
		c.data[token.Address] = token
	}
	return c
}

func (c *TokenCache) Get(address common.Address) (model.Token, bool) {
	c.mu.RLock()
	token, ok := c.data[address]
	c.mu.RUnlock()
	return token, ok
}

func (c *TokenCache) Set(token model.Token) {
	c.mu.Lock()
	c.data[token.Address] = token
	c.mu.Unlock()
}

// Resolve returns cached metadata or fetches it from chain and caches the result.
func (c *TokenCache) Resolve(ctx context.Context, reader chain.Reader, address common.Address, logger *zap.Logger) (model.Token, error) {
	if token, ok := c.Get(address); ok {
		return token, nil
	}
	token, err := FetchToken(ctx, reader, address, logger)
	if err != nil {
		return model.Token{}, err
	}
	c.Set(token)
	return token, nil
}

// FetchToken loads ERC-20 metadata in one batch. decimals is required; symbol and
// name fall back to the bytes32 variant and are left empty when both fail.
func FetchToken(ctx context.Context, reader chain.Reader, address common.Address, logger *zap.Logger) (model.Token, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	token := model.Token{ChainID: reader.ChainID(), Address: address}

	stringABI, err := ERC20ABI()
	if err != nil {
		return token, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABIInstance()
	if err != nil {
		return token, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	methods := []string{"decimals", "symbol", "name"}
	calls := make([]chain.Call, 0, len(methods))
	for _, method := range methods {
		call, err := packCall(stringABI, address, method)
		if err != nil {
			return token, err
		}
		calls = append(calls, call)
	}
	results, err := reader.BatchCall(ctx, calls, 0)
	if err != nil {
		return token, fmt.Errorf("token %s: %w", address.Hex(), err)
	}
	if len(results) != len(calls) {
		return token, fmt.Errorf("%w: expected %d results, got %d", model.ErrMalformedReturn, len(calls), len(results))
	}

	values, err := unpackResult(stringABI, "decimals", results[0])
	if err != nil {
		return token, fmt.Errorf("token %s: %w", address.Hex(), err)
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return token, malformed("decimals", err)
	}
	token.Decimals = decimals

	token.Symbol = textField(ctx, reader, address, "symbol", results[1], stringABI, bytes32ABI, logger)
	token.Name = textField(ctx, reader, address, "name", results[2], stringABI, bytes32ABI, logger)
	return token, nil
}

func textField(ctx context.Context, reader chain.Reader, address common.Address, method string, res chain.CallResult, stringABI, bytes32ABI abi.ABI, logger *zap.Logger) string {
	if values, err := unpackResult(stringABI, method, res); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	if res.Err != nil {
		logger.Debug(method+" call failed", zap.String("token", address.Hex()), zap.Error(res.Err))
		return ""
	}
	if values, err := unpackResult(bytes32ABI, method, res); err == nil {
		if s, ok := bytes32ToString(values[0]); ok {
			return s
		}
	}
	logger.Debug(method+" decode failed", zap.String("token", address.Hex()))
	return ""
}
