package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PlatformID names a concentrated-liquidity deployment family.
type PlatformID string

const (
	PlatformUniswapV3     PlatformID = "uniswap-v3"
	PlatformPancakeSwapV3 PlatformID = "pancakeswap-v3"
)

// PoolKey uniquely identifies a pool. Token0 always sorts before Token1.
type PoolKey struct {
	Platform PlatformID     `json:"platform"`
	ChainID  uint64         `json:"chain_id"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Fee      uint32         `json:"fee"`
}

// NewPoolKey sorts the pair and rejects identical tokens.
func NewPoolKey(platform PlatformID, chainID uint64, tokenA, tokenB common.Address, fee uint32) (PoolKey, error) {
	if tokenA == tokenB {
		return PoolKey{}, fmt.Errorf("%w: %s", ErrSameToken, tokenA.Hex())
	}
	token0, token1 := SortTokens(tokenA, tokenB)
	return PoolKey{
		Platform: platform,
		ChainID:  chainID,
		Token0:   token0,
		Token1:   token1,
		Fee:      fee,
	}, nil
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s:%d:%s/%s:%d", k.Platform, k.ChainID, k.Token0.Hex(), k.Token1.Hex(), k.Fee)
}
