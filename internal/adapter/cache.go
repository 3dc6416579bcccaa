package adapter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"liquidityDesk/internal/model"
)

const DefaultCacheSize = 128

type poolCacheKey struct {
	Pool  common.Address
	Block uint64
}

// poolCache memoizes pool state per (pool, block). Last write wins.
type poolCache struct {
	lru *lru.Cache[poolCacheKey, model.PoolState]
}

func newPoolCache(size int) (*poolCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[poolCacheKey, model.PoolState](size)
	if err != nil {
		return nil, fmt.Errorf("pool cache: %w", err)
	}
	return &poolCache{lru: c}, nil
}

func (c *poolCache) Get(pool common.Address, block uint64) (model.PoolState, bool) {
	return c.lru.Get(poolCacheKey{Pool: pool, Block: block})
}

func (c *poolCache) Add(state model.PoolState) {
	c.lru.Add(poolCacheKey{Pool: state.Address, Block: state.BlockNumber}, state)
}

func (c *poolCache) Purge() {
	c.lru.Purge()
}

func (c *poolCache) Len() int {
	return c.lru.Len()
}
