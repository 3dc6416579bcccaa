package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolState is the live pool state read at BlockNumber. It is only valid for that block.
type PoolState struct {
	Address              common.Address
	BlockNumber          uint64
	SqrtPriceX96         *big.Int
	Tick                 int32
	Liquidity            *big.Int
	Fee                  uint32
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
}

// TickInfo holds the fee-growth-outside accumulators of one initialized tick.
type TickInfo struct {
	Tick                  int32
	LiquidityGross        *big.Int
	LiquidityNet          *big.Int
	FeeGrowthOutside0X128 *big.Int
	FeeGrowthOutside1X128 *big.Int
	Initialized           bool
}

// FeeGrowthData is everything needed to reconstruct fee growth inside a range,
// read in one round trip.
type FeeGrowthData struct {
	BlockNumber          uint64
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
	Lower                TickInfo
	Upper                TickInfo
}
