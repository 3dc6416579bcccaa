package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PositionStatus is the lifecycle state observed from read data.
type PositionStatus string

const (
	// StatusActive holds liquidity.
	StatusActive PositionStatus = "active"
	// StatusEmpty has no liquidity but still owes tokens. Collectable, not burnable.
	StatusEmpty PositionStatus = "empty"
	// StatusDrained has no liquidity and nothing owed. Burnable.
	StatusDrained PositionStatus = "drained"
	// StatusBurned no longer exists in the position manager.
	StatusBurned PositionStatus = "burned"
)

// Position is one NFT-bound liquidity position. Owner may be a wallet or a vault
// contract; nothing here distinguishes the two.
type Position struct {
	TokenID                  *big.Int
	Owner                    common.Address
	Operator                 common.Address
	Nonce                    *big.Int
	Pool                     PoolKey
	TickLower                int32
	TickUpper                int32
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

func (p Position) hasLiquidity() bool {
	return p.Liquidity != nil && p.Liquidity.Sign() > 0
}

func (p Position) owesTokens() bool {
	return (p.TokensOwed0 != nil && p.TokensOwed0.Sign() > 0) ||
		(p.TokensOwed1 != nil && p.TokensOwed1.Sign() > 0)
}

// Status derives the lifecycle state.
func (p Position) Status() PositionStatus {
	switch {
	case p.hasLiquidity():
		return StatusActive
	case p.owesTokens():
		return StatusEmpty
	default:
		return StatusDrained
	}
}

// IsNoise reports positions with nothing left in them.
func (p Position) IsNoise() bool {
	return !p.hasLiquidity() && !p.owesTokens()
}

// Burnable reports whether burn would succeed on chain.
func (p Position) Burnable() bool {
	return p.IsNoise()
}

// InRange applies the half-open convention: tickLower <= tick < tickUpper.
func InRange(tick, tickLower, tickUpper int32) bool {
	return tickLower <= tick && tick < tickUpper
}
