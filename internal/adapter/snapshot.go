package adapter

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/model"
)

// PoolView is a pool's configuration together with its state at one block.
type PoolView struct {
	Address     common.Address
	Key         model.PoolKey
	TickSpacing int32
	Token0      model.Token
	Token1      model.Token
	State       model.PoolState
}

// Price returns the pool price as quote per base. Both tokens must belong to the pool.
func (p PoolView) Price(base, quote model.Token) (*big.Rat, error) {
	for _, token := range []model.Token{base, quote} {
		if !token.SameAs(p.Token0) && !token.SameAs(p.Token1) {
			return nil, fmt.Errorf("%w: %s is not in pool %s", model.ErrUnknownToken, token.Label(), p.Address.Hex())
		}
	}
	return clmath.SqrtPriceToPrice(p.State.SqrtPriceX96, base, quote)
}

// PositionView is a position with everything derived for display. Err marks a
// position whose data is incomplete; the remaining fields are best effort.
type PositionView struct {
	Holder   common.Address
	Position model.Position
	Status   model.PositionStatus
	Pool     common.Address
	Token0   model.Token
	Token1   model.Token
	Tick     int32
	InRange  bool
	Amount0  *big.Int
	Amount1  *big.Int
	Fees0    *big.Int
	Fees1    *big.Int
	Err      error

	SqrtPriceX96 *big.Int
}

// Ref names the view for error reporting.
func (v PositionView) Ref() string {
	if v.Position.TokenID != nil {
		return "token " + v.Position.TokenID.String()
	}
	return "holder " + v.Holder.Hex()
}

// Snapshot is the published result of one refresh. Every read in it was made
// at BlockNumber.
type Snapshot struct {
	Epoch       uint64
	ChainID     uint64
	Platform    model.PlatformID
	BlockNumber uint64
	BlockTime   time.Time
	CapturedAt  time.Time
	Positions   []PositionView
	Pools       []PoolView
	Failures    []model.ItemFailure
}

// Partial reports whether any read or derivation failed.
func (s *Snapshot) Partial() bool {
	return len(s.Failures) > 0
}

// Err returns a *model.PartialError when the snapshot is partial.
func (s *Snapshot) Err() error {
	if !s.Partial() {
		return nil
	}
	return &model.PartialError{Failures: s.Failures}
}

// Records flattens the snapshot for storage. inVault tags holders that are known
// vault contracts and may be nil.
func (s *Snapshot) Records(inVault func(common.Address) bool) []model.PositionRecord {
	captured := s.CapturedAt.UTC().Format(time.RFC3339)
	var blockTime string
	if !s.BlockTime.IsZero() {
		blockTime = s.BlockTime.UTC().Format(time.RFC3339)
	}
	out := make([]model.PositionRecord, 0, len(s.Positions))
	for _, v := range s.Positions {
		rec := model.PositionRecord{
			ChainID:     s.ChainID,
			Platform:    string(s.Platform),
			BlockNumber: s.BlockNumber,
			BlockTime:   blockTime,
			Holder:      v.Holder.Hex(),
			InVault:     inVault != nil && inVault(v.Holder),
			Status:      string(v.Status),
			CapturedAt:  captured,
		}
		if v.Position.TokenID != nil {
			rec.TokenID = v.Position.TokenID.String()
		}
		if v.Err != nil {
			rec.Error = v.Err.Error()
		}
		if v.Pool != (common.Address{}) {
			rec.Pool = v.Pool.Hex()
		}
		key := v.Position.Pool
		if key.Token0 != (common.Address{}) {
			rec.Token0 = key.Token0.Hex()
			rec.Token1 = key.Token1.Hex()
			rec.Symbol0 = v.Token0.Symbol
			rec.Symbol1 = v.Token1.Symbol
			rec.Fee = key.Fee
			rec.TickLower = v.Position.TickLower
			rec.TickUpper = v.Position.TickUpper
		}
		rec.Tick = v.Tick
		rec.InRange = v.InRange
		rec.Liquidity = model.BigString(v.Position.Liquidity)
		rec.Amount0 = model.FormatUnits(v.Amount0, v.Token0.Decimals)
		rec.Amount1 = model.FormatUnits(v.Amount1, v.Token1.Decimals)
		rec.Fees0 = model.FormatUnits(v.Fees0, v.Token0.Decimals)
		rec.Fees1 = model.FormatUnits(v.Fees1, v.Token1.Decimals)
		if v.Err == nil && v.Status != model.StatusBurned {
			rec.PriceLower = tickPrice(v.Position.TickLower, v.Token0, v.Token1)
			rec.PriceUpper = tickPrice(v.Position.TickUpper, v.Token0, v.Token1)
			rec.PriceCurrent = currentPrice(v.SqrtPriceX96, v.Token0, v.Token1)
		}
		out = append(out, rec)
	}
	return out
}

// PoolRecords lists the pools touched by the snapshot.
func (s *Snapshot) PoolRecords() []model.PoolRecord {
	out := make([]model.PoolRecord, 0, len(s.Pools))
	for _, p := range s.Pools {
		out = append(out, model.PoolRecord{
			ChainID:        s.ChainID,
			Platform:       string(s.Platform),
			Address:        p.Address.Hex(),
			Token0:         p.Key.Token0.Hex(),
			Token1:         p.Key.Token1.Hex(),
			Fee:            p.Key.Fee,
			TickSpacing:    p.TickSpacing,
			FirstSeenBlock: s.BlockNumber,
		})
	}
	return out
}

func currentPrice(sqrtPriceX96 *big.Int, token0, token1 model.Token) string {
	price, err := clmath.SqrtPriceToPrice(sqrtPriceX96, token0, token1)
	if err != nil {
		return ""
	}
	return clmath.FormatPrice(price)
}

func tickPrice(tick int32, token0, token1 model.Token) string {
	price, err := clmath.TickToPrice(tick, token0, token1)
	if err != nil {
		return ""
	}
	return clmath.FormatPrice(price)
}
