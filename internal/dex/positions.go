package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

// PositionResult is one entry of an enumeration. Err marks an id (or an index,
// when the id itself could not be read) whose data is missing.
type PositionResult struct {
	Index    int
	TokenID  *big.Int
	Position model.Position
	Status   model.PositionStatus
	Err      error
}

// Ref names the entry for error reporting.
func (r PositionResult) Ref() string {
	if r.TokenID != nil {
		return "token " + r.TokenID.String()
	}
	return fmt.Sprintf("index %d", r.Index)
}

// PositionReader enumerates and reads position NFTs from a position manager.
type PositionReader struct {
	reader    chain.Reader
	platform  registry.PlatformConfig
	chainID   uint64
	npmABI    abi.ABI
	batchSize int
	logger    *zap.Logger
}

// NewPositionReader binds a reader to one platform's position manager.
func NewPositionReader(reader chain.Reader, platform registry.PlatformConfig, batchSize int, logger *zap.Logger) (*PositionReader, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	if batchSize <= 0 {
		batchSize = chain.DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionReader{
		reader:    reader,
		platform:  platform,
		chainID:   reader.ChainID(),
		npmABI:    parsed,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// BalanceOf returns the number of position NFTs held by holder.
func (r *PositionReader) BalanceOf(ctx context.Context, holder common.Address, block uint64) (*big.Int, error) {
	call, err := packCall(r.npmABI, r.platform.PositionManager, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	data, err := r.reader.Call(ctx, call, block)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", holder.Hex(), err)
	}
	values, err := unpackResult(r.npmABI, "balanceOf", chain.CallResult{Data: data})
	if err != nil {
		return nil, err
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return nil, malformed("balanceOf", err)
	}
	return balance, nil
}

// Enumerate lists the holder's positions at block. Positions with no liquidity
// and nothing owed are dropped; per-position failures are returned in place.
func (r *PositionReader) Enumerate(ctx context.Context, holder common.Address, block uint64) ([]PositionResult, error) {
	npm := r.platform.PositionManager
	balance, err := r.BalanceOf(ctx, holder, block)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, nil
	}
	if !balance.IsInt64() || balance.Int64() > 1<<20 {
		return nil, fmt.Errorf("%w: implausible balance %s", model.ErrMalformedReturn, balance)
	}
	count := int(balance.Int64())

	results := make([]PositionResult, count)
	ids := make([]*big.Int, 0, count)
	idIndex := make([]int, 0, count)

	ranges, err := chain.SplitRange(0, uint64(count-1), uint64(r.batchSize))
	if err != nil {
		return nil, err
	}
	for _, rg := range ranges {
		calls := make([]chain.Call, 0, rg.Len())
		for i := rg.From; i <= rg.To; i++ {
			call, err := packCall(r.npmABI, npm, "tokenOfOwnerByIndex", holder, new(big.Int).SetUint64(i))
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
		}
		batch, err := r.reader.BatchCall(ctx, calls, block)
		if err != nil {
			return nil, fmt.Errorf("tokenOfOwnerByIndex batch: %w", err)
		}
		for j, res := range batch {
			idx := int(rg.From) + j
			results[idx].Index = idx
			values, err := unpackResult(r.npmABI, "tokenOfOwnerByIndex", res)
			if err == nil {
				var id *big.Int
				if id, err = asBigInt(values[0]); err == nil {
					results[idx].TokenID = id
					ids = append(ids, id)
					idIndex = append(idIndex, idx)
					continue
				}
			}
			results[idx].Err = err
		}
	}

	positions, err := r.readPositions(ctx, holder, ids, block)
	if err != nil {
		return nil, err
	}
	for k, res := range positions {
		results[idIndex[k]] = res
		results[idIndex[k]].Index = idIndex[k]
	}

	out := make([]PositionResult, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			r.logger.Warn("position read failed",
				zap.Uint64("chain_id", r.chainID),
				zap.String("platform", string(r.platform.ID)),
				zap.String("ref", res.Ref()),
				zap.Error(res.Err),
			)
			out = append(out, res)
			continue
		}
		if res.Position.IsNoise() {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *PositionReader) readPositions(ctx context.Context, owner common.Address, ids []*big.Int, block uint64) ([]PositionResult, error) {
	out := make([]PositionResult, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ranges, err := chain.SplitRange(0, uint64(len(ids)-1), uint64(r.batchSize))
	if err != nil {
		return nil, err
	}
	for _, rg := range ranges {
		calls := make([]chain.Call, 0, rg.Len())
		for i := rg.From; i <= rg.To; i++ {
			call, err := packCall(r.npmABI, r.platform.PositionManager, "positions", ids[i])
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
		}
		batch, err := r.reader.BatchCall(ctx, calls, block)
		if err != nil {
			return nil, fmt.Errorf("positions batch: %w", err)
		}
		for j, res := range batch {
			idx := int(rg.From) + j
			out[idx].TokenID = ids[idx]
			values, err := unpackResult(r.npmABI, "positions", res)
			if err != nil {
				out[idx].Err = err
				continue
			}
			pos, err := r.decodePosition(ids[idx], owner, values)
			if err != nil {
				out[idx].Err = err
				continue
			}
			out[idx].Position = pos
			out[idx].Status = pos.Status()
		}
	}
	return out, nil
}

// Position reads a single position by id. A burned id yields StatusBurned and no error.
func (r *PositionReader) Position(ctx context.Context, tokenID *big.Int, block uint64) (PositionResult, error) {
	npm := r.platform.PositionManager
	ownerCall, err := packCall(r.npmABI, npm, "ownerOf", tokenID)
	if err != nil {
		return PositionResult{}, err
	}
	posCall, err := packCall(r.npmABI, npm, "positions", tokenID)
	if err != nil {
		return PositionResult{}, err
	}
	batch, err := r.reader.BatchCall(ctx, []chain.Call{ownerCall, posCall}, block)
	if err != nil {
		return PositionResult{}, fmt.Errorf("position %s: %w", tokenID, err)
	}
	if len(batch) != 2 {
		return PositionResult{}, fmt.Errorf("%w: expected 2 results, got %d", model.ErrMalformedReturn, len(batch))
	}

	result := PositionResult{TokenID: tokenID}
	if isMissingToken(batch[0].Err) {
		result.Status = model.StatusBurned
		result.Position = model.Position{TokenID: tokenID}
		return result, nil
	}
	values, err := unpackResult(r.npmABI, "ownerOf", batch[0])
	if err != nil {
		return PositionResult{}, fmt.Errorf("position %s: %w", tokenID, err)
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return PositionResult{}, malformed("ownerOf", err)
	}
	values, err = unpackResult(r.npmABI, "positions", batch[1])
	if err != nil {
		return PositionResult{}, fmt.Errorf("position %s: %w", tokenID, err)
	}
	pos, err := r.decodePosition(tokenID, owner, values)
	if err != nil {
		return PositionResult{}, err
	}
	result.Position = pos
	result.Status = pos.Status()
	return result, nil
}

// isMissingToken reports the position manager's revert for unknown or burned ids.
func isMissingToken(err error) bool {
	if err == nil || !errors.Is(err, model.ErrReverted) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid token id") || strings.Contains(msg, "nonexistent token")
}

func (r *PositionReader) decodePosition(tokenID *big.Int, owner common.Address, values []interface{}) (model.Position, error) {
	if len(values) < 12 {
		return model.Position{}, fmt.Errorf("%w: positions(%s) has %d fields", model.ErrMalformedReturn, tokenID, len(values))
	}
	nonce, err := asBigInt(values[0])
	if err != nil {
		return model.Position{}, malformed("positions.nonce", err)
	}
	operator, err := asAddress(values[1])
	if err != nil {
		return model.Position{}, malformed("positions.operator", err)
	}
	token0, err := asAddress(values[2])
	if err != nil {
		return model.Position{}, malformed("positions.token0", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.Position{}, malformed("positions.token1", err)
	}
	fee, err := asUint24(values[4])
	if err != nil {
		return model.Position{}, malformed("positions.fee", err)
	}
	tickLower, err := asInt24(values[5])
	if err != nil {
		return model.Position{}, malformed("positions.tickLower", err)
	}
	tickUpper, err := asInt24(values[6])
	if err != nil {
		return model.Position{}, malformed("positions.tickUpper", err)
	}
	ints := make([]*big.Int, 0, 5)
	for i, field := range []string{"liquidity", "feeGrowthInside0LastX128", "feeGrowthInside1LastX128", "tokensOwed0", "tokensOwed1"} {
		n, err := asBigInt(values[7+i])
		if err != nil {
			return model.Position{}, malformed("positions."+field, err)
		}
		ints = append(ints, n)
	}
	key, err := model.NewPoolKey(r.platform.ID, r.chainID, token0, token1, fee)
	if err != nil {
		return model.Position{}, fmt.Errorf("%w: position %s: %w", model.ErrMalformedReturn, tokenID, err)
	}
	if key.Token0 != token0 {
		return model.Position{}, fmt.Errorf("%w: position %s tokens out of order", model.ErrMalformedReturn, tokenID)
	}

	return model.Position{
		TokenID:                  new(big.Int).Set(tokenID),
		Owner:                    owner,
		Operator:                 operator,
		Nonce:                    nonce,
		Pool:                     key,
		TickLower:                tickLower,
		TickUpper:                tickUpper,
		Liquidity:                ints[0],
		FeeGrowthInside0LastX128: ints[1],
		FeeGrowthInside1LastX128: ints[2],
		TokensOwed0:              ints[3],
		TokensOwed1:              ints[4],
	}, nil
}
