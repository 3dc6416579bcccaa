package dex

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

const (
	MinSlippageBps uint32 = 10
	MaxSlippageBps uint32 = 500
	bpsDenominator        = 10_000
)

// Tuple arguments of the position manager. Field names follow the ABI component names.
type (
	MintParams struct {
		Token0         common.Address
		Token1         common.Address
		Fee            *big.Int
		TickLower      *big.Int
		TickUpper      *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Recipient      common.Address
		Deadline       *big.Int
	}

	IncreaseLiquidityParams struct {
		TokenId        *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Deadline       *big.Int
	}

	DecreaseLiquidityParams struct {
		TokenId    *big.Int
		Liquidity  *big.Int
		Amount0Min *big.Int
		Amount1Min *big.Int
		Deadline   *big.Int
	}

	CollectParams struct {
		TokenId    *big.Int
		Recipient  common.Address
		Amount0Max *big.Int
		Amount1Max *big.Int
	}
)

// MintRequest opens a new position. Token0 must sort before Token1.
type MintRequest struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	SlippageBps    uint32
	Recipient      common.Address
	Deadline       uint64
}

// IncreaseRequest adds liquidity to an existing position.
type IncreaseRequest struct {
	TokenID        *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	SlippageBps    uint32
	Deadline       uint64
}

// DecreaseRequest removes PercentageBps of a position's liquidity. SqrtPriceX96 is
// the current pool price used to estimate the amounts released.
type DecreaseRequest struct {
	Position      model.Position
	SqrtPriceX96  *big.Int
	PercentageBps uint32
	SlippageBps   uint32
	Deadline      uint64
}

// CloseRequest removes all liquidity, collects everything owed and optionally burns the NFT.
type CloseRequest struct {
	Position     model.Position
	SqrtPriceX96 *big.Int
	SlippageBps  uint32
	Recipient    common.Address
	Deadline     uint64
	Burn         bool
}

// CalldataBuilder validates write intents and encodes position manager calls.
// It never touches the network.
type CalldataBuilder struct {
	platform registry.PlatformConfig
	npmABI   abi.ABI
	now      func() time.Time
}

// BuilderOption configures a CalldataBuilder.
type BuilderOption func(*CalldataBuilder)

// WithClock overrides the clock used to reject expired deadlines.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *CalldataBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewCalldataBuilder binds a builder to one platform deployment.
func NewCalldataBuilder(platform registry.PlatformConfig, opts ...BuilderOption) (*CalldataBuilder, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	b := &CalldataBuilder{platform: platform, npmABI: parsed, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// MinAmount applies the slippage rule: floor(desired * (10000 - slippageBps) / 10000).
func MinAmount(desired *big.Int, slippageBps uint32) *big.Int {
	if desired == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(desired, big.NewInt(int64(bpsDenominator-slippageBps)))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

func (b *CalldataBuilder) checkSlippage(bps uint32) error {
	if bps < MinSlippageBps || bps > MaxSlippageBps {
		return fmt.Errorf("%w: %d bps not in [%d, %d]", model.ErrSlippageOutOfRange, bps, MinSlippageBps, MaxSlippageBps)
	}
	return nil
}

func (b *CalldataBuilder) checkDeadline(deadline uint64) error {
	now := b.now().Unix()
	if now < 0 || deadline <= uint64(now) {
		return fmt.Errorf("%w: %d <= now %d", model.ErrDeadlineInPast, deadline, now)
	}
	return nil
}

func checkAmounts(amount0, amount1 *big.Int) error {
	for _, a := range []*big.Int{amount0, amount1} {
		if a == nil {
			continue
		}
		if a.Sign() < 0 || a.BitLen() > 256 {
			return fmt.Errorf("%w: %s", model.ErrAmountOverflow, a)
		}
	}
	if (amount0 == nil || amount0.Sign() == 0) && (amount1 == nil || amount1.Sign() == 0) {
		return model.ErrAmountsZero
	}
	return nil
}

func checkTokenID(id *big.Int) error {
	if id == nil || id.Sign() <= 0 {
		return fmt.Errorf("%w: token id %v", model.ErrAmountsZero, id)
	}
	return nil
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

func (b *CalldataBuilder) tx(method string, args ...interface{}) (model.TxRequest, error) {
	data, err := b.npmABI.Pack(method, args...)
	if err != nil {
		return model.TxRequest{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return model.TxRequest{To: b.platform.PositionManager, Data: data, Value: new(big.Int)}, nil
}

// Mint encodes a new position.
func (b *CalldataBuilder) Mint(req MintRequest) (model.TxRequest, error) {
	if req.Token0 == req.Token1 {
		return model.TxRequest{}, fmt.Errorf("%w: %s", model.ErrSameToken, req.Token0.Hex())
	}
	if !model.SortsBefore(req.Token0, req.Token1) {
		return model.TxRequest{}, fmt.Errorf("%w: %s >= %s", model.ErrTokensUnordered, req.Token0.Hex(), req.Token1.Hex())
	}
	spacing, err := b.platform.TickSpacing(req.Fee)
	if err != nil {
		return model.TxRequest{}, err
	}
	if err := clmath.ValidateRange(req.TickLower, req.TickUpper, spacing); err != nil {
		return model.TxRequest{}, err
	}
	if err := b.checkSlippage(req.SlippageBps); err != nil {
		return model.TxRequest{}, err
	}
	if err := checkAmounts(req.Amount0Desired, req.Amount1Desired); err != nil {
		return model.TxRequest{}, err
	}
	if req.Recipient == (common.Address{}) {
		return model.TxRequest{}, model.ErrZeroRecipient
	}
	if err := b.checkDeadline(req.Deadline); err != nil {
		return model.TxRequest{}, err
	}

	return b.tx("mint", MintParams{
		Token0:         req.Token0,
		Token1:         req.Token1,
		Fee:            new(big.Int).SetUint64(uint64(req.Fee)),
		TickLower:      big.NewInt(int64(req.TickLower)),
		TickUpper:      big.NewInt(int64(req.TickUpper)),
		Amount0Desired: orZero(req.Amount0Desired),
		Amount1Desired: orZero(req.Amount1Desired),
		Amount0Min:     MinAmount(req.Amount0Desired, req.SlippageBps),
		Amount1Min:     MinAmount(req.Amount1Desired, req.SlippageBps),
		Recipient:      req.Recipient,
		Deadline:       new(big.Int).SetUint64(req.Deadline),
	})
}

// IncreaseLiquidity encodes adding to an existing position.
func (b *CalldataBuilder) IncreaseLiquidity(req IncreaseRequest) (model.TxRequest, error) {
	if err := checkTokenID(req.TokenID); err != nil {
		return model.TxRequest{}, err
	}
	if err := b.checkSlippage(req.SlippageBps); err != nil {
		return model.TxRequest{}, err
	}
	if err := checkAmounts(req.Amount0Desired, req.Amount1Desired); err != nil {
		return model.TxRequest{}, err
	}
	if err := b.checkDeadline(req.Deadline); err != nil {
		return model.TxRequest{}, err
	}

	return b.tx("increaseLiquidity", IncreaseLiquidityParams{
		TokenId:        new(big.Int).Set(req.TokenID),
		Amount0Desired: orZero(req.Amount0Desired),
		Amount1Desired: orZero(req.Amount1Desired),
		Amount0Min:     MinAmount(req.Amount0Desired, req.SlippageBps),
		Amount1Min:     MinAmount(req.Amount1Desired, req.SlippageBps),
		Deadline:       new(big.Int).SetUint64(req.Deadline),
	})
}

// decreaseParams validates a decrease and computes its liquidity delta and minimums.
func (b *CalldataBuilder) decreaseParams(req DecreaseRequest) (DecreaseLiquidityParams, error) {
	pos := req.Position
	if err := checkTokenID(pos.TokenID); err != nil {
		return DecreaseLiquidityParams{}, err
	}
	if req.PercentageBps < 1 || req.PercentageBps > bpsDenominator {
		return DecreaseLiquidityParams{}, fmt.Errorf("%w: %d bps not in [1, %d]", model.ErrPercentageOutOfRange, req.PercentageBps, bpsDenominator)
	}
	if err := b.checkSlippage(req.SlippageBps); err != nil {
		return DecreaseLiquidityParams{}, err
	}
	if err := b.checkDeadline(req.Deadline); err != nil {
		return DecreaseLiquidityParams{}, err
	}
	if req.SqrtPriceX96 == nil || req.SqrtPriceX96.Sign() <= 0 {
		return DecreaseLiquidityParams{}, fmt.Errorf("%w: missing pool sqrt price", model.ErrInvalidPrice)
	}

	delta := new(big.Int).Mul(orZero(pos.Liquidity), big.NewInt(int64(req.PercentageBps)))
	delta.Quo(delta, big.NewInt(bpsDenominator))
	if delta.Sign() == 0 {
		return DecreaseLiquidityParams{}, fmt.Errorf("%w: liquidity delta of token %s is zero", model.ErrAmountsZero, pos.TokenID)
	}
	amount0, amount1, err := clmath.AmountsForPosition(delta, pos.TickLower, pos.TickUpper, req.SqrtPriceX96)
	if err != nil {
		return DecreaseLiquidityParams{}, err
	}

	return DecreaseLiquidityParams{
		TokenId:    new(big.Int).Set(pos.TokenID),
		Liquidity:  delta,
		Amount0Min: MinAmount(amount0, req.SlippageBps),
		Amount1Min: MinAmount(amount1, req.SlippageBps),
		Deadline:   new(big.Int).SetUint64(req.Deadline),
	}, nil
}

// DecreaseLiquidity encodes removing a share of a position's liquidity.
func (b *CalldataBuilder) DecreaseLiquidity(req DecreaseRequest) (model.TxRequest, error) {
	params, err := b.decreaseParams(req)
	if err != nil {
		return model.TxRequest{}, err
	}
	return b.tx("decreaseLiquidity", params)
}

// Collect encodes collecting everything owed to recipient.
func (b *CalldataBuilder) Collect(tokenID *big.Int, recipient common.Address) (model.TxRequest, error) {
	if err := checkTokenID(tokenID); err != nil {
		return model.TxRequest{}, err
	}
	if recipient == (common.Address{}) {
		return model.TxRequest{}, model.ErrZeroRecipient
	}
	return b.tx("collect", CollectParams{
		TokenId:    new(big.Int).Set(tokenID),
		Recipient:  recipient,
		Amount0Max: new(big.Int).Set(clmath.MaxUint128),
		Amount1Max: new(big.Int).Set(clmath.MaxUint128),
	})
}

// Burn encodes burning an emptied position NFT.
func (b *CalldataBuilder) Burn(pos model.Position) (model.TxRequest, error) {
	if err := checkTokenID(pos.TokenID); err != nil {
		return model.TxRequest{}, err
	}
	if !pos.Burnable() {
		return model.TxRequest{}, fmt.Errorf("%w: token %s", model.ErrNotBurnable, pos.TokenID)
	}
	return b.tx("burn", new(big.Int).Set(pos.TokenID))
}

// Close encodes decrease(100%) + collect [+ burn]. On platforms with multicall the
// steps are wrapped in one atomic transaction; otherwise they are returned in the
// order they must be sent, each after the previous one is confirmed.
func (b *CalldataBuilder) Close(req CloseRequest) (model.ClosePlan, error) {
	pos := req.Position
	if err := checkTokenID(pos.TokenID); err != nil {
		return model.ClosePlan{}, err
	}
	if req.Recipient == (common.Address{}) {
		return model.ClosePlan{}, model.ErrZeroRecipient
	}

	var steps []model.TxRequest
	if pos.Liquidity != nil && pos.Liquidity.Sign() > 0 {
		tx, err := b.DecreaseLiquidity(DecreaseRequest{
			Position:      pos,
			SqrtPriceX96:  req.SqrtPriceX96,
			PercentageBps: bpsDenominator,
			SlippageBps:   req.SlippageBps,
			Deadline:      req.Deadline,
		})
		if err != nil {
			return model.ClosePlan{}, err
		}
		steps = append(steps, tx)
	} else if err := b.checkDeadline(req.Deadline); err != nil {
		return model.ClosePlan{}, err
	}

	collect, err := b.Collect(pos.TokenID, req.Recipient)
	if err != nil {
		return model.ClosePlan{}, err
	}
	steps = append(steps, collect)

	if req.Burn {
		burn, err := b.tx("burn", new(big.Int).Set(pos.TokenID))
		if err != nil {
			return model.ClosePlan{}, err
		}
		steps = append(steps, burn)
	}

	if !b.platform.SupportsMulticall || len(steps) < 2 {
		return model.ClosePlan{Transactions: steps, Atomic: len(steps) == 1, Burn: req.Burn}, nil
	}
	payload := make([][]byte, 0, len(steps))
	for _, step := range steps {
		payload = append(payload, step.Data)
	}
	multicall, err := b.tx("multicall", payload)
	if err != nil {
		return model.ClosePlan{}, err
	}
	return model.ClosePlan{Transactions: []model.TxRequest{multicall}, Atomic: true, Burn: req.Burn}, nil
}
