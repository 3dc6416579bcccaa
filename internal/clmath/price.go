package clmath

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"liquidityDesk/internal/model"
)

// PriceSigFigs is the number of significant figures kept when a price is rendered.
const PriceSigFigs = 18

var ten = big.NewInt(10)

func pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// RawPrice returns sqrtPriceX96^2 / 2^192: token1 per token0 in raw units.
func RawPrice(sqrtPriceX96 *big.Int) *big.Rat {
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return new(big.Rat).SetFrac(num, Q192)
}

// orient reports whether base is the pool's token0 and rejects same-token pairs.
func orient(base, quote model.Token) (bool, error) {
	if base.Address == quote.Address {
		return false, fmt.Errorf("%w: %s", model.ErrSameToken, base.Address.Hex())
	}
	return model.SortsBefore(base.Address, quote.Address), nil
}

// SqrtPriceToPrice converts a pool sqrt price into a human price of quote per base,
// applying decimal correction and sort orientation.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int, base, quote model.Token) (*big.Rat, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("%w: sqrt price %v", model.ErrInvalidPrice, sqrtPriceX96)
	}
	baseIsToken0, err := orient(base, quote)
	if err != nil {
		return nil, err
	}
	token0, token1 := base, quote
	if !baseIsToken0 {
		token0, token1 = quote, base
	}
	// token1 per token0 in whole units.
	human := RawPrice(sqrtPriceX96)
	human.Mul(human, new(big.Rat).SetFrac(pow10(int(token0.Decimals)), pow10(int(token1.Decimals))))
	if !baseIsToken0 {
		human.Inv(human)
	}
	return human, nil
}

// TickToPrice returns the human price of quote per base at tick.
func TickToPrice(tick int32, base, quote model.Token) (*big.Rat, error) {
	sqrt, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return SqrtPriceToPrice(sqrt, base, quote)
}

// PriceToSqrtRatio inverts SqrtPriceToPrice, flooring the square root.
func PriceToSqrtRatio(price *big.Rat, base, quote model.Token) (*big.Int, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPrice, price)
	}
	baseIsToken0, err := orient(base, quote)
	if err != nil {
		return nil, err
	}
	token0, token1 := base, quote
	raw := new(big.Rat).Set(price)
	if !baseIsToken0 {
		token0, token1 = quote, base
		raw.Inv(raw)
	}
	raw.Mul(raw, new(big.Rat).SetFrac(pow10(int(token1.Decimals)), pow10(int(token0.Decimals))))

	scaled := new(big.Int).Mul(raw.Num(), Q192)
	scaled.Quo(scaled, raw.Denom())
	return scaled.Sqrt(scaled), nil
}

// PriceToTick returns floor(log_1.0001(rawPrice)) for a human price of quote per base.
// Prices beyond the representable range clamp to MinTick or MaxTick.
func PriceToTick(price *big.Rat, base, quote model.Token) (int32, error) {
	sqrt, err := PriceToSqrtRatio(price, base, quote)
	if err != nil {
		return 0, err
	}
	switch {
	case sqrt.Cmp(MinSqrtRatio) < 0:
		return MinTick, nil
	case sqrt.Cmp(MaxSqrtRatio) >= 0:
		return MaxTick, nil
	}
	return GetTickAtSqrtRatio(sqrt)
}

// FormatRat renders r as a decimal string truncated to sigFigs significant figures.
func FormatRat(r *big.Rat, sigFigs int) string {
	if r == nil {
		return ""
	}
	if r.Sign() == 0 {
		return "0"
	}
	if sigFigs <= 0 {
		sigFigs = PriceSigFigs
	}
	num := new(big.Int).Abs(r.Num())
	den := r.Denom()

	// exponent e with 10^e <= |r| < 10^(e+1)
	e := len(num.String()) - len(den.String())
	if !ratAtLeastPow10(num, den, e) {
		e--
	}

	shift := sigFigs - 1 - e
	coef := new(big.Int)
	if shift >= 0 {
		coef.Mul(num, pow10(shift))
		coef.Quo(coef, den)
	} else {
		coef.Quo(num, new(big.Int).Mul(den, pow10(-shift)))
	}
	if r.Sign() < 0 {
		coef.Neg(coef)
	}
	return decimal.NewFromBigInt(coef, int32(-shift)).String()
}

// ratAtLeastPow10 reports num/den >= 10^e.
func ratAtLeastPow10(num, den *big.Int, e int) bool {
	if e >= 0 {
		return num.Cmp(new(big.Int).Mul(den, pow10(e))) >= 0
	}
	return new(big.Int).Mul(num, pow10(-e)).Cmp(den) >= 0
}

// FormatPrice renders a price with PriceSigFigs significant figures.
func FormatPrice(r *big.Rat) string {
	return FormatRat(r, PriceSigFigs)
}

// ParsePrice accepts decimal ("1834.25", "1e-6") or fractional ("3/2") notation.
func ParsePrice(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	var r *big.Rat
	if strings.Contains(s, "/") {
		parsed, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, fmt.Errorf("%w: %q", model.ErrInvalidPrice, s)
		}
		r = parsed
	} else {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidPrice, s, err)
		}
		r = d.Rat()
	}
	if r.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be positive", model.ErrInvalidPrice, s)
	}
	return r, nil
}
