package clmath

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityDesk/internal/model"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is GetSqrtRatioAtTick(MinTick).
	MinSqrtRatio = mustBig("4295128739")
	// MaxSqrtRatio is GetSqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")

	Q96        = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128       = new(big.Int).Lsh(big.NewInt(1), 128)
	Q192       = new(big.Int).Lsh(big.NewInt(1), 192)
	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

var (
	u256Max  = new(uint256.Int).SetAllOne()
	u160Max  = uint256.MustFromHex("0xffffffffffffffffffffffffffffffffffffffff")
	oneLsh32 = new(uint256.Int).Lsh(uint256.NewInt(1), 32)

	// sqrt(1.0001^-(2^i)) in Q128 for i = 0..19. The first two entries are the
	// starting ratio for odd and even |tick|.
	sqrtRatioConsts = [21]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0x100000000000000000000000000000000"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("clmath: bad constant " + s)
	}
	return n
}

// GetSqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96, bit-exact with the on-chain TickMath library.
func GetSqrtRatioAtTick(tick int32) (*big.Int, error) {
	ratio, err := sqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return ratio.ToBig(), nil
}

func sqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", model.ErrTickOutOfRange, tick)
	}
	absTick := uint64(tick)
	if tick < 0 {
		absTick = uint64(-int64(tick))
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(sqrtRatioConsts[0])
	} else {
		ratio.Set(sqrtRatioConsts[1])
	}
	for i := 0; i < 19; i++ {
		if absTick&(uint64(1)<<(i+1)) != 0 {
			ratio.Mul(ratio, sqrtRatioConsts[i+2])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(u256Max, ratio)
	}

	// Q128 -> Q96, rounding up so the result is never below the true ratio.
	rem := new(uint256.Int).Mod(ratio, oneLsh32)
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio.And(ratio, u160Max), nil
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtPriceX96.
// The input must lie in [MinSqrtRatio, MaxSqrtRatio).
func GetTickAtSqrtRatio(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, fmt.Errorf("%w: %v", model.ErrSqrtPriceOutOfRange, sqrtPriceX96)
	}
	target, _ := uint256.FromBig(sqrtPriceX96)

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := sqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// UsableTickBounds returns the outermost ticks aligned to spacing.
func UsableTickBounds(spacing int32) (int32, int32) {
	if spacing <= 0 {
		return MinTick, MaxTick
	}
	return -(-MinTick / spacing * spacing), MaxTick / spacing * spacing
}

// AlignTick floors (or ceils) tick to a multiple of spacing, clamped to the usable range.
func AlignTick(tick, spacing int32, roundUp bool) int32 {
	if spacing <= 1 {
		return clampTick(tick, MinTick, MaxTick)
	}
	aligned := floorDiv(tick, spacing) * spacing
	if roundUp && aligned != tick {
		aligned += spacing
	}
	lo, hi := UsableTickBounds(spacing)
	return clampTick(aligned, lo, hi)
}

// NearestUsableTick rounds tick to the closest multiple of spacing, clamped to the usable range.
func NearestUsableTick(tick, spacing int32) int32 {
	if spacing <= 1 {
		return clampTick(tick, MinTick, MaxTick)
	}
	down := floorDiv(tick, spacing) * spacing
	nearest := down
	if tick-down >= spacing-(tick-down) {
		nearest = down + spacing
	}
	lo, hi := UsableTickBounds(spacing)
	return clampTick(nearest, lo, hi)
}

// ValidateRange checks bounds, alignment and ordering of a position range.
func ValidateRange(tickLower, tickUpper, spacing int32) error {
	for _, t := range []int32{tickLower, tickUpper} {
		if t < MinTick || t > MaxTick {
			return fmt.Errorf("%w: %d", model.ErrTickOutOfRange, t)
		}
		if spacing > 0 && t%spacing != 0 {
			return fmt.Errorf("%w: %d (spacing %d)", model.ErrTickUnaligned, t, spacing)
		}
	}
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: %d >= %d", model.ErrTickOrder, tickLower, tickUpper)
	}
	return nil
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clampTick(tick, lo, hi int32) int32 {
	if tick < lo {
		return lo
	}
	if tick > hi {
		return hi
	}
	return tick
}
