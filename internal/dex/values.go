package dex

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
)

func packCall(parsed abi.ABI, to common.Address, method string, args ...interface{}) (chain.Call, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return chain.Call{To: to, Data: data}, nil
}

func unpackResult(parsed abi.ABI, method string, res chain.CallResult) ([]interface{}, error) {
	if res.Err != nil {
		return nil, fmt.Errorf("call %s: %w", method, res.Err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("%w: %s returned no data", model.ErrMalformedReturn, method)
	}
	values, err := parsed.Unpack(method, res.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %w", model.ErrMalformedReturn, method, err)
	}
	return values, nil
}

func malformed(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrMalformedReturn, field, err)
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}

func asInt24(value interface{}) (int32, error) {
	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	return int24FromBig(n)
}

func asUint24(value interface{}) (uint32, error) {
	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || n.Cmp(big.NewInt(1<<24)) >= 0 {
		return 0, fmt.Errorf("uint24 overflow: %s", n)
	}
	return uint32(n.Uint64()), nil
}
