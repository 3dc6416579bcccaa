package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

var poolSaltArgs = mustArguments("address", "address", "uint24")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, name := range types {
		typ, err := abi.NewType(name, "", nil)
		if err != nil {
			panic(fmt.Sprintf("dex: abi type %s: %v", name, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// ComputePoolAddress derives the CREATE2 address of the pool for an unordered
// token pair. deployer is the contract that deploys pools.
func ComputePoolAddress(deployer, tokenA, tokenB common.Address, fee uint32, initCodeHash common.Hash) (common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, fmt.Errorf("%w: %s", model.ErrSameToken, tokenA.Hex())
	}
	token0, token1 := model.SortTokens(tokenA, tokenB)
	encoded, err := poolSaltArgs.Pack(token0, token1, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("encode pool salt: %w", err)
	}
	salt := crypto.Keccak256(encoded)
	return crypto.CreateAddress2(deployer, common.BytesToHash(salt), initCodeHash.Bytes()), nil
}

// DerivePoolAddress looks the platform up in the registry and derives the pool address.
func DerivePoolAddress(reg *registry.Registry, platform model.PlatformID, chainID uint64, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	cfg, err := reg.Platform(platform, chainID)
	if err != nil {
		return common.Address{}, err
	}
	return PoolAddressFor(cfg, tokenA, tokenB, fee)
}

// PoolAddressFor derives a pool address from resolved platform constants.
func PoolAddressFor(cfg registry.PlatformConfig, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	if cfg.InitCodeHash == (common.Hash{}) {
		return common.Address{}, fmt.Errorf("%w: %s", model.ErrMissingInitCodeHash, cfg.ID)
	}
	if _, err := cfg.TickSpacing(fee); err != nil {
		return common.Address{}, err
	}
	return ComputePoolAddress(cfg.PoolDeployer(), tokenA, tokenB, fee, cfg.InitCodeHash)
}
