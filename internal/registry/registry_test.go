package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/model"
)

func TestDefaultRegistryChains(t *testing.T) {
	reg := Default()
	assert.Equal(t, []uint64{1, 10, 56, 137, 8453, 42161}, reg.ChainIDs())

	eth, err := reg.Chain(ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, []model.PlatformID{model.PlatformPancakeSwapV3, model.PlatformUniswapV3}, eth.PlatformIDs())
	assert.False(t, eth.AutomationEnabled())
	assert.NotEmpty(t, eth.RPCEndpoints)

	usdc, ok := eth.TokenBySymbol("usdc")
	require.True(t, ok)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.Equal(t, uint64(1), usdc.ChainID)

	byAddr, ok := eth.TokenByAddress(common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"))
	require.True(t, ok)
	assert.Equal(t, "WETH", byAddr.Symbol)
}

func TestPlatformLookup(t *testing.T) {
	reg := Default()

	uni, err := reg.Platform(model.PlatformUniswapV3, ChainArbitrum)
	require.NoError(t, err)
	assert.Equal(t, uni.Factory, uni.PoolDeployer())
	spacing, err := uni.TickSpacing(3000)
	require.NoError(t, err)
	assert.Equal(t, int32(60), spacing)
	assert.Equal(t, []uint32{100, 500, 3000, 10000}, uni.FeeTiers())

	_, err = uni.TickSpacing(2500)
	assert.ErrorIs(t, err, model.ErrUnsupportedFeeTier)

	cake, err := reg.Platform(model.PlatformPancakeSwapV3, ChainBSC)
	require.NoError(t, err)
	assert.NotEqual(t, cake.Factory, cake.PoolDeployer())
	spacing, err = cake.TickSpacing(2500)
	require.NoError(t, err)
	assert.Equal(t, int32(50), spacing)

	_, err = reg.Platform(model.PlatformPancakeSwapV3, ChainArbitrum)
	assert.ErrorIs(t, err, model.ErrUnsupportedPlatform)
	assert.Equal(t, model.KindConfig, model.KindOf(err))

	_, err = reg.Platform(model.PlatformUniswapV3, 999)
	assert.ErrorIs(t, err, model.ErrUnsupportedPlatform)
	assert.ErrorIs(t, err, model.ErrUnknownChain)

	_, err = reg.Chain(999)
	assert.ErrorIs(t, err, model.ErrUnknownChain)
}

func TestWithOverrides(t *testing.T) {
	reg := Default()
	executor := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	next, err := reg.WithOverrides(ChainBase, []string{"http://localhost:8545"}, &executor)
	require.NoError(t, err)

	base, err := next.Chain(ChainBase)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:8545"}, base.RPCEndpoints)
	require.True(t, base.AutomationEnabled())
	assert.Equal(t, executor, *base.ExecutorAddress)

	// the process-wide registry is untouched
	orig, err := reg.Chain(ChainBase)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://mainnet.base.org"}, orig.RPCEndpoints)
	assert.Nil(t, orig.ExecutorAddress)

	_, err = reg.WithOverrides(999, nil, nil)
	assert.ErrorIs(t, err, model.ErrUnknownChain)
}

func TestNewRejectsMissingInitCodeHash(t *testing.T) {
	_, err := New(ChainConfig{
		ChainID: 5,
		Platforms: map[model.PlatformID]PlatformConfig{
			model.PlatformUniswapV3: {
				ID:               model.PlatformUniswapV3,
				TickSpacingByFee: map[uint32]int32{3000: 60},
			},
		},
	})
	assert.ErrorIs(t, err, model.ErrMissingInitCodeHash)

	_, err = New(ChainConfig{ChainID: 5}, ChainConfig{ChainID: 5})
	assert.Error(t, err)
}
