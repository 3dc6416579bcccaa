package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/model"
)

const (
	ChainEthereum uint64 = 1
	ChainOptimism uint64 = 10
	ChainBSC      uint64 = 56
	ChainPolygon  uint64 = 137
	ChainBase     uint64 = 8453
	ChainArbitrum uint64 = 42161
)

var (
	uniswapV3InitCodeHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")
	pancakeV3InitCodeHash = common.HexToHash("0x6ce8eb472fa82df5469c6ab6d485f17c3ad13c8cd7af59b3d4a8026c5ce0f7e2")
	uniswapV3Factory      = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	uniswapV3PositionMgr  = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	pancakeV3Factory      = common.HexToAddress("0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865")
	pancakeV3PoolDeployer = common.HexToAddress("0x41ff9AA7e16B8B1a8a8dc4f0eFacd93D02d071c9")
	pancakeV3PositionMgr  = common.HexToAddress("0x46A15B0b27311cedF172AB29E4f4766fbE7F4364")
	wrappedEtherOPStack   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	uniswapV3TickSpacing  = map[uint32]int32{100: 1, 500: 10, 3000: 60, 10000: 200}
	pancakeV3TickSpacing  = map[uint32]int32{100: 1, 500: 10, 2500: 50, 10000: 200}
)

func uniswapV3(factory, positionManager common.Address) PlatformConfig {
	return PlatformConfig{
		ID:                model.PlatformUniswapV3,
		Name:              "Uniswap V3",
		Factory:           factory,
		PositionManager:   positionManager,
		InitCodeHash:      uniswapV3InitCodeHash,
		TickSpacingByFee:  copySpacing(uniswapV3TickSpacing),
		SupportsMulticall: true,
	}
}

func pancakeV3() PlatformConfig {
	return PlatformConfig{
		ID:                model.PlatformPancakeSwapV3,
		Name:              "PancakeSwap V3",
		Factory:           pancakeV3Factory,
		Deployer:          pancakeV3PoolDeployer,
		PositionManager:   pancakeV3PositionMgr,
		InitCodeHash:      pancakeV3InitCodeHash,
		TickSpacingByFee:  copySpacing(pancakeV3TickSpacing),
		SupportsMulticall: true,
	}
}

func copySpacing(in map[uint32]int32) map[uint32]int32 {
	out := make(map[uint32]int32, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func tokens(chainID uint64, list ...model.Token) map[string]model.Token {
	out := make(map[string]model.Token, len(list))
	for _, t := range list {
		t.ChainID = chainID
		out[t.Symbol] = t
	}
	return out
}

func tok(symbol, name, addr string, decimals uint8) model.Token {
	return model.Token{Address: common.HexToAddress(addr), Decimals: decimals, Symbol: symbol, Name: name}
}

func platforms(list ...PlatformConfig) map[model.PlatformID]PlatformConfig {
	out := make(map[model.PlatformID]PlatformConfig, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out
}

func builtinChains() []ChainConfig {
	return []ChainConfig{
		{
			ChainID: ChainEthereum,
			Name:    "Ethereum",
			Platforms: platforms(
				uniswapV3(uniswapV3Factory, uniswapV3PositionMgr),
				pancakeV3(),
			),
			Tokens: tokens(ChainEthereum,
				tok("USDC", "USD Coin", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6),
				tok("WETH", "Wrapped Ether", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18),
				tok("USDT", "Tether USD", "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6),
				tok("WBTC", "Wrapped BTC", "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", 8),
				tok("DAI", "Dai Stablecoin", "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18),
			),
			RPCEndpoints: []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth", "https://cloudflare-eth.com"},
			ExplorerURL:  "https://etherscan.io",
		},
		{
			ChainID:   ChainOptimism,
			Name:      "Optimism",
			Platforms: platforms(uniswapV3(uniswapV3Factory, uniswapV3PositionMgr)),
			Tokens: tokens(ChainOptimism,
				model.Token{Address: wrappedEtherOPStack, Decimals: 18, Symbol: "WETH", Name: "Wrapped Ether"},
				tok("USDC", "USD Coin", "0x0b2C639c533813f4Aa9D7837cAf62653d097Ff85", 6),
			),
			RPCEndpoints: []string{"https://mainnet.optimism.io"},
			ExplorerURL:  "https://optimistic.etherscan.io",
		},
		{
			ChainID: ChainBSC,
			Name:    "BNB Chain",
			Platforms: platforms(
				uniswapV3(
					common.HexToAddress("0xdB1d10011AD0Ff90774D0C6Bb92e5C5c8b4461F7"),
					common.HexToAddress("0x7b8A01B39D58278b5DE7e48c8449c9f4F5170613"),
				),
				pancakeV3(),
			),
			Tokens: tokens(ChainBSC,
				tok("WBNB", "Wrapped BNB", "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", 18),
				tok("USDT", "Tether USD", "0x55d398326f99059fF775485246999027B3197955", 18),
				tok("USDC", "USD Coin", "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", 18),
			),
			RPCEndpoints: []string{"https://bsc-dataseed.bnbchain.org"},
			ExplorerURL:  "https://bscscan.com",
		},
		{
			ChainID:   ChainPolygon,
			Name:      "Polygon",
			Platforms: platforms(uniswapV3(uniswapV3Factory, uniswapV3PositionMgr)),
			Tokens: tokens(ChainPolygon,
				tok("WMATIC", "Wrapped Matic", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", 18),
				tok("USDC", "USD Coin", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", 6),
				tok("WETH", "Wrapped Ether", "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", 18),
			),
			RPCEndpoints: []string{"https://polygon-rpc.com"},
			ExplorerURL:  "https://polygonscan.com",
		},
		{
			ChainID: ChainBase,
			Name:    "Base",
			Platforms: platforms(uniswapV3(
				common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
				common.HexToAddress("0x03a520b32C04BF3bEEf7BEb72E919cf822Ed34f1"),
			)),
			Tokens: tokens(ChainBase,
				model.Token{Address: wrappedEtherOPStack, Decimals: 18, Symbol: "WETH", Name: "Wrapped Ether"},
				tok("USDC", "USD Coin", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", 6),
			),
			RPCEndpoints: []string{"https://mainnet.base.org"},
			ExplorerURL:  "https://basescan.org",
		},
		{
			ChainID:   ChainArbitrum,
			Name:      "Arbitrum One",
			Platforms: platforms(uniswapV3(uniswapV3Factory, uniswapV3PositionMgr)),
			Tokens: tokens(ChainArbitrum,
				tok("WETH", "Wrapped Ether", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", 18),
				tok("USDC", "USD Coin", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", 6),
				tok("ARB", "Arbitrum", "0x912CE59144191C1204E64559FE8253a0e49E6548", 18),
			),
			RPCEndpoints: []string{"https://arb1.arbitrum.io/rpc"},
			ExplorerURL:  "https://arbiscan.io",
		},
	}
}
