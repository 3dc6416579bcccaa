package dex_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/dex/dextest"
	"liquidityDesk/internal/model"
)

func TestFetchToken(t *testing.T) {
	c := dextest.New(1, 10)
	c.SetToken(usdc, dextest.Token{Decimals: 6, Symbol: "USDC", Name: "USD Coin"})

	token, err := dex.FetchToken(context.Background(), c, usdc, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Token{ChainID: 1, Address: usdc, Decimals: 6, Symbol: "USDC", Name: "USD Coin"}, token)
	assert.Equal(t, 1, c.Batches())
}

func TestFetchTokenBytes32(t *testing.T) {
	mkr := common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	c := dextest.New(1, 10)
	c.SetToken(mkr, dextest.Token{Decimals: 18, Symbol: "MKR", Name: "Maker", Bytes32: true})

	token, err := dex.FetchToken(context.Background(), c, mkr, nil)
	require.NoError(t, err)
	assert.Equal(t, "MKR", token.Symbol)
	assert.Equal(t, "Maker", token.Name)
	assert.Equal(t, uint8(18), token.Decimals)
}

func TestFetchTokenWithoutCode(t *testing.T) {
	c := dextest.New(1, 10)
	_, err := dex.FetchToken(context.Background(), c, common.HexToAddress("0x1234"), nil)
	assert.ErrorIs(t, err, model.ErrMalformedReturn)
}

func TestTokenCacheResolve(t *testing.T) {
	c := dextest.New(1, 10)
	c.SetToken(weth, dextest.Token{Decimals: 18, Symbol: "WETH", Name: "Wrapped Ether"})
	cache := dex.NewTokenCache(model.Token{ChainID: 1, Address: usdc, Decimals: 6, Symbol: "USDC"})

	token, err := cache.Resolve(context.Background(), c, usdc, nil)
	require.NoError(t, err)
	assert.Equal(t, "USDC", token.Symbol)
	assert.Zero(t, c.Batches())

	token, err = cache.Resolve(context.Background(), c, weth, nil)
	require.NoError(t, err)
	assert.Equal(t, "WETH", token.Symbol)
	_, err = cache.Resolve(context.Background(), c, weth, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Batches())
}
