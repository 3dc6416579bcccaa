package model

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

// Token captures ERC20 identity and metadata. Identity is (ChainID, Address).
type Token struct {
	ChainID  uint64         `json:"chain_id"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
}

// SameAs reports whether both tokens refer to the same contract on the same chain.
func (t Token) SameAs(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// Label returns the symbol, falling back to the address.
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// SortsBefore reports whether a sorts before b in pool token order.
func SortsBefore(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// SortTokens returns the pair in canonical pool order.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if SortsBefore(b, a) {
		return b, a
	}
	return a, b
}
