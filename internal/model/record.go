package model

import (
	"encoding/json"
)

// PositionRecord is the flattened, storage-friendly form of one position snapshot.
// Integers wider than 64 bits are carried as decimal strings.
type PositionRecord struct {
	ChainID      uint64 `json:"chain_id"`
	Platform     string `json:"platform"`
	BlockNumber  uint64 `json:"block_number"`
	BlockTime    string `json:"block_time,omitempty"`
	Holder       string `json:"holder"`
	InVault      bool   `json:"in_vault"`
	TokenID      string `json:"token_id"`
	Pool         string `json:"pool"`
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Symbol0      string `json:"symbol0"`
	Symbol1      string `json:"symbol1"`
	Fee          uint32 `json:"fee"`
	TickLower    int32  `json:"tick_lower"`
	TickUpper    int32  `json:"tick_upper"`
	Tick         int32  `json:"tick"`
	Liquidity    string `json:"liquidity"`
	Status       string `json:"status"`
	InRange      bool   `json:"in_range"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	Fees0        string `json:"fees0"`
	Fees1        string `json:"fees1"`
	PriceLower   string `json:"price_lower"`
	PriceUpper   string `json:"price_upper"`
	PriceCurrent string `json:"price_current"`
	Error        string `json:"error,omitempty"`
	CapturedAt   string `json:"captured_at"`
}

// MarshalJSON ensures PositionRecord is encoded with stable field names.
func (r PositionRecord) MarshalJSON() ([]byte, error) {
	type Alias PositionRecord
	return json.Marshal(Alias(r))
}

// UnmarshalJSON decodes a PositionRecord from JSON.
func (r *PositionRecord) UnmarshalJSON(data []byte) error {
	type Alias PositionRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = PositionRecord(a)
	return nil
}

// PoolRecord represents pool metadata for storage.
type PoolRecord struct {
	ChainID        uint64 `json:"chain_id"`
	Platform       string `json:"platform"`
	Address        string `json:"address"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Fee            uint32 `json:"fee"`
	TickSpacing    int32  `json:"tick_spacing"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}
