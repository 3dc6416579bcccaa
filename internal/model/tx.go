package model

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxRequest is unsigned calldata for an external signer to submit.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

type txRequestJSON struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

// MarshalJSON encodes the request in the shape wallets expect.
func (tx TxRequest) MarshalJSON() ([]byte, error) {
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	return json.Marshal(txRequestJSON{
		To:    tx.To,
		Data:  tx.Data,
		Value: (*hexutil.Big)(value),
	})
}

// UnmarshalJSON decodes a request produced by MarshalJSON.
func (tx *TxRequest) UnmarshalJSON(data []byte) error {
	var raw txRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tx.To = raw.To
	tx.Data = raw.Data
	tx.Value = new(big.Int)
	if raw.Value != nil {
		tx.Value = raw.Value.ToInt()
	}
	return nil
}

// ClosePlan is the calldata that closes a position. When Atomic is set the plan
// holds a single multicall; otherwise every transaction must be confirmed before
// the next one is sent.
type ClosePlan struct {
	Transactions []TxRequest `json:"transactions"`
	Atomic       bool        `json:"atomic"`
	Burn         bool        `json:"burn"`
}
