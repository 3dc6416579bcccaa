package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Call is a single read-only contract call.
type Call struct {
	To   common.Address
	Data []byte
}

// CallResult pairs a call's return data with its own error. A failed element
// does not fail the batch it belongs to.
type CallResult struct {
	Data []byte
	Err  error
}

// Reader is a chain-scoped read-only RPC surface. Block 0 means latest.
type Reader interface {
	ChainID() uint64
	BlockNumber(ctx context.Context) (uint64, error)
	Call(ctx context.Context, call Call, block uint64) ([]byte, error)
	BatchCall(ctx context.Context, calls []Call, block uint64) ([]CallResult, error)
}

// BlockTimer is implemented by readers that can resolve block timestamps.
type BlockTimer interface {
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}
