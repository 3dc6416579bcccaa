package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"liquidityDesk/internal/model"
)

// DefaultBatchSize caps the number of eth_calls sent in one JSON-RPC batch.
const DefaultBatchSize = 50

// Client wraps go-ethereum RPC for a single endpoint.
type Client struct {
	url       string
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	chainID   uint64
	batchSize int

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBatchSize sets the maximum number of calls per JSON-RPC batch.
func WithBatchSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// NewClient dials rpcURL and resolves its chain ID, which doubles as a reachability check.
func NewClient(ctx context.Context, rpcURL string, opts ...ClientOption) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", model.ErrRPC, rpcURL, err)
	}
	return newClient(ctx, rpcURL, rpcClient, opts...)
}

func newClient(ctx context.Context, rpcURL string, rpcClient *rpc.Client, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:       rpcURL,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		batchSize: DefaultBatchSize,
		tsCache:   make(map[uint64]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}

	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("%w: chain id from %s: %w", model.ErrRPC, rpcURL, err)
	}
	c.chainID = id.Uint64()
	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// URL returns the endpoint the client is connected to.
func (c *Client) URL() string {
	return c.url
}

// ChainID returns the chain ID resolved at dial time.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, classify(err)
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// Call performs an eth_call at block (0 = latest).
func (c *Client) Call(ctx context.Context, call Call, block uint64) ([]byte, error) {
	to := call.To
	msg := ethereum.CallMsg{To: &to, Data: call.Data}
	var number *big.Int
	if block > 0 {
		number = new(big.Int).SetUint64(block)
	}
	out, err := c.ethClient.CallContract(ctx, msg, number)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// BatchCall sends the calls as JSON-RPC batches of at most batchSize elements.
// A transport failure fails the whole batch; per-call errors are reported in the results.
func (c *Client) BatchCall(ctx context.Context, calls []Call, block uint64) ([]CallResult, error) {
	results := make([]CallResult, len(calls))
	if len(calls) == 0 {
		return results, nil
	}
	chunks, err := SplitRange(0, uint64(len(calls)-1), uint64(c.batchSize))
	if err != nil {
		return nil, err
	}

	tag := blockTag(block)
	for _, chunk := range chunks {
		elems := make([]rpc.BatchElem, 0, chunk.Len())
		outs := make([]*hexutil.Bytes, 0, chunk.Len())
		for i := chunk.From; i <= chunk.To; i++ {
			out := new(hexutil.Bytes)
			outs = append(outs, out)
			elems = append(elems, rpc.BatchElem{
				Method: "eth_call",
				Args: []interface{}{
					map[string]interface{}{
						"to":   calls[i].To,
						"data": hexutil.Bytes(calls[i].Data),
					},
					tag,
				},
				Result: out,
			})
		}
		if err := c.rpcClient.BatchCallContext(ctx, elems); err != nil {
			return nil, fmt.Errorf("%w: batch of %d eth_call: %w", model.ErrRPC, len(elems), err)
		}
		for j, elem := range elems {
			idx := int(chunk.From) + j
			if elem.Error != nil {
				results[idx].Err = classify(elem.Error)
				continue
			}
			results[idx].Data = []byte(*outs[j])
		}
	}
	return results, nil
}

func blockTag(block uint64) string {
	if block == 0 {
		return "latest"
	}
	return hexutil.EncodeUint64(block)
}

// classify maps go-ethereum errors onto the model taxonomy. A node that answers
// with "execution reverted" is deterministic; anything else may succeed elsewhere.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == 3 || strings.Contains(strings.ToLower(rpcErr.Error()), "revert") {
			return fmt.Errorf("%w: %w", model.ErrReverted, err)
		}
	} else if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return fmt.Errorf("%w: %w", model.ErrReverted, err)
	}
	return fmt.Errorf("%w: %w", model.ErrRPC, err)
}
