package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"liquidityDesk/internal/model"
)

// Endpoint is a Reader bound to one RPC URL.
type Endpoint interface {
	Reader
	Close()
}

// Dialer opens an Endpoint for url.
type Dialer func(ctx context.Context, url string) (Endpoint, error)

// ClientDialer dials go-ethereum backed Clients.
func ClientDialer(opts ...ClientOption) Dialer {
	return func(ctx context.Context, url string) (Endpoint, error) {
		return NewClient(ctx, url, opts...)
	}
}

// FallbackReader serves reads from an ordered list of endpoints for one chain.
// The first reachable endpoint reporting the expected chain ID wins; a failed
// read moves to the next endpoint and is retried there.
type FallbackReader struct {
	chainID    uint64
	urls       []string
	dial       Dialer
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration

	mu     sync.Mutex
	conns  map[int]Endpoint
	active int
}

// FallbackOption configures a FallbackReader.
type FallbackOption func(*FallbackReader)

// WithDialer replaces the default go-ethereum dialer.
func WithDialer(d Dialer) FallbackOption {
	return func(r *FallbackReader) { r.dial = d }
}

// WithLogger sets the logger used to report degraded endpoints.
func WithLogger(l *zap.Logger) FallbackOption {
	return func(r *FallbackReader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRetries sets how many times a failed read is retried on another endpoint.
func WithRetries(maxRetries int, backoff time.Duration) FallbackOption {
	return func(r *FallbackReader) {
		r.maxRetries = maxRetries
		r.backoff = backoff
	}
}

// DialFallback connects to the first reachable endpoint of urls serving chainID.
func DialFallback(ctx context.Context, chainID uint64, urls []string, opts ...FallbackOption) (*FallbackReader, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: chain %d has no rpc endpoints", model.ErrNoReachableEndpoint, chainID)
	}
	r := &FallbackReader{
		chainID:    chainID,
		urls:       append([]string(nil), urls...),
		dial:       ClientDialer(),
		logger:     zap.NewNop(),
		maxRetries: 1,
		backoff:    250 * time.Millisecond,
		conns:      make(map[int]Endpoint),
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, _, err := r.current(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// ChainID returns the chain this reader is scoped to.
func (r *FallbackReader) ChainID() uint64 {
	return r.chainID
}

// ActiveURL returns the endpoint currently serving reads.
func (r *FallbackReader) ActiveURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.urls[r.active]
}

// Close closes every endpoint opened so far.
func (r *FallbackReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for idx, ep := range r.conns {
		ep.Close()
		delete(r.conns, idx)
	}
}

// BlockNumber returns the latest block number.
func (r *FallbackReader) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := r.do(ctx, "eth_blockNumber", func(ctx context.Context, ep Endpoint, _ int) error {
		var err error
		n, err = ep.BlockNumber(ctx)
		return err
	})
	return n, err
}

// Call performs a single eth_call.
func (r *FallbackReader) Call(ctx context.Context, call Call, block uint64) ([]byte, error) {
	var out []byte
	err := r.do(ctx, "eth_call", func(ctx context.Context, ep Endpoint, _ int) error {
		var err error
		out, err = ep.Call(ctx, call, block)
		return err
	})
	return out, err
}

// BatchCall performs a batch of eth_calls. A failed batch moves to another
// endpoint as a whole. Elements that fail with a retryable RPC error inside an
// otherwise successful batch are sent once more, together, to the next endpoint;
// elements that fail again keep their first error.
func (r *FallbackReader) BatchCall(ctx context.Context, calls []Call, block uint64) ([]CallResult, error) {
	out, served, err := r.batchOnce(ctx, "batch eth_call", calls, block)
	if err != nil {
		return nil, err
	}

	var failed []int
	for i, res := range out {
		if res.Err != nil && model.Retryable(res.Err) {
			failed = append(failed, i)
		}
	}
	if len(failed) == 0 || r.maxRetries <= 0 || len(r.urls) < 2 || ctx.Err() != nil {
		return out, nil
	}

	r.markFailed(served, "batch eth_call element", 0, out[failed[0]].Err)
	retry := make([]Call, len(failed))
	for j, i := range failed {
		retry[j] = calls[i]
	}
	again, _, err := r.batchOnce(ctx, "batch eth_call retry", retry, block)
	if err != nil {
		r.logger.Warn("batch element retry failed",
			zap.Uint64("chain_id", r.chainID),
			zap.Int("elements", len(failed)),
			zap.Error(err),
		)
		return out, nil
	}
	for j, i := range failed {
		if j < len(again) && again[j].Err == nil {
			out[i] = again[j]
		}
	}
	return out, nil
}

func (r *FallbackReader) batchOnce(ctx context.Context, method string, calls []Call, block uint64) ([]CallResult, int, error) {
	var (
		out    []CallResult
		served int
	)
	err := r.do(ctx, method, func(ctx context.Context, ep Endpoint, idx int) error {
		var err error
		out, err = ep.BatchCall(ctx, calls, block)
		served = idx
		return err
	})
	return out, served, err
}

// BlockTimestamp resolves a block timestamp when the active endpoint supports it.
func (r *FallbackReader) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	err := r.do(ctx, "eth_getBlockByNumber", func(ctx context.Context, ep Endpoint, _ int) error {
		timer, ok := ep.(BlockTimer)
		if !ok {
			return fmt.Errorf("%w: block timestamps", model.ErrUnsupportedOperation)
		}
		var err error
		ts, err = timer.BlockTimestamp(ctx, number)
		return err
	})
	return ts, err
}

func (r *FallbackReader) do(ctx context.Context, method string, fn func(context.Context, Endpoint, int) error) error {
	return withRetry(ctx, r.maxRetries, r.backoff, func(ctx context.Context, attempt int) error {
		ep, idx, err := r.current(ctx)
		if err != nil {
			return err
		}
		err = fn(ctx, ep, idx)
		if err != nil && model.Retryable(err) && ctx.Err() == nil {
			r.markFailed(idx, method, attempt, err)
		}
		return err
	})
}

func (r *FallbackReader) current(ctx context.Context) (Endpoint, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for n := 0; n < len(r.urls); n++ {
		idx := (r.active + n) % len(r.urls)
		ep, err := r.connectLocked(ctx, idx)
		if err != nil {
			errs = append(errs, err)
			r.logger.Warn("rpc endpoint unavailable",
				zap.Uint64("chain_id", r.chainID),
				zap.String("url", r.urls[idx]),
				zap.Error(err),
			)
			continue
		}
		r.active = idx
		return ep, idx, nil
	}
	return nil, -1, fmt.Errorf("%w: chain %d: %w", model.ErrNoReachableEndpoint, r.chainID, errors.Join(errs...))
}

func (r *FallbackReader) connectLocked(ctx context.Context, idx int) (Endpoint, error) {
	if ep, ok := r.conns[idx]; ok {
		return ep, nil
	}
	ep, err := r.dial(ctx, r.urls[idx])
	if err != nil {
		return nil, err
	}
	if ep.ChainID() != r.chainID {
		ep.Close()
		return nil, fmt.Errorf("%w: %s serves chain %d, want %d", model.ErrChainMismatch, r.urls[idx], ep.ChainID(), r.chainID)
	}
	r.conns[idx] = ep
	return ep, nil
}

func (r *FallbackReader) markFailed(idx int, method string, attempt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != idx {
		return
	}
	r.active = (idx + 1) % len(r.urls)
	r.logger.Warn("rpc endpoint failed, falling back",
		zap.Uint64("chain_id", r.chainID),
		zap.String("method", method),
		zap.String("url", r.urls[idx]),
		zap.String("next", r.urls[r.active]),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
}
