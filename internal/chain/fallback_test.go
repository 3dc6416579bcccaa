package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"liquidityDesk/internal/model"
)

type fakeEndpoint struct {
	url     string
	chainID uint64
	head    uint64

	mu      sync.Mutex
	fail    bool
	limited bool
	calls   int
	closed  bool
}

func (f *fakeEndpoint) ChainID() uint64 { return f.chainID }

func (f *fakeEndpoint) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return 0, fmt.Errorf("%w: %s down", model.ErrRPC, f.url)
	}
	return f.head, nil
}

func (f *fakeEndpoint) Call(ctx context.Context, call Call, block uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("%w: %s down", model.ErrRPC, f.url)
	}
	if string(call.Data) == "revert" {
		return nil, fmt.Errorf("%w: boom", model.ErrReverted)
	}
	return []byte(f.url), nil
}

func (f *fakeEndpoint) BatchCall(ctx context.Context, calls []Call, block uint64) ([]CallResult, error) {
	out := make([]CallResult, len(calls))
	for i, c := range calls {
		f.mu.Lock()
		limited := f.limited && string(c.Data) == "hot"
		f.mu.Unlock()
		if limited {
			out[i] = CallResult{Err: fmt.Errorf("%w: %s rate limited", model.ErrRPC, f.url)}
			continue
		}
		data, err := f.Call(ctx, c, block)
		if err != nil && model.Retryable(err) {
			return nil, err
		}
		out[i] = CallResult{Data: data, Err: err}
	}
	return out, nil
}

func (f *fakeEndpoint) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func fakeDialer(endpoints map[string]*fakeEndpoint) Dialer {
	return func(ctx context.Context, url string) (Endpoint, error) {
		ep, ok := endpoints[url]
		if !ok {
			return nil, fmt.Errorf("%w: dial %s: connection refused", model.ErrRPC, url)
		}
		return ep, nil
	}
}

func TestDialFallbackSkipsUnreachableAndWrongChain(t *testing.T) {
	wrong := &fakeEndpoint{url: "wrong", chainID: 10}
	good := &fakeEndpoint{url: "good", chainID: 1, head: 99}
	eps := map[string]*fakeEndpoint{"wrong": wrong, "good": good}

	r, err := DialFallback(context.Background(), 1, []string{"down", "wrong", "good"}, WithDialer(fakeDialer(eps)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer r.Close()

	if r.ActiveURL() != "good" {
		t.Fatalf("expected good endpoint, got %s", r.ActiveURL())
	}
	if !wrong.closed {
		t.Fatalf("endpoint for another chain should be closed")
	}
	n, err := r.BlockNumber(context.Background())
	if err != nil || n != 99 {
		t.Fatalf("block number: %d %v", n, err)
	}
}

func TestDialFallbackNoEndpoint(t *testing.T) {
	_, err := DialFallback(context.Background(), 1, []string{"a", "b"}, WithDialer(fakeDialer(nil)))
	if !errors.Is(err, model.ErrNoReachableEndpoint) {
		t.Fatalf("expected no reachable endpoint, got %v", err)
	}
	if model.KindOf(err) != model.KindRPC {
		t.Fatalf("expected rpc kind, got %s", model.KindOf(err))
	}
}

func TestFallbackRetriesOnNextEndpoint(t *testing.T) {
	primary := &fakeEndpoint{url: "primary", chainID: 1}
	secondary := &fakeEndpoint{url: "secondary", chainID: 1}
	eps := map[string]*fakeEndpoint{"primary": primary, "secondary": secondary}

	r, err := DialFallback(context.Background(), 1, []string{"primary", "secondary"},
		WithDialer(fakeDialer(eps)), WithRetries(1, time.Millisecond))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	primary.mu.Lock()
	primary.fail = true
	primary.mu.Unlock()

	out, err := r.Call(context.Background(), Call{}, 0)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(out) != "secondary" {
		t.Fatalf("expected answer from secondary, got %s", out)
	}
	if r.ActiveURL() != "secondary" {
		t.Fatalf("active endpoint should move to secondary, got %s", r.ActiveURL())
	}
}

func TestFallbackDoesNotRetryReverts(t *testing.T) {
	primary := &fakeEndpoint{url: "primary", chainID: 1}
	secondary := &fakeEndpoint{url: "secondary", chainID: 1}
	eps := map[string]*fakeEndpoint{"primary": primary, "secondary": secondary}

	r, err := DialFallback(context.Background(), 1, []string{"primary", "secondary"},
		WithDialer(fakeDialer(eps)), WithRetries(3, time.Millisecond))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_, err = r.Call(context.Background(), Call{Data: []byte("revert")}, 0)
	if !errors.Is(err, model.ErrReverted) {
		t.Fatalf("expected revert, got %v", err)
	}
	if primary.calls != 1 || secondary.calls != 0 {
		t.Fatalf("revert should not be retried: primary=%d secondary=%d", primary.calls, secondary.calls)
	}
}

func TestFallbackGivesUpAfterRetries(t *testing.T) {
	primary := &fakeEndpoint{url: "primary", chainID: 1, fail: true}
	secondary := &fakeEndpoint{url: "secondary", chainID: 1, fail: true}
	eps := map[string]*fakeEndpoint{"primary": primary, "secondary": secondary}

	r, err := DialFallback(context.Background(), 1, []string{"primary", "secondary"},
		WithDialer(fakeDialer(eps)), WithRetries(1, time.Millisecond))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_, err = r.BatchCall(context.Background(), []Call{{}}, 0)
	if !errors.Is(err, model.ErrRPC) {
		t.Fatalf("expected rpc error, got %v", err)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("expected one attempt per endpoint: primary=%d secondary=%d", primary.calls, secondary.calls)
	}
}

func TestFallbackRetriesFailedBatchElements(t *testing.T) {
	primary := &fakeEndpoint{url: "primary", chainID: 1, limited: true}
	secondary := &fakeEndpoint{url: "secondary", chainID: 1}
	eps := map[string]*fakeEndpoint{"primary": primary, "secondary": secondary}

	r, err := DialFallback(context.Background(), 1, []string{"primary", "secondary"},
		WithDialer(fakeDialer(eps)), WithRetries(1, time.Millisecond))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	out, err := r.BatchCall(context.Background(), []Call{{Data: []byte("cold")}, {Data: []byte("hot")}, {Data: []byte("revert")}}, 0)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if string(out[0].Data) != "primary" || out[0].Err != nil {
		t.Fatalf("first element should come from primary: %+v", out[0])
	}
	if string(out[1].Data) != "secondary" || out[1].Err != nil {
		t.Fatalf("limited element should be retried on secondary: %+v", out[1])
	}
	if !errors.Is(out[2].Err, model.ErrReverted) {
		t.Fatalf("revert should be kept, got %v", out[2].Err)
	}
	if secondary.calls != 1 {
		t.Fatalf("only the limited element should be retried, secondary served %d", secondary.calls)
	}
	if r.ActiveURL() != "secondary" {
		t.Fatalf("active endpoint should move to secondary, got %s", r.ActiveURL())
	}
}

func TestFallbackKeepsElementErrorsWithoutRetries(t *testing.T) {
	primary := &fakeEndpoint{url: "primary", chainID: 1, limited: true}
	secondary := &fakeEndpoint{url: "secondary", chainID: 1}
	eps := map[string]*fakeEndpoint{"primary": primary, "secondary": secondary}

	r, err := DialFallback(context.Background(), 1, []string{"primary", "secondary"},
		WithDialer(fakeDialer(eps)), WithRetries(0, time.Millisecond))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	out, err := r.BatchCall(context.Background(), []Call{{Data: []byte("hot")}}, 0)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !errors.Is(out[0].Err, model.ErrRPC) {
		t.Fatalf("expected element rpc error, got %v", out[0].Err)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary should not be used, served %d", secondary.calls)
	}
}
