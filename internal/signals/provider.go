package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Provider fetches one snapshot per evaluation cycle.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Snapshot, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context) (Snapshot, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Fetch(ctx context.Context) (Snapshot, error) {
	return p.Fn(ctx)
}

// ProviderError records a provider that failed during Collect.
type ProviderError struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// Collect fetches every provider concurrently, each bounded by timeout.
// Failed or timed-out providers are logged and left out of the returned set.
func Collect(ctx context.Context, providers []Provider, timeout time.Duration, log *zap.Logger) (Set, []ProviderError) {
	set := make(Set, len(providers))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures []ProviderError
	)

	for _, p := range providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()

			snap, err := fetchOne(ctx, p, timeout)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, ProviderError{Provider: p.Name(), Error: err.Error()})
				if log != nil {
					log.Warn("Signal provider failed", zap.String("provider", p.Name()), zap.Error(err))
				}
				return
			}
			if snap == nil {
				return
			}
			set[snap.Kind()] = snap
		}(p)
	}

	wg.Wait()
	return set, failures
}

func fetchOne(ctx context.Context, p Provider, timeout time.Duration) (snap Snapshot, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		s, err := p.Fetch(ctx)
		done <- result{snap: s, err: err}
	}()

	// Providers that ignore ctx still cannot hold the cycle past the deadline.
	select {
	case r := <-done:
		return r.snap, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", p.Name(), ctx.Err())
	}
}
