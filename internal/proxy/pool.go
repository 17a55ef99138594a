package proxy

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/book-expert/logger"
)

// Pool is a lazy-resolved, refresh-on-demand proxy provider. A single mutex
// guards the cached endpoint and refresh flag; resolution happens with the
// lock held, per the simplifying assumption that only one resolution is in
// flight at a time.
type Pool struct {
	mu           sync.Mutex
	keys         []string
	current      *Endpoint
	needsRefresh bool
	resolver     Resolver
	log          *logger.Logger
	rng          *rand.Rand
}

// NewPool returns a Pool over the given opaque provider keys.
func NewPool(keys []string, resolver Resolver, log *logger.Logger) *Pool {
	return &Pool{
		keys:     append([]string(nil), keys...),
		resolver: resolver,
		log:      log,
		// #nosec G404 -- key selection is load distribution, not a security boundary.
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Current returns the cached endpoint if one exists and no refresh has been
// requested; otherwise it resolves a fresh endpoint from a randomly chosen
// key and caches it. It returns false if there are no keys, or if
// resolution (including the single busy-retry) does not yield a usable
// endpoint.
func (p *Pool) Current(ctx context.Context) (Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && !p.needsRefresh {
		return *p.current, true
	}

	if len(p.keys) == 0 {
		return Endpoint{}, false
	}

	key := p.keys[p.rng.Intn(len(p.keys))]

	endpoint, ok := p.resolveWithBusyRetry(ctx, key)
	if !ok {
		return Endpoint{}, false
	}

	p.current = &endpoint
	p.needsRefresh = false

	if p.log != nil {
		p.log.Info("proxy: resolved fresh endpoint")
	}

	return endpoint, true
}

// resolveWithBusyRetry calls the resolver once; on OutcomeBusy it sleeps
// for the advertised interval (interruptible by ctx) and retries exactly
// once more.
func (p *Pool) resolveWithBusyRetry(ctx context.Context, key string) (Endpoint, bool) {
	res := p.resolver.Resolve(ctx, key)
	if res.Outcome == OutcomeReady {
		return res.Endpoint, true
	}

	if res.Outcome != OutcomeBusy {
		return Endpoint{}, false
	}

	select {
	case <-ctx.Done():
		return Endpoint{}, false
	case <-time.After(time.Duration(res.WaitSeconds) * time.Second):
	}

	retry := p.resolver.Resolve(ctx, key)
	if retry.Outcome != OutcomeReady {
		return Endpoint{}, false
	}

	return retry.Endpoint, true
}

// MarkNeedsRefresh flips the refresh flag so the next Current call
// re-resolves rather than returning the cached endpoint.
func (p *Pool) MarkNeedsRefresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.needsRefresh = true
}

// Validate performs one resolution call per key and classifies each as
// Usable (OutcomeReady or OutcomeBusy) or Failed (OutcomeInvalid or
// OutcomeError), without performing the busy-retry sleep Current uses.
func (p *Pool) Validate(ctx context.Context, keys []string) ValidationSummary {
	var summary ValidationSummary

	for _, key := range keys {
		res := p.resolver.Resolve(ctx, key)

		switch res.Outcome {
		case OutcomeReady, OutcomeBusy:
			summary.Usable++
		case OutcomeInvalid, OutcomeError:
			summary.Failed++
		}
	}

	if p.log != nil {
		p.log.Info("proxy: validated %d keys, %d usable, %d failed", len(keys), summary.Usable, summary.Failed)
	}

	return summary
}
