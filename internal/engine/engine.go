// Package engine drives the bounded worker pool that turns queued chunks
// into synthesized audio: claiming work from the chunk store, rotating
// credentials and proxies on failure, and retrying per the configured
// policy. The HTTP client's classification is the only retry signal the
// engine trusts; it never inspects errors itself.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-batch/internal/chunkstore"
	"github.com/book-expert/tts-batch/internal/config"
	"github.com/book-expert/tts-batch/internal/credential"
	"github.com/book-expert/tts-batch/internal/elevenlabs"
	"github.com/book-expert/tts-batch/internal/proxy"
)

const defaultBackoff = time.Second

const (
	logFmtCredentialFailure = "engine: chunk %d credential failure: %s"
	logFmtQuarantined       = "engine: credential quarantined after repeated failures"
	logFmtTransient         = "engine: chunk %d transient failure (attempt %d/%d): %s"
	logFmtPermanent         = "engine: chunk %d permanent failure: %s"
	logFmtExhausted         = "engine: chunk %d exhausted retries"
	logFmtCompleteErr       = "engine: chunk %d: %v"
)

// Synthesizer is the subset of *elevenlabs.Client the engine depends on.
// Tests substitute a stub that replays a scripted sequence of results.
type Synthesizer interface {
	Synthesize(ctx context.Context, voice config.VoiceSettings, text string, cred credential.Credential, endpoint *proxy.Endpoint) elevenlabs.Result
}

// ProxyProvider is the subset of *proxy.Pool the engine depends on.
type ProxyProvider interface {
	Current(ctx context.Context) (proxy.Endpoint, bool)
	MarkNeedsRefresh()
}

// Engine is the bounded worker pool that processes queued chunks against
// the synthesis client until none remain Queue or Pending.
type Engine struct {
	store       *chunkstore.Store
	credentials *credential.Pool
	proxies     ProxyProvider
	client      Synthesizer
	voice       config.VoiceSettings
	cfg         config.EngineConfig
	log         *logger.Logger
	events      chan Event
	backoff     time.Duration
}

// New returns an Engine ready to run. proxies may be nil when
// cfg.ProxyMode is config.ProxyModeNone.
func New(
	store *chunkstore.Store,
	credentials *credential.Pool,
	proxies ProxyProvider,
	client Synthesizer,
	voice config.VoiceSettings,
	cfg config.EngineConfig,
	log *logger.Logger,
) *Engine {
	bufSize := cfg.Concurrency*4 + 16

	return &Engine{
		store:       store,
		credentials: credentials,
		proxies:     proxies,
		client:      client,
		voice:       voice,
		cfg:         cfg,
		log:         log,
		events:      make(chan Event, bufSize),
		backoff:     defaultBackoff,
	}
}

// WithBackoff overrides the inter-attempt sleep applied after a
// TransientFailure. Tests use this to avoid real sleeps.
func (e *Engine) WithBackoff(d time.Duration) *Engine {
	if d >= 0 {
		e.backoff = d
	}

	return e
}

// Events returns the channel the engine publishes ChunkStateChanged and
// RunCompleted events on. The channel is closed once Run returns, so a
// consumer may safely range over it from a separate goroutine.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Run starts N = Concurrency workers, each claiming chunks from the store
// until none remain Queue, and blocks until every worker has exited
// either because work ran out or ctx was cancelled. It returns the
// terminal success/failure counts.
func (e *Engine) Run(ctx context.Context) (successes, failures int) {
	var (
		wg                     sync.WaitGroup
		successCount, failCount int64
	)

	workers := e.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			e.worker(ctx, &successCount, &failCount)
		}()
	}

	wg.Wait()

	successes = int(successCount)
	failures = int(failCount)

	e.publish(Event{Kind: EventRunCompleted, Successes: successes, Failures: failures})
	close(e.events)

	if e.log != nil {
		e.log.Info("engine: run completed, %d succeeded, %d failed", successes, failures)
	}

	return successes, failures
}

func (e *Engine) worker(ctx context.Context, successCount, failCount *int64) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk, ok := e.claimNext()
		if !ok {
			return
		}

		e.processChunk(ctx, chunk, successCount, failCount)

		if e.cfg.PerChunkDelayMS > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(e.cfg.PerChunkDelayMS) * time.Millisecond):
			}
		}
	}
}

// claimNext scans the store in ascending chunk-number order and claims the
// first chunk still Queue. Scanning afresh on every call (rather than
// caching an index) tolerates chunks being requeued mid-run.
func (e *Engine) claimNext() (chunkstore.Chunk, bool) {
	for _, c := range e.store.All() {
		if c.Status != chunkstore.StatusQueue {
			continue
		}

		if claimed, ok := e.store.Claim(c.Number); ok {
			return claimed, true
		}
	}

	return chunkstore.Chunk{}, false
}

// processChunk runs the per-chunk attempt loop. A CredentialFailure does
// not consume a retry slot: the loop index advances only on a retried
// TransientFailure, while Ok and PermanentFailure return at once, matching
// the policy that credential rotation is orthogonal to MaxRetries.
func (e *Engine) processChunk(ctx context.Context, chunk chunkstore.Chunk, successCount, failCount *int64) {
	number := chunk.Number

	for attempt := 1; attempt <= e.cfg.MaxRetries; {
		select {
		case <-ctx.Done():
			e.requeue(number)

			return
		default:
		}

		cred, ok := e.credentials.Next()
		if !ok {
			e.fail(number, failCount)

			return
		}

		endpoint := e.currentEndpoint(ctx)

		if _, err := e.store.IncrementAttempts(number); err != nil && e.log != nil {
			e.log.Error(logFmtCompleteErr, number, err)
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), e.requestTimeout())
		result := e.client.Synthesize(reqCtx, e.voice, chunk.Content, cred, endpoint)
		cancel()

		switch result.Kind {
		case elevenlabs.KindOk:
			e.credentials.RecordSuccess(cred)
			e.succeed(number, result.Audio, successCount)

			return
		case elevenlabs.KindTransientFailure:
			if endpoint != nil {
				e.proxies.MarkNeedsRefresh()
			}

			if e.log != nil {
				e.log.Warn(logFmtTransient, number, attempt, e.cfg.MaxRetries, result.Reason)
			}

			if attempt >= e.cfg.MaxRetries {
				e.fail(number, failCount)

				return
			}

			e.sleepBackoff(ctx)
			attempt++
		case elevenlabs.KindCredentialFailure:
			if e.log != nil {
				e.log.Warn(logFmtCredentialFailure, number, result.Reason)
			}

			quarantined, err := e.credentials.RecordFailure(cred, "repeated credential failure during run")
			if err != nil && e.log != nil {
				e.log.Error(logFmtCompleteErr, number, err)
			}

			if quarantined && e.log != nil {
				e.log.Warn(logFmtQuarantined)
			}
		case elevenlabs.KindPermanentFailure:
			if e.log != nil {
				e.log.Error(logFmtPermanent, number, result.Reason)
			}

			e.fail(number, failCount)

			return
		}
	}

	if e.log != nil {
		e.log.Error(logFmtExhausted, number)
	}

	e.fail(number, failCount)
}

func (e *Engine) currentEndpoint(ctx context.Context) *proxy.Endpoint {
	if e.cfg.ProxyMode != config.ProxyModeRotation || e.proxies == nil {
		return nil
	}

	endpoint, ok := e.proxies.Current(ctx)
	if !ok {
		return nil
	}

	return &endpoint
}

func (e *Engine) requestTimeout() time.Duration {
	if e.cfg.RequestTimeoutSeconds <= 0 {
		return config.DefaultRequestTimeoutSeconds * time.Second
	}

	return time.Duration(e.cfg.RequestTimeoutSeconds) * time.Second
}

func (e *Engine) sleepBackoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(e.backoff):
	}
}

func (e *Engine) succeed(number int, audio []byte, successCount *int64) {
	if err := e.store.CompleteSuccess(number, audio); err != nil && e.log != nil {
		e.log.Error(logFmtCompleteErr, number, err)
	}

	atomic.AddInt64(successCount, 1)
	e.publish(Event{Kind: EventChunkStateChanged, Number: number, Status: chunkstore.StatusSuccess})
}

func (e *Engine) fail(number int, failCount *int64) {
	if err := e.store.CompleteFail(number); err != nil && e.log != nil {
		e.log.Error(logFmtCompleteErr, number, err)
	}

	atomic.AddInt64(failCount, 1)
	e.publish(Event{Kind: EventChunkStateChanged, Number: number, Status: chunkstore.StatusFail})
}

func (e *Engine) requeue(number int) {
	if err := e.store.Requeue(number); err != nil && e.log != nil {
		e.log.Error(logFmtCompleteErr, number, err)
	}

	e.publish(Event{Kind: EventChunkStateChanged, Number: number, Status: chunkstore.StatusQueue})
}

func (e *Engine) publish(evt Event) {
	e.events <- evt
}
