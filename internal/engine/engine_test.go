package engine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/tts-batch/internal/chunkstore"
	"github.com/book-expert/tts-batch/internal/config"
	"github.com/book-expert/tts-batch/internal/credential"
	"github.com/book-expert/tts-batch/internal/elevenlabs"
	"github.com/book-expert/tts-batch/internal/engine"
	"github.com/book-expert/tts-batch/internal/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSynthesizer replays a fixed sequence of results per call count,
// keyed by chunk text, so tests can script "fails once then succeeds"
// without a real HTTP server.
type scriptedSynthesizer struct {
	mu      sync.Mutex
	calls   int64
	script  func(callIndex int, text string) elevenlabs.Result
}

func (s *scriptedSynthesizer) Synthesize(
	_ context.Context,
	_ config.VoiceSettings,
	text string,
	_ credential.Credential,
	_ *proxy.Endpoint,
) elevenlabs.Result {
	idx := int(atomic.AddInt64(&s.calls, 1))

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.script(idx, text)
}

func newStore(t *testing.T, texts ...string) *chunkstore.Store {
	t.Helper()

	store, err := chunkstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Create(texts)
	require.NoError(t, err)

	return store
}

func newPool(t *testing.T, values ...string) *credential.Pool {
	t.Helper()

	pool := credential.NewPool(nil, nil)
	require.NoError(t, pool.Load(credential.FuncSource(func() ([]string, error) { return values, nil })))

	return pool
}

func baseConfig() config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.Concurrency = 2
	cfg.MaxRetries = 3

	return cfg
}

func TestEngineRetriesTransientFailureThenSucceeds(t *testing.T) {
	store := newStore(t, "alpha", "beta")
	pool := newPool(t, "sk_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	var perChunkAttempts sync.Map

	synth := &scriptedSynthesizer{script: func(_ int, text string) elevenlabs.Result {
		v, _ := perChunkAttempts.LoadOrStore(text, new(int64))
		n := atomic.AddInt64(v.(*int64), 1)

		if n == 1 {
			return elevenlabs.Result{Kind: elevenlabs.KindTransientFailure, Reason: "boom"}
		}

		return elevenlabs.Result{Kind: elevenlabs.KindOk, Audio: []byte("audio")}
	}}

	eng := engine.New(store, pool, nil, synth, config.VoiceSettings{VoiceID: "v1"}, baseConfig(), nil).
		WithBackoff(time.Millisecond)

	successes, failures := eng.Run(context.Background())

	assert.Equal(t, 2, successes)
	assert.Equal(t, 0, failures)

	for _, c := range store.All() {
		assert.Equal(t, chunkstore.StatusSuccess, c.Status)
		assert.GreaterOrEqual(t, c.Attempts, 2)
	}
}

func TestEngineExhaustsRetriesAndFails(t *testing.T) {
	store := newStore(t, "alpha")
	pool := newPool(t, "sk_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	synth := &scriptedSynthesizer{script: func(_ int, _ string) elevenlabs.Result {
		return elevenlabs.Result{Kind: elevenlabs.KindTransientFailure, Reason: "always down"}
	}}

	cfg := baseConfig()
	cfg.Concurrency = 1
	cfg.MaxRetries = 3

	eng := engine.New(store, pool, nil, synth, config.VoiceSettings{VoiceID: "v1"}, cfg, nil).
		WithBackoff(time.Millisecond)

	successes, failures := eng.Run(context.Background())

	assert.Equal(t, 0, successes)
	assert.Equal(t, 1, failures)

	chunk, ok := store.ByNumber(1)
	require.True(t, ok)
	assert.Equal(t, chunkstore.StatusFail, chunk.Status)
	assert.Equal(t, 3, chunk.Attempts)
}

func TestEngineRotatesCredentialOnFailureAndQuarantines(t *testing.T) {
	store := newStore(t, "alpha", "beta", "gamma")
	pool := newPool(t, "sk_bad00000000000000000000000000000000000", "sk_good000000000000000000000000000000000")

	pool.WithMaxConsecutiveFailures(1)

	badSynth := &credentialAwareSynth{bad: "sk_bad00000000000000000000000000000000000"}

	cfg := baseConfig()
	cfg.Concurrency = 1

	eng := engine.New(store, pool, nil, badSynth, config.VoiceSettings{VoiceID: "v1"}, cfg, nil).
		WithBackoff(time.Millisecond)

	successes, failures := eng.Run(context.Background())

	assert.Equal(t, 3, successes)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 1, pool.Len(), "the bad credential should have been quarantined")
}

type credentialAwareSynth struct {
	bad string
}

func (s *credentialAwareSynth) Synthesize(
	_ context.Context,
	_ config.VoiceSettings,
	_ string,
	cred credential.Credential,
	_ *proxy.Endpoint,
) elevenlabs.Result {
	if cred.Value == s.bad {
		return elevenlabs.Result{Kind: elevenlabs.KindCredentialFailure, Reason: "invalid key"}
	}

	return elevenlabs.Result{Kind: elevenlabs.KindOk, Audio: []byte("x")}
}

func TestEnginePermanentFailureStopsImmediately(t *testing.T) {
	store := newStore(t, "alpha")
	pool := newPool(t, "sk_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	synth := &scriptedSynthesizer{script: func(_ int, _ string) elevenlabs.Result {
		return elevenlabs.Result{Kind: elevenlabs.KindPermanentFailure, Reason: "422"}
	}}

	eng := engine.New(store, pool, nil, synth, config.VoiceSettings{VoiceID: "v1"}, baseConfig(), nil)

	_, failures := eng.Run(context.Background())

	assert.Equal(t, 1, failures)

	chunk, _ := store.ByNumber(1)
	assert.Equal(t, 1, chunk.Attempts, "a permanent failure must not be retried")
}

func TestEngineEmitsEventsAndClosesChannel(t *testing.T) {
	store := newStore(t, "alpha")
	pool := newPool(t, "sk_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	synth := &scriptedSynthesizer{script: func(_ int, _ string) elevenlabs.Result {
		return elevenlabs.Result{Kind: elevenlabs.KindOk, Audio: []byte("x")}
	}}

	eng := engine.New(store, pool, nil, synth, config.VoiceSettings{VoiceID: "v1"}, baseConfig(), nil)

	events := eng.Events()

	done := make(chan struct{})

	var seenCompletion bool

	go func() {
		defer close(done)

		for evt := range events {
			if evt.Kind == engine.EventRunCompleted {
				seenCompletion = true
			}
		}
	}()

	eng.Run(context.Background())

	<-done

	assert.True(t, seenCompletion)
}

func TestEngineCancellationRequeuesUnclaimedWork(t *testing.T) {
	store := newStore(t, "alpha", "beta", "gamma", "delta")
	pool := newPool(t, "sk_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	block := make(chan struct{})

	synth := &blockingSynth{block: block}

	cfg := baseConfig()
	cfg.Concurrency = 1

	eng := engine.New(store, pool, nil, synth, config.VoiceSettings{VoiceID: "v1"}, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan struct{})

	go func() {
		eng.Run(ctx)
		close(runDone)
	}()

	cancel()
	close(block)

	<-runDone

	queued := 0
	for _, c := range store.All() {
		if c.Status == chunkstore.StatusQueue {
			queued++
		}
	}

	assert.Positive(t, queued, "chunks never dispatched before cancellation should remain queued")
}

type blockingSynth struct {
	block chan struct{}
}

func (s *blockingSynth) Synthesize(
	_ context.Context,
	_ config.VoiceSettings,
	_ string,
	_ credential.Credential,
	_ *proxy.Endpoint,
) elevenlabs.Result {
	<-s.block

	return elevenlabs.Result{Kind: elevenlabs.KindOk, Audio: []byte("x")}
}
