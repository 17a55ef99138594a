// Package elevenlabs wraps the ElevenLabs synthesis and subscription APIs
// behind a single, non-retrying request/response classifier: the engine
// owns retry policy, this package owns turning one HTTP exchange into a
// SynthesizeResult.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/tts-batch/internal/config"
	"github.com/book-expert/tts-batch/internal/credential"
	"github.com/book-expert/tts-batch/internal/proxy"
)

// BaseURL is the ElevenLabs API origin.
const BaseURL = "https://api.elevenlabs.io/v1"

const (
	synthesizePathFormat = "/text-to-speech/%s"
	headerAPIKey         = "xi-api-key"
	headerContentType    = "Content-Type"
	contentTypeJSON      = "application/json"
)

// Static errors.
var (
	ErrTextEmpty    = errors.New("elevenlabs: text cannot be empty")
	ErrVoiceIDEmpty = errors.New("elevenlabs: voice id cannot be empty")
)

// quotaStatuses are the ElevenLabs error detail "status" values that
// indicate an out-of-credit condition rather than a generic permanent
// failure.
var quotaStatuses = map[string]bool{
	"quota_exceeded":          true,
	"insufficient_quota":      true,
	"character_limit_reached": true,
}

// errorDetail mirrors ElevenLabs' structured error body.
type errorDetail struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// Client synthesizes speech against the ElevenLabs API. It caches one HTTP
// transport per proxy connection string so repeated requests through the
// same proxy reuse connections; requests with no proxy share a single
// direct transport.
type Client struct {
	mu         sync.Mutex
	transports map[string]*http.Transport
	timeout    time.Duration
	maxIdle    int
	baseURL    string
}

// NewClient returns a Client whose per-proxy transport pool size is
// 4 * concurrency, matching the engine's worker count.
func NewClient(requestTimeout time.Duration, concurrency int) *Client {
	return NewClientWithBaseURL(BaseURL, requestTimeout, concurrency)
}

// NewClientWithBaseURL returns a Client targeting a non-default origin,
// for tests that substitute an httptest server for the ElevenLabs API.
func NewClientWithBaseURL(baseURL string, requestTimeout time.Duration, concurrency int) *Client {
	maxIdle := concurrency * 4
	if maxIdle < 1 {
		maxIdle = 4
	}

	return &Client{
		transports: make(map[string]*http.Transport),
		timeout:    requestTimeout,
		maxIdle:    maxIdle,
		baseURL:    baseURL,
	}
}

// Synthesize builds and sends one text-to-speech request and classifies
// the outcome. It never retries; TransientFailure/CredentialFailure/
// PermanentFailure are all terminal classifications for this single call.
func (c *Client) Synthesize(
	ctx context.Context,
	voice config.VoiceSettings,
	text string,
	cred credential.Credential,
	endpoint *proxy.Endpoint,
) Result {
	if text == "" {
		return permanentFailure(ErrTextEmpty.Error())
	}

	if voice.VoiceID == "" {
		return permanentFailure(ErrVoiceIDEmpty.Error())
	}

	body, err := json.Marshal(buildRequestBody(voice, text))
	if err != nil {
		return permanentFailure(fmt.Sprintf("marshal request: %v", err))
	}

	target := c.baseURL + fmt.Sprintf(synthesizePathFormat, url.PathEscape(voice.VoiceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return permanentFailure(fmt.Sprintf("build request: %v", err))
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAPIKey, cred.Value)

	httpClient := c.clientFor(endpoint)

	resp, err := httpClient.Do(req)
	if err != nil {
		return transientFailure(fmt.Sprintf("request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	return classifyResponse(resp)
}

// clientFor returns the cached *http.Client for a proxy endpoint (or the
// direct, no-proxy client), creating the underlying transport on first use.
func (c *Client) clientFor(endpoint *proxy.Endpoint) *http.Client {
	key := ""
	if endpoint != nil {
		key = endpoint.ConnectionString
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	transport, ok := c.transports[key]
	if !ok {
		transport = &http.Transport{MaxIdleConnsPerHost: c.maxIdle}

		if key != "" {
			if proxyURL, err := url.Parse(key); err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}

		c.transports[key] = transport
	}

	return &http.Client{Transport: transport, Timeout: c.timeout}
}

func classifyResponse(resp *http.Response) Result {
	if resp.StatusCode == http.StatusOK {
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return permanentFailure(fmt.Sprintf("read response body: %v", err))
		}

		if len(audio) == 0 {
			return permanentFailure("received empty audio body")
		}

		return ok(audio)
	}

	raw, _ := io.ReadAll(resp.Body)
	message, status := describeError(resp.Status, raw)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return credentialFailure(message)
	case quotaStatuses[strings.ToLower(status)]:
		return credentialFailure(message)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return transientFailure(message)
	default:
		return permanentFailure(message)
	}
}

// describeError decodes ElevenLabs' structured error body if present,
// falling back to the raw response text, and returns both a human-readable
// message and the machine-readable "status" field used to detect
// insufficient-credit responses.
func describeError(httpStatus string, raw []byte) (message, status string) {
	var detail errorDetail
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", httpStatus, detail.Detail.Message, detail.Detail.Status), detail.Detail.Status
	}

	return fmt.Sprintf("%s: %s", httpStatus, string(raw)), ""
}
