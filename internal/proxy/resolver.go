package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	providerStatusReady   = 100
	providerStatusBusy    = 101
	providerStatusInvalid = 102

	minPort = 1
	maxPort = 65535

	minWaitSeconds = 1
	maxWaitSeconds = 300
)

var waitSecondsPattern = regexp.MustCompile(`(\d+)s`)

// providerResponse mirrors the external provider's JSON contract.
type providerResponse struct {
	Status    int    `json:"status"`
	ProxyHTTP string `json:"proxyhttp"`
	Message   string `json:"message"`
}

// Resolver performs a single, non-retrying resolution call against the
// upstream provider. It does not sleep or retry; ProxyPool owns that
// policy, the same way TtsClient classifies without retrying.
type Resolver interface {
	Resolve(ctx context.Context, key string) Resolution
}

// HTTPResolver implements Resolver against an HTTPS provider endpoint whose
// key parameter is an opaque token.
type HTTPResolver struct {
	// URLTemplate contains the literal substring "{KEY}", replaced with
	// the opaque provider key for each call.
	URLTemplate string
	Client      *http.Client
}

// NewHTTPResolver returns an HTTPResolver with a default client timeout
// when client is nil.
func NewHTTPResolver(urlTemplate string, client *http.Client) *HTTPResolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &HTTPResolver{URLTemplate: urlTemplate, Client: client}
}

// Resolve issues one HTTPS GET and classifies the response.
func (r *HTTPResolver) Resolve(ctx context.Context, key string) Resolution {
	target := strings.ReplaceAll(r.URLTemplate, "{KEY}", url.QueryEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Resolution{Outcome: OutcomeError}
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return Resolution{Outcome: OutcomeError}
	}
	defer func() { _ = resp.Body.Close() }()

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Resolution{Outcome: OutcomeError}
	}

	switch body.Status {
	case providerStatusReady:
		endpoint, ok := parseProxyHTTP(body.ProxyHTTP)
		if !ok {
			return Resolution{Outcome: OutcomeError}
		}

		return Resolution{Outcome: OutcomeReady, Endpoint: endpoint}
	case providerStatusBusy:
		wait, ok := parseWaitSeconds(body.Message)
		if !ok {
			return Resolution{Outcome: OutcomeError}
		}

		return Resolution{Outcome: OutcomeBusy, WaitSeconds: wait}
	case providerStatusInvalid:
		return Resolution{Outcome: OutcomeInvalid}
	default:
		return Resolution{Outcome: OutcomeError}
	}
}

// parseProxyHTTP parses "IP:PORT:USER:PASS" into a connection string,
// validating the port range.
func parseProxyHTTP(raw string) (Endpoint, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return Endpoint{}, false
	}

	host, portStr, user, pass := parts[0], parts[1], parts[2], parts[3]

	port, err := strconv.Atoi(portStr)
	if err != nil || port < minPort || port > maxPort {
		return Endpoint{}, false
	}

	conn := fmt.Sprintf("http://%s:%s@%s:%d", user, pass, host, port)

	return Endpoint{ConnectionString: conn, FetchedAt: time.Now().UTC()}, true
}

// parseWaitSeconds extracts the first "<digits>s" substring from message
// and clamps it to the provider's documented [1, 300] range.
func parseWaitSeconds(message string) (int, bool) {
	match := waitSecondsPattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}

	seconds, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}

	if seconds < minWaitSeconds {
		seconds = minWaitSeconds
	}

	if seconds > maxWaitSeconds {
		seconds = maxWaitSeconds
	}

	return seconds, true
}
