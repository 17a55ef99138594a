package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-batch/internal/credential"
)

const subscriptionPath = "/user/subscription"

// subscriptionResponse mirrors the subset of ElevenLabs' subscription
// payload this package depends on.
type subscriptionResponse struct {
	CharacterCount int `json:"character_count"`
	CharacterLimit int `json:"character_limit"`
}

// CreditSummary is the per-credential result of a credit probe.
type CreditSummary struct {
	Credential credential.Credential
	Remaining  int
	Quarantine bool
	Err        error
}

// CreditProbe queries the remaining credit for each credential in a pool
// and quarantines those below threshold. It shares the synthesis client's
// request machinery since both call the same authenticated service.
type CreditProbe struct {
	client    *Client
	pool      *credential.Pool
	threshold int
	log       *logger.Logger
}

// NewCreditProbe returns a CreditProbe that quarantines credentials whose
// remaining credit falls below threshold.
func NewCreditProbe(client *Client, pool *credential.Pool, threshold int, log *logger.Logger) *CreditProbe {
	return &CreditProbe{client: client, pool: pool, threshold: threshold, log: log}
}

// Run queries every credential in the pool's current snapshot, bounded to
// maxConcurrency simultaneous requests, updates each credential's
// remaining-credit estimate, quarantines those below threshold, and
// returns the aggregate total of remaining credits across retained
// credentials.
func (p *CreditProbe) Run(ctx context.Context, maxConcurrency int) (int, []CreditSummary) {
	creds := p.pool.Snapshot()
	summaries := make([]CreditSummary, len(creds))

	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	sem := make(chan struct{}, maxConcurrency)

	var wg sync.WaitGroup

	for i, cred := range creds {
		wg.Add(1)

		go func(i int, cred credential.Credential) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			summaries[i] = p.probeOne(ctx, cred)
		}(i, cred)
	}

	wg.Wait()

	total := 0

	for _, s := range summaries {
		if s.Err != nil {
			continue
		}

		p.pool.UpdateRemainingCredit(s.Credential.Value, s.Remaining)

		if s.Quarantine {
			if err := p.pool.Quarantine(s.Credential, "below threshold"); err != nil && p.log != nil {
				p.log.Error("credit probe: failed to quarantine credential: %v", err)
			}

			continue
		}

		total += s.Remaining
	}

	if p.log != nil {
		p.log.Info("credit probe: %d credentials probed, %d credits remaining", len(summaries), total)
	}

	return total, summaries
}

func (p *CreditProbe) probeOne(ctx context.Context, cred credential.Credential) CreditSummary {
	remaining, err := p.querySubscription(ctx, cred)
	if err != nil {
		return CreditSummary{Credential: cred, Err: err}
	}

	return CreditSummary{
		Credential: cred,
		Remaining:  remaining,
		Quarantine: remaining < p.threshold,
	}
}

func (p *CreditProbe) querySubscription(ctx context.Context, cred credential.Credential) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.client.baseURL+subscriptionPath, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("elevenlabs: build subscription request: %w", err)
	}

	req.Header.Set(headerAPIKey, cred.Value)

	httpClient := p.client.clientFor(nil)

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("elevenlabs: subscription request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("elevenlabs: subscription returned %s", resp.Status)
	}

	var body subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("elevenlabs: decode subscription response: %w", err)
	}

	remaining := body.CharacterLimit - body.CharacterCount
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}
