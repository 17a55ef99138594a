package credential

import (
	"sync"

	"github.com/book-expert/logger"
)

// DefaultMaxConsecutiveFailures is the number of consecutive
// CredentialFailure classifications against the same credential value,
// within one run, that triggers automatic quarantine.
const DefaultMaxConsecutiveFailures = 3

// Pool is a thread-safe, round-robin rotation over a mutable ordered list
// of credentials. One mutex guards the list and cursor together so that
// Next and Quarantine are atomic with respect to each other.
type Pool struct {
	mu                     sync.Mutex
	credentials            []*Credential
	cursor                 int
	sink                   QuarantineSink
	failures               map[string]int
	maxConsecutiveFailures int
	log                    *logger.Logger
}

// NewPool returns an empty Pool. sink may be nil, in which case Quarantine
// only removes the credential from rotation without recording it anywhere.
func NewPool(sink QuarantineSink, log *logger.Logger) *Pool {
	return &Pool{
		sink:                   sink,
		failures:               make(map[string]int),
		maxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		log:                    log,
	}
}

// WithMaxConsecutiveFailures overrides the default quarantine threshold.
func (p *Pool) WithMaxConsecutiveFailures(n int) *Pool {
	if n > 0 {
		p.maxConsecutiveFailures = n
	}

	return p
}

// Load replaces the active list from a Source, applying that source's own
// validation rules, and resets the cursor to the head.
func (p *Pool) Load(source Source) error {
	values, err := source.Load()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.credentials = make([]*Credential, 0, len(values))
	for _, v := range values {
		p.credentials = append(p.credentials, &Credential{Value: v})
	}

	p.cursor = 0

	if p.log != nil {
		p.log.Info("credential: loaded %d credentials", len(p.credentials))
	}

	return nil
}

// Next atomically returns the credential at the cursor and then advances
// the cursor modulo the current pool size, so the first call after Load
// returns the head of the list. It returns false if the pool is empty.
func (p *Pool) Next() (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.credentials) == 0 {
		return Credential{}, false
	}

	if p.cursor >= len(p.credentials) {
		p.cursor = 0
	}

	cred := p.credentials[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.credentials)

	return *cred, true
}

// Quarantine removes a credential from the active list, appends it to the
// quarantine sink (de-duplicated, with reason), and resets the cursor if it
// fell off the end of the shortened list. It never re-introduces the
// credential for the remainder of the run.
func (p *Pool) Quarantine(cred Credential, reason string) error {
	p.mu.Lock()

	idx := -1

	for i, c := range p.credentials {
		if c.Value == cred.Value {
			idx = i

			break
		}
	}

	if idx >= 0 {
		p.credentials[idx].Quarantined = true
		p.credentials = append(p.credentials[:idx], p.credentials[idx+1:]...)

		if len(p.credentials) > 0 {
			p.cursor %= len(p.credentials)
		} else {
			p.cursor = 0
		}
	}

	delete(p.failures, cred.Value)

	log := p.log
	p.mu.Unlock()

	if log != nil {
		log.Warn("credential: quarantined credential (%s)", reason)
	}

	if p.sink == nil {
		return nil
	}

	return p.sink.Append(cred.Value, reason)
}

// RecordFailure increments the consecutive-CredentialFailure counter for a
// credential's value and quarantines it automatically once the threshold is
// reached. It returns true if this call caused a quarantine.
func (p *Pool) RecordFailure(cred Credential, reason string) (bool, error) {
	p.mu.Lock()
	p.failures[cred.Value]++
	count := p.failures[cred.Value]
	threshold := p.maxConsecutiveFailures
	p.mu.Unlock()

	if count < threshold {
		return false, nil
	}

	if err := p.Quarantine(cred, reason); err != nil {
		return false, err
	}

	return true, nil
}

// RecordSuccess clears the consecutive-failure counter for a credential's
// value, since a successful call breaks the streak.
func (p *Pool) RecordSuccess(cred Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.failures, cred.Value)
}

// Snapshot returns a copy of every active credential, for probing.
func (p *Pool) Snapshot() []Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]Credential, len(p.credentials))
	for i, c := range p.credentials {
		result[i] = *c
	}

	return result
}

// UpdateRemainingCredit sets the remaining-credit estimate for a credential,
// used by CreditProbe after querying the subscription endpoint.
func (p *Pool) UpdateRemainingCredit(value string, remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.credentials {
		if c.Value == value {
			c.RemainingCredit = remaining

			return
		}
	}
}

// Len reports the number of active (non-quarantined) credentials.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.credentials)
}
