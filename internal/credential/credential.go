// Package credential implements a thread-safe, round-robin pool of API
// credentials with quarantine on repeated failure, modeled after the
// teacher's rotating-resource pools: one mutex guards the active list and
// cursor so that rotation and quarantine are atomic with respect to each
// other.
package credential

// Credential is an opaque API key plus a remaining-credit estimate and a
// quarantine flag. CredentialPool is the sole owner of Credential values;
// callers receive copies.
type Credential struct {
	Value           string
	RemainingCredit int
	Quarantined     bool
}
