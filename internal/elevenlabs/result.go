package elevenlabs

// ResultKind is the classification a Synthesize call resolves to. Encoding
// the call's outcome as a sum type keeps the generation engine's retry
// logic a total function over the variant, with no exception-style control
// flow.
type ResultKind int

const (
	// KindOk means the request succeeded and audio bytes were returned.
	KindOk ResultKind = iota
	// KindTransientFailure covers network errors, timeouts, proxy errors,
	// HTTP 429, and HTTP 5xx — worth retrying.
	KindTransientFailure
	// KindCredentialFailure covers HTTP 401/403 and explicit
	// insufficient-credit responses — the credential should be rotated.
	KindCredentialFailure
	// KindPermanentFailure covers any other 4xx and malformed responses —
	// not worth retrying.
	KindPermanentFailure
)

// String renders the kind for logging.
func (k ResultKind) String() string {
	switch k {
	case KindOk:
		return "Ok"
	case KindTransientFailure:
		return "TransientFailure"
	case KindCredentialFailure:
		return "CredentialFailure"
	case KindPermanentFailure:
		return "PermanentFailure"
	default:
		return "Unknown"
	}
}

// Result is the outcome of a single Synthesize call. Audio is populated
// only when Kind is KindOk; Reason describes any failure kind.
type Result struct {
	Kind   ResultKind
	Audio  []byte
	Reason string
}

func ok(audio []byte) Result {
	return Result{Kind: KindOk, Audio: audio}
}

func transientFailure(reason string) Result {
	return Result{Kind: KindTransientFailure, Reason: reason}
}

func credentialFailure(reason string) Result {
	return Result{Kind: KindCredentialFailure, Reason: reason}
}

func permanentFailure(reason string) Result {
	return Result{Kind: KindPermanentFailure, Reason: reason}
}
