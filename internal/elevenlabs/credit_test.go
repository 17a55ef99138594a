package elevenlabs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tts-batch/internal/credential"
	"github.com/book-expert/tts-batch/internal/elevenlabs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCredFile(t *testing.T, keys ...string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "keys.txt")

	content := ""
	for _, k := range keys {
		content += k + "\n"
	}

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestCreditProbeQuarantinesBelowThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("xi-api-key")

		var body string
		if key == "sk_lowcredit00000000000000000000000000000" {
			body = `{"character_count": 9900, "character_limit": 10000}`
		} else {
			body = `{"character_count": 100, "character_limit": 1000000}`
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	path := writeCredFile(t, "sk_lowcredit00000000000000000000000000000", "sk_healthy0000000000000000000000000000000")

	pool := credential.NewPool(nil, nil)
	require.NoError(t, pool.Load(credential.NewFileSource(path)))

	client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)
	probe := elevenlabs.NewCreditProbe(client, pool, 1000, nil)

	total, summaries := probe.Run(context.Background(), 2)

	require.Len(t, summaries, 2)
	assert.Equal(t, 1, pool.Len(), "the low-credit credential should have been quarantined")
	assert.Equal(t, 999900, total)
}
