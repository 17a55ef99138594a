package credential_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/tts-batch/internal/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCredentialFile(t *testing.T, lines ...string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "keys.txt")

	content := ""
	for _, l := range lines {
		content += l + "\n"
	}

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func validKey(suffix string) string {
	return "sk_" + suffix + "000000000000000000000000000000000000"
}

func TestFileSourceValidatesPrefixAndLength(t *testing.T) {
	t.Parallel()

	path := writeCredentialFile(t,
		"# a comment",
		"",
		validKey("aaa"),
		"too_short",
		"not_sk_prefixed_but_long_enough_to_pass_length_check_xxxxxxxxxxxxx",
	)

	source := credential.NewFileSource(path)
	values, err := source.Load()
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, validKey("aaa"), values[0])
}

func TestPoolNextRotatesAndWrapsAround(t *testing.T) {
	t.Parallel()

	path := writeCredentialFile(t, validKey("a"), validKey("b"))
	pool := credential.NewPool(nil, nil)
	require.NoError(t, pool.Load(credential.NewFileSource(path)))

	first, ok := pool.Next()
	require.True(t, ok)
	second, ok := pool.Next()
	require.True(t, ok)
	third, ok := pool.Next()
	require.True(t, ok)

	assert.Equal(t, validKey("a"), first.Value)
	assert.Equal(t, validKey("b"), second.Value)
	assert.Equal(t, validKey("a"), third.Value, "cursor wraps back to the head")
}

func TestPoolNextOnEmptyPoolReturnsFalse(t *testing.T) {
	t.Parallel()

	pool := credential.NewPool(nil, nil)

	_, ok := pool.Next()
	assert.False(t, ok)
}

func TestPoolRotationFairness(t *testing.T) {
	t.Parallel()

	path := writeCredentialFile(t, validKey("a"), validKey("b"), validKey("c"))
	pool := credential.NewPool(nil, nil)
	require.NoError(t, pool.Load(credential.NewFileSource(path)))

	counts := map[string]int{}

	const k = 10

	for i := 0; i < k; i++ {
		cred, ok := pool.Next()
		require.True(t, ok)
		counts[cred.Value]++
	}

	for _, c := range counts {
		assert.GreaterOrEqual(t, c, k/3)
		assert.LessOrEqual(t, c, k/3+1)
	}
}

func TestQuarantinePersistsAndExcludesFromRotation(t *testing.T) {
	t.Parallel()

	path := writeCredentialFile(t, validKey("a"), validKey("b"))
	sinkPath := path + ".quarantine"
	sink := credential.NewFileSink(sinkPath)

	pool := credential.NewPool(sink, nil)
	require.NoError(t, pool.Load(credential.NewFileSource(path)))

	bad, ok := pool.Next()
	require.True(t, ok)
	require.Equal(t, validKey("a"), bad.Value)

	require.NoError(t, pool.Quarantine(bad, "invalid credential"))

	for i := 0; i < 4; i++ {
		cred, ok := pool.Next()
		require.True(t, ok)
		assert.Equal(t, validKey("b"), cred.Value)
	}

	data, err := os.ReadFile(sinkPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), validKey("a"))
}

func TestRecordFailureQuarantinesAfterThreshold(t *testing.T) {
	t.Parallel()

	path := writeCredentialFile(t, validKey("a"), validKey("b"))
	pool := credential.NewPool(nil, nil).WithMaxConsecutiveFailures(2)
	require.NoError(t, pool.Load(credential.NewFileSource(path)))

	target := credential.Credential{Value: validKey("a")}

	quarantined, err := pool.RecordFailure(target, "credential failure")
	require.NoError(t, err)
	assert.False(t, quarantined)

	quarantined, err = pool.RecordFailure(target, "credential failure")
	require.NoError(t, err)
	assert.True(t, quarantined)

	assert.Equal(t, 1, pool.Len())
}

func TestRecordSuccessResetsFailureStreak(t *testing.T) {
	t.Parallel()

	path := writeCredentialFile(t, validKey("a"))
	pool := credential.NewPool(nil, nil).WithMaxConsecutiveFailures(2)
	require.NoError(t, pool.Load(credential.NewFileSource(path)))

	target := credential.Credential{Value: validKey("a")}

	_, err := pool.RecordFailure(target, "x")
	require.NoError(t, err)

	pool.RecordSuccess(target)

	quarantined, err := pool.RecordFailure(target, "x")
	require.NoError(t, err)
	assert.False(t, quarantined, "success should have reset the streak")
}
