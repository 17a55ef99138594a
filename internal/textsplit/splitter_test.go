package textsplit_test

import (
	"strings"
	"testing"

	"github.com/book-expert/tts-batch/internal/textsplit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentenceBoundaries(t *testing.T) {
	t.Parallel()

	s := textsplit.NewSplitter()
	chunks := s.Split("Hello world. This is a test. Goodbye.", 15)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hello world.", chunks[0])
	assert.Equal(t, "This is a test.", chunks[1])
	assert.Equal(t, "Goodbye.", chunks[2])
}

func TestSplitPacksSentencesWhenTheyFit(t *testing.T) {
	t.Parallel()

	s := textsplit.NewSplitter()
	chunks := s.Split("Hello world. This is a test. Goodbye.", 25)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Hello world.", chunks[0])
	assert.Equal(t, "This is a test. Goodbye.", chunks[1])
}

func TestSplitOversizeSentenceKeptWhole(t *testing.T) {
	t.Parallel()

	longSentence := strings.Repeat("a", 1199) + "."
	require.Len(t, longSentence, 1200)

	s := textsplit.NewSplitter()
	chunks := s.Split(longSentence, 800)

	require.Len(t, chunks, 1)
	assert.Equal(t, longSentence, chunks[0])
}

func TestSplitDiscardsEmptyAndWhitespaceOnlyInput(t *testing.T) {
	t.Parallel()

	s := textsplit.NewSplitter()

	assert.Empty(t, s.Split("", 100))
	assert.Empty(t, s.Split("   \n\t  ", 100))
}

func TestSplitIsDeterministic(t *testing.T) {
	t.Parallel()

	s := textsplit.NewSplitter()
	text := "One. Two! Three? Four.\nFive."

	first := s.Split(text, 10)
	second := s.Split(text, 10)

	assert.Equal(t, first, second)
}

func TestSplitPreservesInputOrder(t *testing.T) {
	t.Parallel()

	s := textsplit.NewSplitter()
	chunks := s.Split("Alpha. Bravo. Charlie. Delta.", 7)

	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"Alpha.", "Bravo.", "Charlie.", "Delta."}, chunks)
}
