// Package textsplit segments a long source text into size-bounded,
// sentence-respecting chunks suitable for individual synthesis requests.
package textsplit

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceBoundaryPattern matches a sentence terminator (., !, or ?) that is
// followed by whitespace, a newline, or the end of the string. The
// terminator stays attached to the sentence it closes.
const sentenceBoundaryPattern = `[.!?](?:\s+|\n+|$)`

// Splitter packs sentences into chunks no larger than a configured maximum
// size, holding its compiled boundary pattern so repeated calls avoid
// recompiling it.
type Splitter struct {
	boundary *regexp.Regexp
}

// NewSplitter returns a Splitter with its sentence-boundary pattern
// precompiled.
func NewSplitter() *Splitter {
	return &Splitter{
		boundary: regexp.MustCompile(sentenceBoundaryPattern),
	}
}

// Split tokenizes text into sentences and greedily packs them into chunks no
// longer than maxSize runes. A single sentence longer than maxSize is
// emitted unsplit as its own chunk. Empty or whitespace-only chunks are
// discarded. Output order matches input order and splitting is
// deterministic for identical input.
func (s *Splitter) Split(text string, maxSize int) []string {
	sentences := s.sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(sentences))

	var (
		current    strings.Builder
		currentLen int
	)

	for _, sentence := range sentences {
		sentenceLen := utf8.RuneCountInString(sentence)

		switch {
		case currentLen == 0:
			current.WriteString(sentence)
			currentLen = sentenceLen
		case currentLen+1+sentenceLen <= maxSize:
			current.WriteByte(' ')
			current.WriteString(sentence)
			currentLen += 1 + sentenceLen
		default:
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(sentence)
			currentLen = sentenceLen
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// sentences splits text at sentence boundaries and trims surrounding
// whitespace from each result, dropping any that are left empty.
func (s *Splitter) sentences(text string) []string {
	indices := s.boundary.FindAllStringIndex(text, -1)

	sentences := make([]string, 0, len(indices)+1)

	start := 0

	for _, idx := range indices {
		end := idx[1]

		sentence := strings.TrimSpace(text[start:end])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		start = end
	}

	if start < len(text) {
		tail := strings.TrimSpace(text[start:])
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}

	return sentences
}
