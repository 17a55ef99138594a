// Package merge concatenates a chunk set's audio files into one output
// artifact. Merge is strict: every precondition is checked before any byte
// is written, so a failed merge never disturbs a pre-existing file at the
// output path.
package merge

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-batch/internal/chunkstore"
)

const (
	filePermissions = 0o600
	// sizeDeltaWarningRatio is the relative difference between the sum of
	// input chunk sizes and the final output size above which a warning
	// (never a failure) is logged.
	sizeDeltaWarningRatio = 0.05
)

// Static errors.
var (
	ErrNoChunks        = errors.New("merge: no chunks to merge")
	ErrOutputPathEmpty = errors.New("merge: output path cannot be empty")
	ErrEmptyOutput     = errors.New("merge: merged output is empty")
)

// PreconditionError names the chunk that failed a merge precondition.
// errors.As callers can recover the offending chunk number.
type PreconditionError struct {
	Number int
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("merge: chunk %d: %s", e.Number, e.Reason)
}

func newPreconditionError(number int, reason string) error {
	return &PreconditionError{Number: number, Reason: reason}
}

// Merger validates and concatenates chunk audio files in ascending
// chunk-number order.
type Merger struct {
	log *logger.Logger
}

// New returns a Merger. log may be nil.
func New(log *logger.Logger) *Merger {
	return &Merger{log: log}
}

// Merge writes outputPath as the byte-exact concatenation
// audio(1) ++ audio(2) ++ ... ++ audio(N). It validates every chunk before
// opening outputPath, so a precondition failure leaves any file already at
// outputPath untouched. When keepChunks is false, each chunk's audio file
// is deleted after a successful merge.
func (m *Merger) Merge(chunks []chunkstore.Chunk, outputPath string, keepChunks bool, store *chunkstore.Store) error {
	if outputPath == "" {
		return ErrOutputPathEmpty
	}

	if len(chunks) == 0 {
		return ErrNoChunks
	}

	ordered, err := m.validate(chunks)
	if err != nil {
		return err
	}

	inputSize, err := m.concatenate(ordered, outputPath)
	if err != nil {
		return err
	}

	if m.log != nil {
		m.log.Info("merge: wrote %s from %d chunks", outputPath, len(ordered))
	}

	if err := checkOutputSize(outputPath, inputSize, m.log); err != nil {
		return err
	}

	if !keepChunks && store != nil {
		for _, c := range ordered {
			if err := store.DeleteAudio(c.Number); err != nil && m.log != nil {
				m.log.Warn("merge: failed to delete chunk %d audio: %v", c.Number, err)
			}
		}
	}

	return nil
}

// validate sorts chunks ascending by Number and checks that every chunk is
// Success, that numbers form exactly {1..N}, and that every AudioFile
// exists, is readable, and is non-empty.
func (m *Merger) validate(chunks []chunkstore.Chunk) ([]chunkstore.Chunk, error) {
	ordered := append([]chunkstore.Chunk(nil), chunks...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	for i, c := range ordered {
		expected := i + 1
		if c.Number != expected {
			return nil, newPreconditionError(c.Number, fmt.Sprintf("expected chunk number %d in sequence", expected))
		}

		if c.Status != chunkstore.StatusSuccess {
			return nil, newPreconditionError(c.Number, fmt.Sprintf("status is %s, not Success", c.Status))
		}

		info, err := os.Stat(c.AudioFile)
		if err != nil {
			return nil, newPreconditionError(c.Number, fmt.Sprintf("audio file unreadable: %v", err))
		}

		if info.Size() == 0 {
			return nil, newPreconditionError(c.Number, "audio file is empty")
		}
	}

	return ordered, nil
}

// concatenate opens outputPath (truncating any prior file) and copies each
// chunk's audio bytes into it in order, returning the sum of input sizes.
func (m *Merger) concatenate(ordered []chunkstore.Chunk, outputPath string) (int64, error) {
	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return 0, fmt.Errorf("merge: open output: %w", err)
	}
	defer func() { _ = out.Close() }()

	var total int64

	for _, c := range ordered {
		n, err := copyChunkAudio(out, c.AudioFile)
		if err != nil {
			return 0, fmt.Errorf("merge: copy chunk %d audio: %w", c.Number, err)
		}

		total += n
	}

	return total, nil
}

func copyChunkAudio(out io.Writer, audioFile string) (int64, error) {
	in, err := os.Open(audioFile)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	return io.Copy(out, in)
}

// checkOutputSize asserts the output is non-empty and logs an informational
// warning (never a failure) when the merged file's size deviates from the
// sum of input chunk sizes by more than sizeDeltaWarningRatio.
func checkOutputSize(outputPath string, inputSize int64, log *logger.Logger) error {
	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("merge: stat output: %w", err)
	}

	if info.Size() == 0 {
		return ErrEmptyOutput
	}

	if inputSize == 0 {
		return nil
	}

	delta := math.Abs(float64(info.Size()-inputSize)) / float64(inputSize)
	if delta > sizeDeltaWarningRatio && log != nil {
		log.Warn("merge: output size %d deviates %.1f%% from input sum %d", info.Size(), delta*100, inputSize)
	}

	return nil
}
