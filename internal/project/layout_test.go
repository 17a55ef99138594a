package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/tts-batch/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDerivesLayoutFromSourcePath(t *testing.T) {
	layout := project.Resolve("/books/memoir/chapter1.txt")

	assert.Equal(t, "/books/memoir/chapter1_tts", layout.ProjectDir)
	assert.Equal(t, "/books/memoir/chapter1_tts/chunks_txt", layout.ChunksTextDir)
	assert.Equal(t, "/books/memoir/chapter1_tts/chunks_audio", layout.ChunksAudioDir)
	assert.Equal(t, "/books/memoir/chapter1_tts/chapter1.mp3", layout.OutputPath)
}

func TestResolveStripsOnlyTheFinalExtension(t *testing.T) {
	layout := project.Resolve("/data/v1.2.final.txt")

	assert.Equal(t, "/data/v1.2.final_tts", layout.ProjectDir)
	assert.Equal(t, "/data/v1.2.final_tts/v1.2.final.mp3", layout.OutputPath)
}

func TestFallbackProducesTimestampedOutputUnderBaseDir(t *testing.T) {
	base := t.TempDir()

	layout := project.Fallback(base)

	assert.Equal(t, base, layout.ProjectDir)
	assert.Equal(t, filepath.Join(base, "chunks_txt"), layout.ChunksTextDir)
	assert.True(t, filepath.Dir(layout.OutputPath) == base)
	assert.Contains(t, filepath.Base(layout.OutputPath), "merged_")
	assert.Contains(t, filepath.Base(layout.OutputPath), ".mp3")
}

func TestLoadTextReadsSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	text, err := project.LoadText(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestLoadTextReturnsErrorForMissingFile(t *testing.T) {
	_, err := project.LoadText(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
