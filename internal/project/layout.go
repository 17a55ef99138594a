// Package project resolves the on-disk layout a batch run operates under
// and reads the source text that seeds it.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	chunksTextDirName  = "chunks_txt"
	chunksAudioDirName = "chunks_audio"
	projectDirSuffix   = "_tts"
	timestampFormat    = "20060102T150405Z"
)

// Layout is the set of paths a run reads from and writes to.
type Layout struct {
	ProjectDir     string
	ChunksTextDir  string
	ChunksAudioDir string
	OutputPath     string
}

// Resolve derives a Layout from a bound source text file path P:
// projectRoot = dirname(P), projectName = basename(P) without extension,
// projectDir = projectRoot/(projectName + "_tts"). The default merged
// output path is projectDir/(projectName + ".mp3").
func Resolve(sourcePath string) Layout {
	projectRoot := filepath.Dir(sourcePath)
	projectName := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	projectDir := filepath.Join(projectRoot, projectName+projectDirSuffix)

	return Layout{
		ProjectDir:     projectDir,
		ChunksTextDir:  filepath.Join(projectDir, chunksTextDirName),
		ChunksAudioDir: filepath.Join(projectDir, chunksAudioDirName),
		OutputPath:     filepath.Join(projectDir, projectName+".mp3"),
	}
}

// Fallback returns a Layout rooted at baseDir for runs with no bound
// source file. The output filename carries a UTC timestamp with one-second
// resolution, so fallback runs in different seconds do not collide; a run's
// correlation id belongs in its log lines, not in this filename, so that two
// Fallback calls within the same second resolve to the same path.
func Fallback(baseDir string) Layout {
	stamp := time.Now().UTC().Format(timestampFormat)

	return Layout{
		ProjectDir:     baseDir,
		ChunksTextDir:  filepath.Join(baseDir, chunksTextDirName),
		ChunksAudioDir: filepath.Join(baseDir, chunksAudioDirName),
		OutputPath:     filepath.Join(baseDir, fmt.Sprintf("merged_%s.mp3", stamp)),
	}
}

// LoadText reads the UTF-8 source text at path. Non-plain-text imports
// (.docx, .csv) are out of scope and are not handled here.
func LoadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("project: read source text: %w", err)
	}

	return string(data), nil
}
