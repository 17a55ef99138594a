package chunkstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/book-expert/logger"
)

const (
	txtDirName      = "chunks_txt"
	audioDirName    = "chunks_audio"
	txtFileFormat   = "chunk_%03d.txt"
	audioFileFormat = "chunk_%03d.mp3"
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Static errors.
var (
	ErrChunkNotFound     = errors.New("chunkstore: chunk not found")
	ErrNotQueued         = errors.New("chunkstore: chunk is not in Queue state")
	ErrNotFailOrSuccess  = errors.New("chunkstore: chunk is not in Fail or Success state")
	ErrEmptyChunkContent = errors.New("chunkstore: chunk content cannot be empty")
)

func newChunkNotFoundError(number int) error {
	return fmt.Errorf("%w: %d", ErrChunkNotFound, number)
}

var txtFilePattern = regexp.MustCompile(`^chunk_(\d+)\.txt$`)

// Store owns the on-disk chunk layout and the in-memory chunk map. One
// mutex guards the map so that the Queue -> Pending claim transition is
// atomic with respect to every other mutation.
type Store struct {
	mu       sync.Mutex
	txtDir   string
	audioDir string
	chunks   map[int]*Chunk
	log      *logger.Logger
}

// New creates the chunk text/audio directories under projectDir if absent
// and returns an empty Store ready for Create.
func New(projectDir string, log *logger.Logger) (*Store, error) {
	txtDir := filepath.Join(projectDir, txtDirName)
	audioDir := filepath.Join(projectDir, audioDirName)

	if err := os.MkdirAll(txtDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("chunkstore: create text dir: %w", err)
	}

	if err := os.MkdirAll(audioDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("chunkstore: create audio dir: %w", err)
	}

	return &Store{
		txtDir:   txtDir,
		audioDir: audioDir,
		chunks:   make(map[int]*Chunk),
		log:      log,
	}, nil
}

// Create writes text files for each chunk content and populates the
// in-memory map with StatusQueue records numbered densely from 1.
func (s *Store) Create(texts []string) ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Chunk, 0, len(texts))

	for i, content := range texts {
		if content == "" {
			return nil, ErrEmptyChunkContent
		}

		number := i + 1

		textPath := filepath.Join(s.txtDir, fmt.Sprintf(txtFileFormat, number))
		if err := atomicWriteFile(textPath, []byte(content)); err != nil {
			return nil, fmt.Errorf("chunkstore: write chunk %d text: %w", number, err)
		}

		chunk := &Chunk{
			Number:   number,
			Content:  content,
			TextFile: textPath,
			Status:   StatusQueue,
		}

		s.chunks[number] = chunk
		result = append(result, *chunk)
	}

	if s.log != nil {
		s.log.Info("chunkstore: created %d chunks under %s", len(result), s.txtDir)
	}

	return result, nil
}

// Load reindexes the in-memory chunk map from an on-disk chunks_txt/
// directory, for a Store opened by a later process invocation against
// chunks an earlier invocation already created ("generate"/"merge" run
// against an existing project directory). Every chunk_NNN.txt file
// repopulates a StatusQueue chunk, promoted to StatusSuccess when a
// matching chunk_NNN.mp3 already exists under chunks_audio/. Attempts
// counts are not persisted and reset to zero on reindex.
func (s *Store) Load() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.txtDir)
	if err != nil {
		return 0, fmt.Errorf("chunkstore: read text dir: %w", err)
	}

	chunks := make(map[int]*Chunk, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		match := txtFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		number, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		textPath := filepath.Join(s.txtDir, entry.Name())

		content, err := os.ReadFile(textPath)
		if err != nil {
			return 0, fmt.Errorf("chunkstore: read chunk %d text: %w", number, err)
		}

		chunk := &Chunk{
			Number:   number,
			Content:  string(content),
			TextFile: textPath,
			Status:   StatusQueue,
		}

		audioPath := filepath.Join(s.audioDir, fmt.Sprintf(audioFileFormat, number))
		if _, err := os.Stat(audioPath); err == nil {
			chunk.AudioFile = audioPath
			chunk.Status = StatusSuccess
		}

		chunks[number] = chunk
	}

	s.chunks = chunks

	if s.log != nil {
		s.log.Info("chunkstore: reindexed %d chunks under %s", len(chunks), s.txtDir)
	}

	return len(chunks), nil
}

// Claim atomically transitions a chunk from StatusQueue to StatusPending and
// returns its new value. It returns false if the chunk does not exist or is
// not currently Queued, so that no two callers can ever claim the same
// chunk.
func (s *Store) Claim(number int) (Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[number]
	if !ok || chunk.Status != StatusQueue {
		return Chunk{}, false
	}

	chunk.Status = StatusPending

	return *chunk, true
}

// IncrementAttempts bumps the informational attempt counter for a chunk and
// returns the new value. The generation engine calls this once per
// dispatched synthesis attempt, including attempts that end in
// CredentialFailure.
func (s *Store) IncrementAttempts(number int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[number]
	if !ok {
		return 0, newChunkNotFoundError(number)
	}

	chunk.Attempts++

	return chunk.Attempts, nil
}

// CompleteSuccess persists audio bytes for a chunk and transitions it to
// StatusSuccess. The audio file is written before the status flips, so a
// reader never observes StatusSuccess without a corresponding file.
func (s *Store) CompleteSuccess(number int, audioBytes []byte) error {
	audioPath, err := s.writeAudio(number, audioBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[number]
	if !ok {
		return newChunkNotFoundError(number)
	}

	chunk.AudioFile = audioPath
	chunk.Status = StatusSuccess

	return nil
}

// CompleteFail transitions a chunk to StatusFail. Used once retries are
// exhausted, a PermanentFailure is classified, or no credential is left.
func (s *Store) CompleteFail(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[number]
	if !ok {
		return newChunkNotFoundError(number)
	}

	chunk.Status = StatusFail

	return nil
}

// Requeue transitions a chunk back to Queue, whatever its current status.
// The generation engine calls it for a claimed chunk when the run is
// cancelled before the chunk reaches a terminal state.
func (s *Store) Requeue(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[number]
	if !ok {
		return newChunkNotFoundError(number)
	}

	chunk.Status = StatusQueue

	return nil
}

// Reset transitions a Fail or Success chunk back to Queue and deletes any
// existing audio file, for user-requested regeneration. It refuses to reset
// a chunk that is Queue or Pending, since those states have no stale audio
// to discard.
func (s *Store) Reset(number int) error {
	s.mu.Lock()

	chunk, ok := s.chunks[number]
	if !ok {
		s.mu.Unlock()

		return newChunkNotFoundError(number)
	}

	if chunk.Status != StatusFail && chunk.Status != StatusSuccess {
		s.mu.Unlock()

		return fmt.Errorf("%w: chunk %d is %s", ErrNotFailOrSuccess, number, chunk.Status)
	}

	audioFile := chunk.AudioFile
	chunk.AudioFile = ""
	chunk.Status = StatusQueue
	s.mu.Unlock()

	if audioFile != "" {
		if err := s.DeleteAudio(number); err != nil {
			return err
		}
	}

	return nil
}

// WriteAudio persists audio bytes for a chunk without changing its status.
// CompleteSuccess uses this internally; it is also exposed so callers that
// manage their own state transitions (tests, regeneration flows) can reuse
// it.
func (s *Store) WriteAudio(number int, audioBytes []byte) (string, error) {
	return s.writeAudio(number, audioBytes)
}

func (s *Store) writeAudio(number int, audioBytes []byte) (string, error) {
	s.mu.Lock()
	_, ok := s.chunks[number]
	s.mu.Unlock()

	if !ok {
		return "", newChunkNotFoundError(number)
	}

	audioPath := filepath.Join(s.audioDir, fmt.Sprintf(audioFileFormat, number))
	if err := atomicWriteFile(audioPath, audioBytes); err != nil {
		return "", fmt.Errorf("chunkstore: write chunk %d audio: %w", number, err)
	}

	return audioPath, nil
}

// DeleteAudio removes a chunk's audio file if present. It is idempotent: a
// missing file is not an error.
func (s *Store) DeleteAudio(number int) error {
	s.mu.Lock()
	chunk, ok := s.chunks[number]
	s.mu.Unlock()

	if !ok {
		return newChunkNotFoundError(number)
	}

	audioPath := filepath.Join(s.audioDir, fmt.Sprintf(audioFileFormat, number))

	err := os.Remove(audioPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chunkstore: delete chunk %d audio: %w", number, err)
	}

	_ = chunk

	return nil
}

// ByNumber returns a copy of the chunk with the given number.
func (s *Store) ByNumber(number int) (Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[number]
	if !ok {
		return Chunk{}, false
	}

	return *chunk, true
}

// All returns a copy of every chunk, ordered ascending by Number.
func (s *Store) All() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Chunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		result = append(result, *chunk)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })

	return result
}

// PendingOrQueued returns a copy of every chunk not yet in a terminal state,
// ordered ascending by Number.
func (s *Store) PendingOrQueued() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Chunk, 0, len(s.chunks))

	for _, chunk := range s.chunks {
		if chunk.Status == StatusQueue || chunk.Status == StatusPending {
			result = append(result, *chunk)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })

	return result
}

// atomicWriteFile writes data to a temp file in the same directory as path
// and renames it into place, so a reader never observes a partially written
// file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpName, filePermissions); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("move temp file into place: %w", err)
	}

	return nil
}
