package credential

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// credentialPrefix is the required prefix for a line to be accepted as
	// a credential from a file source.
	credentialPrefix = "sk_"
	// minCredentialLength is the minimum accepted length for a credential
	// read from a file source.
	minCredentialLength = 40
	commentPrefix       = "#"
)

// ErrNoCredentialsFound is returned when a source yields zero valid
// credential lines.
var ErrNoCredentialsFound = errors.New("credential: no credentials found")

// Source loads a set of opaque credential strings. FileSource is the
// file-backed implementation; a remote admin-panel client is consumed as a
// plain func() ([]string, error) via FuncSource, per the interface boundary
// named in the system scope.
type Source interface {
	Load() ([]string, error)
}

// FileSource reads credentials from a line-delimited text file. A line is
// accepted iff it begins with "sk_" and has length >= 40. Blank lines and
// lines beginning with "#" are ignored.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by the text file at path.
func NewFileSource(path string) FileSource {
	return FileSource{Path: path}
}

// Load reads and validates credential lines from the file.
func (f FileSource) Load() ([]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("credential: open source file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var values []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		if IsValidCredential(line) {
			values = append(values, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("credential: read source file: %w", err)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentialsFound, f.Path)
	}

	return values, nil
}

// IsValidCredential reports whether a line matches the file-source
// credential schema.
func IsValidCredential(line string) bool {
	return strings.HasPrefix(line, credentialPrefix) && len(line) >= minCredentialLength
}

// FuncSource adapts an arbitrary fetch function — such as the out-of-scope
// remote admin-panel client's FetchAssignedCredentials — into a Source. Its
// values are placed directly into the pool with no prefix/length check,
// matching the "alternative remote source" external interface.
type FuncSource func() ([]string, error)

// Load invokes the wrapped function.
func (f FuncSource) Load() ([]string, error) {
	return f()
}
