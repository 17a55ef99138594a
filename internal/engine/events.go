package engine

import "github.com/book-expert/tts-batch/internal/chunkstore"

// EventKind distinguishes the two events the engine publishes.
type EventKind int

const (
	// EventChunkStateChanged reports a single chunk's status transition.
	EventChunkStateChanged EventKind = iota
	// EventRunCompleted reports that every worker has exited, with the run's
	// success/failure counts. After a cancellation, chunks may still be Queue.
	EventRunCompleted
)

// Event is published on the engine's event channel as the run progresses.
// A CLI or UI drains this channel to print progress without polling the
// store directly.
type Event struct {
	Kind      EventKind
	Number    int
	Status    chunkstore.Status
	Attempts  int
	Reason    string
	Successes int
	Failures  int
}
