package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/tts-batch/internal/chunkstore"
	"github.com/book-expert/tts-batch/internal/engine"
	"github.com/book-expert/tts-batch/internal/merge"
	"github.com/book-expert/tts-batch/internal/project"
	"github.com/book-expert/tts-batch/internal/telemetry"
	"github.com/spf13/cobra"
)

// errNoChunksFound is returned when a project directory's chunks_txt/
// contains no chunk_NNN.txt files for Store.Load to reindex.
var errNoChunksFound = errors.New("no chunks found to generate")

// stdoutSink is the telemetry.Sink that prints a run's progress lines to
// the terminal; every run also forwards the same lines to ctx.log through
// a telemetry.MultiSink.
type stdoutSink struct{}

func (stdoutSink) Log(line string) {
	fmt.Println(line)
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <project-dir>",
		Short: "Run the generation engine over an existing chunk set",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, err := buildContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.log.Close() }()

	store, err := chunkstore.New(args[0], ctx.log)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}

	n, err := store.Load()
	if err != nil {
		return fmt.Errorf("reindex chunk store: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", errNoChunksFound, args[0])
	}

	successes, _ := runEngine(store, ctx)

	if ctx.cfg.APISettings.AutoMerge && successes > 0 {
		layout := project.Fallback(args[0])

		return mergeStore(store, layout.OutputPath, ctx)
	}

	return nil
}

// runEngine wires the shared engine.Engine dependencies and drains its
// event channel to stderr-free stdout progress lines, returning the
// terminal success/failure counts. Shared by "generate" and "run".
func runEngine(store *chunkstore.Store, ctx *runtimeContext) (int, int) {
	// ctx.proxies is a concrete *proxy.Pool that is nil in no_proxy mode;
	// assigning it directly to the ProxyProvider interface parameter would
	// produce a non-nil interface wrapping a nil pointer, so it is only
	// passed through when actually set.
	var proxies engine.ProxyProvider
	if ctx.proxies != nil {
		proxies = ctx.proxies
	}

	eng := engine.New(store, ctx.credentials, proxies, ctx.client, ctx.cfg.VoiceSettings, ctx.cfg.APISettings, ctx.log)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		ctx.log.Warn("run %s: cancellation signal received, finishing in-flight chunks", ctx.runID)
		cancel()
	}()

	sink := telemetry.MultiSink{stdoutSink{}, telemetry.NewLoggerSink(ctx.log)}

	done := make(chan struct{})

	go func() {
		defer close(done)

		for evt := range eng.Events() {
			switch evt.Kind {
			case engine.EventChunkStateChanged:
				sink.Log(fmt.Sprintf("chunk %d: %s", evt.Number, evt.Status))
			case engine.EventRunCompleted:
				sink.Log(fmt.Sprintf("run %s: %d succeeded, %d failed", ctx.runID, evt.Successes, evt.Failures))
			}
		}
	}()

	successes, failures := eng.Run(runCtx)

	signal.Stop(sigCh)
	<-done

	return successes, failures
}

// mergeStore merges every chunk in store into outputPath, logging (not
// failing the command) on a precondition violation — generation may have
// left some chunks Fail, which a caller should diagnose via "keys"/logs
// rather than have "generate" exit non-zero for.
func mergeStore(store *chunkstore.Store, outputPath string, ctx *runtimeContext) error {
	m := merge.New(ctx.log)

	err := m.Merge(store.All(), outputPath, ctx.cfg.APISettings.KeepChunks, store)
	if err != nil {
		var preErr *merge.PreconditionError
		if errors.As(err, &preErr) {
			ctx.log.Warn("run %s: merge skipped, not every chunk succeeded: %v", ctx.runID, err)

			return nil
		}

		return fmt.Errorf("merge: %w", err)
	}

	fmt.Printf("run %s: merged output written to %s\n", ctx.runID, outputPath)

	return nil
}
