package main

import (
	"fmt"

	"github.com/book-expert/tts-batch/internal/chunkstore"
	"github.com/book-expert/tts-batch/internal/project"
	"github.com/book-expert/tts-batch/internal/textsplit"
	"github.com/spf13/cobra"
)

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <source-text-file>",
		Short: "Split a source text file into chunks under its project directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runSplit,
	}

	return cmd
}

func runSplit(cmd *cobra.Command, args []string) error {
	ctx, err := buildContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.log.Close() }()

	layout := project.Resolve(args[0])

	store, err := splitIntoStore(layout, args[0], ctx.cfg.APISettings.MaxChunkSize, ctx)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: split into %d chunks under %s\n", ctx.runID, len(store.All()), layout.ProjectDir)

	return nil
}

// splitIntoStore reads sourcePath, splits it into chunks, and persists them
// under the project layout's text directory. Shared by "split" and "run".
func splitIntoStore(layout project.Layout, sourcePath string, maxChunkSize int, ctx *runtimeContext) (*chunkstore.Store, error) {
	text, err := project.LoadText(sourcePath)
	if err != nil {
		return nil, err
	}

	store, err := chunkstore.New(layout.ProjectDir, ctx.log)
	if err != nil {
		return nil, fmt.Errorf("create chunk store: %w", err)
	}

	splitter := textsplit.NewSplitter()

	pieces := splitter.Split(text, maxChunkSize)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("split: %s produced no chunks", sourcePath)
	}

	if _, err := store.Create(pieces); err != nil {
		return nil, fmt.Errorf("create chunks: %w", err)
	}

	return store, nil
}
