package main

import (
	"fmt"

	"github.com/book-expert/tts-batch/internal/chunkstore"
	"github.com/book-expert/tts-batch/internal/project"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "merge <project-dir>",
		Short: "Merge an existing chunk set into a single audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, args, outputPath)
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "Merged output path (defaults to <project-dir>/merged_<UTC-timestamp>.mp3)")

	return cmd
}

func runMerge(cmd *cobra.Command, args []string, outputPath string) error {
	ctx, err := buildContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.log.Close() }()

	store, err := chunkstore.New(args[0], ctx.log)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}

	if _, err := store.Load(); err != nil {
		return fmt.Errorf("reindex chunk store: %w", err)
	}

	if outputPath == "" {
		layout := project.Fallback(args[0])
		outputPath = layout.OutputPath
	}

	return mergeStore(store, outputPath, ctx)
}
