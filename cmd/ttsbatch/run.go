package main

import (
	"fmt"

	"github.com/book-expert/tts-batch/internal/project"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <source-text-file>",
		Short: "Split, generate, and merge a source text file in one pass",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
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

	successes, _ := runEngine(store, ctx)

	if ctx.cfg.APISettings.AutoMerge && successes > 0 {
		return mergeStore(store, layout.OutputPath, ctx)
	}

	return nil
}
