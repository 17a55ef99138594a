package main

import (
	"context"
	"fmt"

	"github.com/book-expert/tts-batch/internal/elevenlabs"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Query remaining credit for every active credential and quarantine those below threshold",
		Args:  cobra.NoArgs,
		RunE:  runProbe,
	}

	return cmd
}

func runProbe(cmd *cobra.Command, _ []string) error {
	ctx, err := buildContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.log.Close() }()

	probe := elevenlabs.NewCreditProbe(ctx.client, ctx.credentials, ctx.cfg.APISettings.CreditThreshold, ctx.log)

	total, summaries := probe.Run(context.Background(), ctx.cfg.APISettings.Concurrency)

	for _, s := range summaries {
		if s.Err != nil {
			fmt.Printf("credential ...%s: probe failed: %v\n", lastFour(s.Credential.Value), s.Err)

			continue
		}

		status := "active"
		if s.Quarantine {
			status = "quarantined (below threshold)"
		}

		fmt.Printf("credential ...%s: %d remaining, %s\n", lastFour(s.Credential.Value), s.Remaining, status)
	}

	fmt.Printf("run %s: %d credits remaining across %d active credentials\n", ctx.runID, total, ctx.credentials.Len())

	return nil
}

// lastFour returns the final four characters of an API key for display
// purposes, never logging a credential in full.
func lastFour(value string) string {
	const tailLen = 4

	if len(value) <= tailLen {
		return value
	}

	return value[len(value)-tailLen:]
}
