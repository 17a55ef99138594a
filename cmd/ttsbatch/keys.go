package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List active credentials loaded from the keys file (remaining credit is not queried and shows as 0)",
		Args:  cobra.NoArgs,
		RunE:  runKeys,
	}

	return cmd
}

func runKeys(cmd *cobra.Command, _ []string) error {
	ctx, err := buildContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.log.Close() }()

	creds := ctx.credentials.Snapshot()
	if len(creds) == 0 {
		fmt.Println("no active credentials loaded")

		return nil
	}

	for _, c := range creds {
		fmt.Printf("credential ...%s: remaining credit %d\n", lastFour(c.Value), c.RemainingCredit)
	}

	fmt.Printf("%d active credentials\n", len(creds))

	return nil
}
