package main

import (
	"github.com/book-expert/tts-batch/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the ttsbatch CLI: persistent flags shared by every
// subcommand, plus the api_settings/voice_settings flags config.RegisterFlags
// binds at the viper layer.
func NewRootCmd() *cobra.Command {
	defaults := config.DefaultPersistedConfig()

	cmd := &cobra.Command{
		Use:   "ttsbatch",
		Short: "Batch-convert long text into narrated audio via ElevenLabs",
		Long: "ttsbatch splits a source text into chunks, synthesizes each one " +
			"against the ElevenLabs API with credential rotation and retry, " +
			"and merges the results into a single audio file.",
	}

	cmd.PersistentFlags().String("config", "", "Path to the persisted JSON configuration document")
	cmd.PersistentFlags().String("log-dir", "", "Directory for ttsbatch.log (defaults to the OS temp directory)")
	cmd.PersistentFlags().String("keys-file", "credentials.txt", "Path to the line-delimited credential file")
	cmd.PersistentFlags().String("quarantine-file", "", "Path to the quarantine sink file (defaults to <keys-file>.quarantine)")
	cmd.PersistentFlags().String("proxy-provider-url", defaultProxyProviderURLTemplate, "Rotating proxy provider resolve URL, with {KEY} as the key placeholder")
	cmd.PersistentFlags().Bool("auto-merge", true, "Merge automatically once generation completes")
	cmd.PersistentFlags().Bool("keep-chunks", true, "Keep chunk audio files after a successful merge")
	cmd.PersistentFlags().Int("max-consecutive-credential-failures", config.DefaultMaxConsecutiveCredentialFailures,
		"Consecutive CredentialFailure responses against one credential before it is quarantined")

	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSplitCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newKeysCmd())

	return cmd
}
