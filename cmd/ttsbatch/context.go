package main

import (
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-batch/internal/config"
	"github.com/book-expert/tts-batch/internal/credential"
	"github.com/book-expert/tts-batch/internal/elevenlabs"
	"github.com/book-expert/tts-batch/internal/proxy"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// defaultProxyProviderURLTemplate is the rotating-proxy provider's resolve
// endpoint, parameterized by the opaque key substring "{KEY}". Overridden
// by --proxy-provider-url for deployments against a different provider.
const defaultProxyProviderURLTemplate = "https://proxy-provider.example.com/api/resolve?key={KEY}"

const logFileName = "ttsbatch.log"

// runtimeContext bundles the dependencies every subcommand needs, built
// once in each command's RunE from persistent flags and the persisted
// configuration.
type runtimeContext struct {
	cfg         config.PersistedConfig
	log         *logger.Logger
	runID       string
	credentials *credential.Pool
	proxies     *proxy.Pool
	client      *elevenlabs.Client
}

// buildContext loads configuration, opens the log file, and wires the
// credential pool, proxy pool, and ElevenLabs client shared by every
// subcommand. Callers are responsible for closing ctx.log.
func buildContext(cmd *cobra.Command) (*runtimeContext, error) {
	defaults := config.DefaultPersistedConfig()

	cfgFile, _ := cmd.Flags().GetString("config")

	logDir, _ := cmd.Flags().GetString("log-dir")
	if logDir == "" {
		logDir = os.TempDir()
	}

	autoMerge, _ := cmd.Flags().GetBool("auto-merge")
	keepChunks, _ := cmd.Flags().GetBool("keep-chunks")
	maxConsecutiveFailures, _ := cmd.Flags().GetInt("max-consecutive-credential-failures")

	cfg, err := config.Load(config.LoadOptions{
		Cmd:              cmd.Root(),
		ConfigFile:       cfgFile,
		Defaults:         defaults,
		AllowMissingFile: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	cfg.APISettings.AutoMerge = autoMerge
	cfg.APISettings.KeepChunks = keepChunks
	cfg.APISettings.MaxConsecutiveCredentialFailures = maxConsecutiveFailures

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	runID := uuid.NewString()
	log.Info("run %s: starting ttsbatch %s", runID, cmd.Name())

	credentials, err := buildCredentialPool(cmd, &cfg.APISettings, log)
	if err != nil {
		return nil, err
	}

	proxies, err := buildProxyPool(cmd, cfg, log)
	if err != nil {
		return nil, err
	}

	client := elevenlabs.NewClient(
		time.Duration(cfg.APISettings.RequestTimeoutSeconds)*time.Second,
		cfg.APISettings.Concurrency,
	)

	return &runtimeContext{
		cfg:         cfg,
		log:         log,
		runID:       runID,
		credentials: credentials,
		proxies:     proxies,
		client:      client,
	}, nil
}

func buildCredentialPool(cmd *cobra.Command, cfg *config.EngineConfig, log *logger.Logger) (*credential.Pool, error) {
	keysFile, _ := cmd.Flags().GetString("keys-file")
	quarantineFile, _ := cmd.Flags().GetString("quarantine-file")

	if quarantineFile == "" {
		quarantineFile = keysFile + ".quarantine"
	}

	sink := credential.NewFileSink(quarantineFile)

	pool := credential.NewPool(sink, log).WithMaxConsecutiveFailures(cfg.MaxConsecutiveCredentialFailures)

	if err := pool.Load(credential.NewFileSource(keysFile)); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	return pool, nil
}

func buildProxyPool(cmd *cobra.Command, cfg config.PersistedConfig, log *logger.Logger) (*proxy.Pool, error) {
	if cfg.APISettings.ProxyMode != config.ProxyModeRotation {
		return nil, nil //nolint:nilnil // absence of a proxy pool is a valid, common state in no_proxy mode.
	}

	providerURL, _ := cmd.Flags().GetString("proxy-provider-url")

	resolver := proxy.NewHTTPResolver(providerURL, nil)

	return proxy.NewPool(cfg.ProxyLinks.Links, resolver, log), nil
}
