package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrConfigFileNotFound is returned by Load when no persisted configuration
// exists at the given path and no defaults-only load was requested.
var ErrConfigFileNotFound = errors.New("config: no configuration file found")

// LoadOptions controls how Load resolves a PersistedConfig from flags,
// environment, and the on-disk JSON document.
type LoadOptions struct {
	// Cmd supplies CLI flags to bind, highest precedence.
	Cmd flagBinder
	// ConfigFile is an explicit path to the JSON configuration document.
	// When empty, Load looks for "ttsbatch.json" in the current directory.
	ConfigFile string
	// Defaults seeds viper's lowest-precedence layer.
	Defaults PersistedConfig
	// AllowMissingFile lets Load proceed with defaults when no file is found.
	AllowMissingFile bool
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultPersistedConfig returns the built-in defaults used when no
// configuration file or flag overrides a field.
func DefaultPersistedConfig() PersistedConfig {
	return PersistedConfig{
		APISettings: DefaultEngineConfig(),
		VoiceSettings: VoiceSettings{
			ModelID: ModelTurboV25,
		},
	}
}

// RegisterFlags attaches the CLI flags that Load binds at highest
// precedence, matching the "api_settings"/"voice_settings" JSON schema.
func RegisterFlags(fs *pflag.FlagSet, defaults PersistedConfig) {
	fs.Int("chunk-size", defaults.APISettings.MaxChunkSize, "Maximum characters per text chunk")
	fs.Int("concurrency", defaults.APISettings.Concurrency, "Number of concurrent synthesis workers")
	fs.Int("gen-delay-ms", defaults.APISettings.PerChunkDelayMS, "Delay between chunk dispatches on one worker, in milliseconds")
	fs.Int("max-retries", defaults.APISettings.MaxRetries, "Maximum synthesis attempts per chunk")
	fs.Int("timeout-s", defaults.APISettings.RequestTimeoutSeconds, "Per-request synthesis timeout in seconds")
	fs.Int("credit-threshold", defaults.APISettings.CreditThreshold, "Minimum remaining credit before a credential is quarantined")
	fs.String("proxy-mode", string(defaults.APISettings.ProxyMode), "Proxy routing mode (no_proxy|rotation)")
	fs.String("voice", defaults.VoiceSettings.VoiceID, "ElevenLabs voice id")
	fs.String("model", defaults.VoiceSettings.ModelID, "ElevenLabs model id")
	fs.Float64("stability", defaults.VoiceSettings.Stability, "Voice stability [0.0, 1.0]")
	fs.Float64("similarity", defaults.VoiceSettings.SimilarityBoost, "Voice similarity boost [0.0, 1.0]")
	fs.Float64("style", defaults.VoiceSettings.Style, "Voice style exaggeration [0.0, 1.0]")
	fs.Bool("speaker-boost", defaults.VoiceSettings.SpeakerBoost, "Enable speaker boost")
	fs.String("language-code", defaults.VoiceSettings.LanguageCode, "ISO language code")
}

// Load resolves a PersistedConfig from defaults, an optional JSON file, and
// TTSBATCH_-prefixed environment variables, with CLI flags taking highest
// precedence. Precedence order is flag > env > file > default, matching
// viper's standard resolution.
func Load(opts LoadOptions) (PersistedConfig, error) {
	v := viper.New()
	v.SetConfigType("json")

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return PersistedConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	registerAliases(v)

	v.SetEnvPrefix("TTSBATCH")
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("ttsbatch")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || !opts.AllowMissingFile {
			return PersistedConfig{}, fmt.Errorf("%w: %w", ErrConfigFileNotFound, err)
		}
	}

	var cfg PersistedConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return PersistedConfig{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return PersistedConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c PersistedConfig) {
	v.SetDefault("api_settings.chunk_size", c.APISettings.MaxChunkSize)
	v.SetDefault("api_settings.concurrency", c.APISettings.Concurrency)
	v.SetDefault("api_settings.gen_delay_ms", c.APISettings.PerChunkDelayMS)
	v.SetDefault("api_settings.max_retries", c.APISettings.MaxRetries)
	v.SetDefault("api_settings.timeout_s", c.APISettings.RequestTimeoutSeconds)
	v.SetDefault("api_settings.credit_threshold", c.APISettings.CreditThreshold)
	v.SetDefault("api_settings.proxy_mode", string(c.APISettings.ProxyMode))
	v.SetDefault("voice_settings.model", c.VoiceSettings.ModelID)
	v.SetDefault("voice_settings.voice", c.VoiceSettings.VoiceID)
	v.SetDefault("voice_settings.speed", c.VoiceSettings.Speed)
	v.SetDefault("voice_settings.stability", c.VoiceSettings.Stability)
	v.SetDefault("voice_settings.similarity", c.VoiceSettings.SimilarityBoost)
	v.SetDefault("voice_settings.style", c.VoiceSettings.Style)
	v.SetDefault("voice_settings.speaker_boost", c.VoiceSettings.SpeakerBoost)
	v.SetDefault("voice_settings.language_code", c.VoiceSettings.LanguageCode)
	v.SetDefault("proxy_links.proxy_links", c.ProxyLinks.Links)
	v.SetDefault("voices", c.Voices)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("api_settings.chunk_size", "chunk-size")
	v.RegisterAlias("api_settings.concurrency", "concurrency")
	v.RegisterAlias("api_settings.gen_delay_ms", "gen-delay-ms")
	v.RegisterAlias("api_settings.max_retries", "max-retries")
	v.RegisterAlias("api_settings.timeout_s", "timeout-s")
	v.RegisterAlias("api_settings.credit_threshold", "credit-threshold")
	v.RegisterAlias("api_settings.proxy_mode", "proxy-mode")
	v.RegisterAlias("voice_settings.voice", "voice")
	v.RegisterAlias("voice_settings.model", "model")
	v.RegisterAlias("voice_settings.stability", "stability")
	v.RegisterAlias("voice_settings.similarity", "similarity")
	v.RegisterAlias("voice_settings.style", "style")
	v.RegisterAlias("voice_settings.speaker_boost", "speaker-boost")
	v.RegisterAlias("voice_settings.language_code", "language-code")
}
