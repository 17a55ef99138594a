// Package config defines the persisted settings for the TTS batch pipeline:
// engine behavior, voice parameters, proxy keys, and the saved voice
// catalog. Values are validated eagerly so a run refuses to start rather
// than fail midway through a chunk.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ProxyMode selects whether the generation engine routes requests through a
// rotating upstream proxy.
type ProxyMode string

const (
	// ProxyModeNone disables proxy use entirely.
	ProxyModeNone ProxyMode = "no_proxy"
	// ProxyModeRotation resolves a fresh proxy endpoint from the pool as needed.
	ProxyModeRotation ProxyMode = "rotation"
)

// Model IDs accepted by the ElevenLabs synthesis API.
const (
	ModelV3             = "eleven_v3"
	ModelFlashV25       = "eleven_flash_v2_5"
	ModelFlashV2        = "eleven_flash_v2"
	ModelTurboV25       = "eleven_turbo_v2_5"
	ModelTurboV2        = "eleven_turbo_v2"
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

var validModels = []string{
	ModelV3,
	ModelFlashV25,
	ModelFlashV2,
	ModelTurboV25,
	ModelTurboV2,
	ModelMultilingualV2,
}

// Default values applied by Validate when a numeric field is left at its
// zero value.
const (
	DefaultMaxChunkSize                     = 800
	DefaultConcurrency                      = 4
	DefaultPerChunkDelayMS                  = 0
	DefaultMaxRetries                       = 3
	DefaultRequestTimeoutSeconds            = 30
	DefaultCreditThreshold                  = 1000
	DefaultMaxConsecutiveCredentialFailures = 3
)

const commaSeparator = ", "

// Static errors for EngineConfig and VoiceSettings validation.
var (
	ErrMaxChunkSizeInvalid  = errors.New("config: max_chunk_size must be positive")
	ErrConcurrencyInvalid   = errors.New("config: concurrency must be >= 1")
	ErrMaxRetriesInvalid    = errors.New("config: max_retries must be >= 1")
	ErrRequestTimeoutBad    = errors.New("config: timeout_s must be positive")
	ErrCreditThresholdBad   = errors.New("config: credit_threshold must be >= 0")
	ErrProxyModeInvalid     = errors.New("config: proxy_mode must be no_proxy or rotation")
	ErrModelIDInvalid       = errors.New("config: model is not a recognized ElevenLabs model")
	ErrVoiceIDEmpty         = errors.New("config: voice is required")
	ErrStabilityOutOfRange  = errors.New("config: stability must be within [0.0, 1.0]")
	ErrSimilarityOutOfRange = errors.New("config: similarity must be within [0.0, 1.0]")
	ErrStyleOutOfRange      = errors.New("config: style must be within [0.0, 1.0]")
)

func newModelIDError(got string) error {
	return fmt.Errorf("%w: %q (valid: %s)", ErrModelIDInvalid, got, strings.Join(validModels, commaSeparator))
}

// EngineConfig controls the generation engine's concurrency and retry
// policy. JSON tags match the persisted "api_settings" object.
type EngineConfig struct {
	MaxChunkSize                      int       `mapstructure:"chunk_size" json:"chunk_size"`
	Concurrency                       int       `mapstructure:"concurrency" json:"concurrency"`
	PerChunkDelayMS                   int       `mapstructure:"gen_delay_ms" json:"gen_delay_ms"`
	MaxRetries                        int       `mapstructure:"max_retries" json:"max_retries"`
	RequestTimeoutSeconds             int       `mapstructure:"timeout_s" json:"timeout_s"`
	CreditThreshold                   int       `mapstructure:"credit_threshold" json:"credit_threshold"`
	ProxyMode                         ProxyMode `mapstructure:"proxy_mode" json:"proxy_mode"`
	MaxConsecutiveCredentialFailures  int       `mapstructure:"-" json:"-"`
	AutoMerge                         bool      `mapstructure:"-" json:"-"`
	KeepChunks                        bool      `mapstructure:"-" json:"-"`
}

// DefaultEngineConfig returns the spec-mandated defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxChunkSize:                     DefaultMaxChunkSize,
		Concurrency:                      DefaultConcurrency,
		PerChunkDelayMS:                  DefaultPerChunkDelayMS,
		MaxRetries:                       DefaultMaxRetries,
		RequestTimeoutSeconds:            DefaultRequestTimeoutSeconds,
		CreditThreshold:                  DefaultCreditThreshold,
		ProxyMode:                        ProxyModeNone,
		MaxConsecutiveCredentialFailures: DefaultMaxConsecutiveCredentialFailures,
		AutoMerge:                        true,
		KeepChunks:                       true,
	}
}

// Validate fills zero-valued fields with defaults and rejects impossible
// configurations.
func (c *EngineConfig) Validate() error {
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}

	if c.MaxChunkSize < 0 {
		return ErrMaxChunkSizeInvalid
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.Concurrency < 1 {
		return ErrConcurrencyInvalid
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}

	if c.MaxRetries < 1 {
		return ErrMaxRetriesInvalid
	}

	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	if c.RequestTimeoutSeconds < 0 {
		return ErrRequestTimeoutBad
	}

	if c.CreditThreshold < 0 {
		return ErrCreditThresholdBad
	}

	if c.ProxyMode == "" {
		c.ProxyMode = ProxyModeNone
	}

	if c.ProxyMode != ProxyModeNone && c.ProxyMode != ProxyModeRotation {
		return ErrProxyModeInvalid
	}

	if c.MaxConsecutiveCredentialFailures == 0 {
		c.MaxConsecutiveCredentialFailures = DefaultMaxConsecutiveCredentialFailures
	}

	return nil
}

// VoiceSettings configures the voice, model, and delivery parameters sent
// with every synthesis request. JSON tags match the persisted
// "voice_settings" object; Speed is accepted from legacy configuration
// files but is not forwarded to the synthesis request.
type VoiceSettings struct {
	ModelID         string  `mapstructure:"model" json:"model"`
	VoiceID         string  `mapstructure:"voice" json:"voice"`
	Speed           float64 `mapstructure:"speed" json:"speed"`
	Stability       float64 `mapstructure:"stability" json:"stability"`
	SimilarityBoost float64 `mapstructure:"similarity" json:"similarity"`
	Style           float64 `mapstructure:"style" json:"style"`
	SpeakerBoost    bool    `mapstructure:"speaker_boost" json:"speaker_boost"`
	LanguageCode    string  `mapstructure:"language_code" json:"language_code"`
}

// Validate checks voice settings against the ranges and enumeration fixed
// by the ElevenLabs API contract.
func (v *VoiceSettings) Validate() error {
	if v.VoiceID == "" {
		return ErrVoiceIDEmpty
	}

	if v.ModelID == "" {
		v.ModelID = ModelTurboV25
	}

	if !slices.Contains(validModels, v.ModelID) {
		return newModelIDError(v.ModelID)
	}

	if v.Stability < 0.0 || v.Stability > 1.0 {
		return ErrStabilityOutOfRange
	}

	if v.SimilarityBoost < 0.0 || v.SimilarityBoost > 1.0 {
		return ErrSimilarityOutOfRange
	}

	if v.Style < 0.0 || v.Style > 1.0 {
		return ErrStyleOutOfRange
	}

	return nil
}

// IsV3 reports whether the configured model is the v3 model, which accepts
// only the Stability voice-setting field in its request body.
func (v *VoiceSettings) IsV3() bool {
	return v.ModelID == ModelV3
}

// Voice names a saved entry in the persisted voice catalog.
type Voice struct {
	ID   string `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

// ProxyLinks is the persisted set of opaque proxy keys (or full proxy URLs)
// that ProxyPool resolves against the upstream provider.
type ProxyLinks struct {
	Links []string `mapstructure:"proxy_links" json:"proxy_links"`
}

// PersistedConfig is the full on-disk configuration document, matching the
// JSON schema fixed by the external interface: api_settings, voice_settings,
// proxy_links, voices.
type PersistedConfig struct {
	APISettings   EngineConfig  `mapstructure:"api_settings" json:"api_settings"`
	VoiceSettings VoiceSettings `mapstructure:"voice_settings" json:"voice_settings"`
	ProxyLinks    ProxyLinks    `mapstructure:"proxy_links" json:"proxy_links"`
	Voices        []Voice       `mapstructure:"voices" json:"voices"`
}

// Validate validates both embedded settings blocks. Proxy links and voices
// have no structural constraints beyond being well-formed JSON.
func (p *PersistedConfig) Validate() error {
	if err := p.APISettings.Validate(); err != nil {
		return fmt.Errorf("api_settings: %w", err)
	}

	if err := p.VoiceSettings.Validate(); err != nil {
		return fmt.Errorf("voice_settings: %w", err)
	}

	return nil
}
