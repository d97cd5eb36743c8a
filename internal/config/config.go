// Package config provides the configuration structure for the chat-tts-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
)

// Environment variables that override secrets and endpoints from the TOML file.
const (
	EnvSpeechKey        = "SPEECH_KEY"
	EnvTextAnalyticsKey = "TEXTANALYTICS_KEY"
	EnvNATSURL          = "NATS_URL"
	EnvAPIKey           = "API_KEY"
)

const (
	defaultBatchSize              = 10
	defaultFetchWaitSeconds       = 5
	defaultMaxDeliver             = 5
	defaultRedeliveryDelaySeconds = 10
	defaultTimeoutSeconds         = 30
	defaultOutputFormat           = "riff-24khz-16bit-mono-pcm"
	defaultUserAgent              = "chat-tts-service"
	defaultListenAddr             = ":8080"
)

var (
	// ErrNATSURLEmpty indicates that no NATS URL was configured.
	ErrNATSURLEmpty = errors.New("nats url cannot be empty")
	// ErrStreamNameEmpty indicates that no JetStream stream name was configured.
	ErrStreamNameEmpty = errors.New("stream name cannot be empty")
	// ErrSubjectEmpty indicates that an inbound or outbound subject is missing.
	ErrSubjectEmpty = errors.New("inbound and outbound subjects cannot be empty")
	// ErrBucketEmpty indicates that no object store bucket was configured.
	ErrBucketEmpty = errors.New("speech object store bucket cannot be empty")
	// ErrSpeechEndpointEmpty indicates that a speech service URL is missing.
	ErrSpeechEndpointEmpty = errors.New("speech token and synthesis urls cannot be empty")
	// ErrSpeechKeyEmpty indicates that the speech subscription key is missing.
	ErrSpeechKeyEmpty = errors.New("speech subscription key cannot be empty")
	// ErrTextAnalyticsEmpty indicates that the text analytics endpoint or key is missing.
	ErrTextAnalyticsEmpty = errors.New("text analytics endpoint and key cannot be empty")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                     string `toml:"url"`
	StreamName              string `toml:"stream_name"`
	ConsumerName            string `toml:"consumer_name"`
	InboundSubject          string `toml:"inbound_subject"`
	OutboundSubject         string `toml:"outbound_subject"`
	SpeechObjectStoreBucket string `toml:"speech_object_store_bucket"`
	BatchSize               int    `toml:"batch_size"`
	FetchWaitSeconds        int    `toml:"fetch_wait_seconds"`
	MaxDeliver              int    `toml:"max_deliver"`
	RedeliveryDelaySeconds  int    `toml:"redelivery_delay_seconds"`
}

// SpeechConfig holds the text-to-speech REST settings.
type SpeechConfig struct {
	TokenURL        string `toml:"token_url"`
	SynthesisURL    string `toml:"synthesis_url"`
	SubscriptionKey string `toml:"subscription_key"`
	OutputFormat    string `toml:"output_format"`
	UserAgent       string `toml:"user_agent"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// TextAnalyticsConfig holds the language detection REST settings.
type TextAnalyticsConfig struct {
	Endpoint string `toml:"endpoint"`
	Key      string `toml:"key"`
}

// HTTPConfig holds the operator API settings.
type HTTPConfig struct {
	ListenAddr         string `toml:"listen_addr"`
	APIKey             string `toml:"api_key"`
	CorsAllowedOrigins string `toml:"cors_allowed_origins"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS          NATSConfig          `toml:"nats"`
	Speech        SpeechConfig        `toml:"speech"`
	TextAnalytics TextAnalyticsConfig `toml:"text_analytics"`
	HTTP          HTTPConfig          `toml:"http"`
	Paths         PathsConfig         `toml:"paths"`
}

// Load loads the configuration for the chat-tts-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	// A missing .env file is normal outside local development.
	envErr := godotenv.Load()
	if envErr != nil {
		log.Info("No .env file loaded: %v", envErr)
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides secrets and the NATS URL with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	overrides := map[string]*string{
		EnvSpeechKey:        &c.Speech.SubscriptionKey,
		EnvTextAnalyticsKey: &c.TextAnalytics.Key,
		EnvNATSURL:          &c.NATS.URL,
		EnvAPIKey:           &c.HTTP.APIKey,
	}

	for name, target := range overrides {
		value := getenv(name)
		if value != "" {
			*target = value
		}
	}
}

// ApplyDefaults fills optional fields left at their zero value.
func (c *Config) ApplyDefaults() {
	if c.NATS.ConsumerName == "" {
		c.NATS.ConsumerName = c.NATS.StreamName + "-workers"
	}

	if c.NATS.BatchSize <= 0 {
		c.NATS.BatchSize = defaultBatchSize
	}

	if c.NATS.FetchWaitSeconds <= 0 {
		c.NATS.FetchWaitSeconds = defaultFetchWaitSeconds
	}

	if c.NATS.MaxDeliver <= 0 {
		c.NATS.MaxDeliver = defaultMaxDeliver
	}

	if c.NATS.RedeliveryDelaySeconds <= 0 {
		c.NATS.RedeliveryDelaySeconds = defaultRedeliveryDelaySeconds
	}

	if c.Speech.OutputFormat == "" {
		c.Speech.OutputFormat = defaultOutputFormat
	}

	if c.Speech.UserAgent == "" {
		c.Speech.UserAgent = defaultUserAgent
	}

	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = defaultListenAddr
	}
}

// Validate checks that every value the service cannot run without is present.
func (c *Config) Validate() error {
	switch {
	case c.NATS.URL == "":
		return ErrNATSURLEmpty
	case c.NATS.StreamName == "":
		return ErrStreamNameEmpty
	case c.NATS.InboundSubject == "" || c.NATS.OutboundSubject == "":
		return ErrSubjectEmpty
	case c.NATS.SpeechObjectStoreBucket == "":
		return ErrBucketEmpty
	case c.Speech.TokenURL == "" || c.Speech.SynthesisURL == "":
		return ErrSpeechEndpointEmpty
	case c.Speech.SubscriptionKey == "":
		return ErrSpeechKeyEmpty
	case c.TextAnalytics.Endpoint == "" || c.TextAnalytics.Key == "":
		return ErrTextAnalyticsEmpty
	}

	return nil
}

// Timeout returns the per-call timeout for external collaborators.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Speech.TimeoutSeconds) * time.Second
}

// FetchWait returns how long a batch fetch waits for messages.
func (c *Config) FetchWait() time.Duration {
	return time.Duration(c.NATS.FetchWaitSeconds) * time.Second
}

// RedeliveryDelay returns how long a failed batch waits before redelivery.
func (c *Config) RedeliveryDelay() time.Duration {
	return time.Duration(c.NATS.RedeliveryDelaySeconds) * time.Second
}
