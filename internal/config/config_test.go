// Package config_test tests the configuration loading for the chat-tts-service.
package config_test

import (
	"testing"
	"time"

	"github.com/book-expert/chat-tts-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[nats]
url = "nats://127.0.0.1:4222"
stream_name = "CHAT_TTS"
consumer_name = "chat-tts-workers"
inbound_subject = "chat.text"
outbound_subject = "chat.speech"
speech_object_store_bucket = "SPEECH_FILES"
batch_size = 16
fetch_wait_seconds = 2
max_deliver = 3
redelivery_delay_seconds = 30

[speech]
token_url = "https://westus.api.cognitive.microsoft.com/sts/v1.0/issueToken"
synthesis_url = "https://westus.tts.speech.microsoft.com/cognitiveservices/v1"
subscription_key = "toml-speech-key"
output_format = "riff-24khz-16bit-mono-pcm"
user_agent = "chat-tts"
timeout_seconds = 20

[text_analytics]
endpoint = "https://westus.api.cognitive.microsoft.com"
key = "toml-ta-key"

[http]
listen_addr = ":9090"

[paths]
base_logs_dir = "/var/log/chat-tts"
`

func parseSample(t *testing.T) config.Config {
	t.Helper()

	var cfg config.Config

	err := toml.Unmarshal([]byte(sampleTOML), &cfg)
	require.NoError(t, err)

	return cfg
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg := parseSample(t)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "CHAT_TTS", cfg.NATS.StreamName)
	assert.Equal(t, "chat-tts-workers", cfg.NATS.ConsumerName)
	assert.Equal(t, "chat.text", cfg.NATS.InboundSubject)
	assert.Equal(t, "chat.speech", cfg.NATS.OutboundSubject)
	assert.Equal(t, "SPEECH_FILES", cfg.NATS.SpeechObjectStoreBucket)
	assert.Equal(t, 16, cfg.NATS.BatchSize)
	assert.Equal(t, "toml-speech-key", cfg.Speech.SubscriptionKey)
	assert.Equal(t, 20, cfg.Speech.TimeoutSeconds)
	assert.Equal(t, "https://westus.api.cognitive.microsoft.com", cfg.TextAnalytics.Endpoint)
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, "/var/log/chat-tts", cfg.Paths.BaseLogsDir)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20*time.Second, cfg.Timeout())
	assert.Equal(t, 2*time.Second, cfg.FetchWait())
	assert.Equal(t, 3, cfg.NATS.MaxDeliver)
	assert.Equal(t, 30*time.Second, cfg.RedeliveryDelay())
}

func TestApplyEnv_OverridesSecrets(t *testing.T) {
	t.Parallel()

	cfg := parseSample(t)
	env := map[string]string{
		config.EnvSpeechKey:        "env-speech-key",
		config.EnvTextAnalyticsKey: "env-ta-key",
		config.EnvAPIKey:           "env-api-key",
	}

	cfg.ApplyEnv(func(name string) string { return env[name] })

	assert.Equal(t, "env-speech-key", cfg.Speech.SubscriptionKey)
	assert.Equal(t, "env-ta-key", cfg.TextAnalytics.Key)
	assert.Equal(t, "env-api-key", cfg.HTTP.APIKey)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL, "unset variables must not clear TOML values")
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Config{NATS: config.NATSConfig{StreamName: "CHAT_TTS"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "CHAT_TTS-workers", cfg.NATS.ConsumerName)
	assert.Equal(t, 10, cfg.NATS.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.FetchWait())
	assert.Equal(t, 5, cfg.NATS.MaxDeliver)
	assert.Equal(t, 10*time.Second, cfg.RedeliveryDelay())
	assert.Equal(t, "riff-24khz-16bit-mono-pcm", cfg.Speech.OutputFormat)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{name: "missing nats url", mutate: func(cfg *config.Config) { cfg.NATS.URL = "" }, wantErr: config.ErrNATSURLEmpty},
		{name: "missing stream", mutate: func(cfg *config.Config) { cfg.NATS.StreamName = "" }, wantErr: config.ErrStreamNameEmpty},
		{name: "missing outbound subject", mutate: func(cfg *config.Config) { cfg.NATS.OutboundSubject = "" }, wantErr: config.ErrSubjectEmpty},
		{name: "missing bucket", mutate: func(cfg *config.Config) { cfg.NATS.SpeechObjectStoreBucket = "" }, wantErr: config.ErrBucketEmpty},
		{name: "missing token url", mutate: func(cfg *config.Config) { cfg.Speech.TokenURL = "" }, wantErr: config.ErrSpeechEndpointEmpty},
		{name: "missing speech key", mutate: func(cfg *config.Config) { cfg.Speech.SubscriptionKey = "" }, wantErr: config.ErrSpeechKeyEmpty},
		{name: "missing text analytics key", mutate: func(cfg *config.Config) { cfg.TextAnalytics.Key = "" }, wantErr: config.ErrTextAnalyticsEmpty},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := parseSample(t)
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), testCase.wantErr)
		})
	}
}
