package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseFlags verifies that command-line flags are parsed correctly.
func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{"--text", "Hello, world!", "--timeout", "5s", "--inbound", "in.subject"})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world!", flags.text)
	assert.Equal(t, 5*time.Second, flags.timeout)
	assert.Equal(t, "in.subject", flags.inbound)
	assert.Equal(t, defaultOutboundSubject, flags.outbound)
	assert.Equal(t, nats.DefaultURL, flags.natsURL)
}

// TestArgumentValidation verifies the rules for required and conflicting arguments.
func TestArgumentValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		expectedError string
	}{
		{name: "success with text flag", args: []string{"--text", "some text"}},
		{name: "success with file flag", args: []string{"--file", "messages.txt"}},
		{
			name:          "error with both flags",
			args:          []string{"--text", "some text", "--file", "messages.txt"},
			expectedError: errCannotSpecifyBoth,
		},
		{name: "error with no flags", args: nil, expectedError: errEitherTextOrFile},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			flags, err := parseFlags(testCase.args)
			require.NoError(t, err)

			err = validateArguments(flags)
			if testCase.expectedError == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), testCase.expectedError)
		})
	}
}

func TestReadMessages(t *testing.T) {
	t.Parallel()

	messages, err := readMessages(strings.NewReader("first line\n\n  second line  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first line", "second line"}, messages)

	_, err = readMessages(strings.NewReader("\n \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), errNoMessages)
}

func TestPublishAndAwait(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)
	defer server.Shutdown()

	natsConnection, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	_, err = jetstreamContext.AddStream(&nats.StreamConfig{Name: "CHAT_TTS", Subjects: []string{"chat.text"}})
	require.NoError(t, err)

	// Stand-in for the service: answer every inbound message with a record.
	responder, err := natsConnection.Subscribe("chat.text", func(msg *nats.Msg) {
		data, _ := json.Marshal(core.OutputRecord{SpeechStoragePointer: "abc", OriginalString: string(msg.Data)})
		_ = natsConnection.Publish("chat.speech", data)
	})
	require.NoError(t, err)
	defer responder.Unsubscribe()

	flags, err := parseFlags([]string{"--text", "hola"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := publishAndAwait(ctx, natsConnection, jetstreamContext, flags, []string{"hola"})
	require.NoError(t, err)
	assert.Equal(t, "abc", record.SpeechStoragePointer)
	assert.Equal(t, "hola", record.OriginalString)
}
