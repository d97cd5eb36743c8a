// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/book-expert/chat-tts-service/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestNatsObjectStore_PutGet(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "speechfiles")
	require.NoError(t, err)

	ctx := context.Background()
	audio := []byte("RIFF....WAVEfmt fake audio")

	location, err := store.Put(ctx, "0123abcd.wav", bytes.NewReader(audio), "audio/wav")
	require.NoError(t, err)
	require.Equal(t, "speechfiles/0123abcd.wav", location)

	data, contentType, err := store.Get(ctx, "0123abcd.wav")
	require.NoError(t, err)
	require.Equal(t, audio, data)
	require.Equal(t, "audio/wav", contentType)
}

func TestNatsObjectStore_GetMissing(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "speechfiles")
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "missing.wav")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
}

func TestNew_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(jetstreamContext, "speechfiles")
	require.NoError(t, err)

	_, err = first.Put(context.Background(), "kept.wav", bytes.NewReader([]byte("audio")), "audio/wav")
	require.NoError(t, err)

	second, err := objectstore.New(jetstreamContext, "speechfiles")
	require.NoError(t, err)

	data, _, err := second.Get(context.Background(), "kept.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("audio"), data)
}
