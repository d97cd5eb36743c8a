// Package objectstore provides a NATS-based implementation of the core.BlobStore interface.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const headerContentType = "Content-Type"

// ErrObjectNotFound is returned by Get when no object exists under the requested name.
var ErrObjectNotFound = errors.New("object not found")

// NatsObjectStore implements the core.BlobStore interface using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket if needed and binds to it.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Synthesized speech files for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Put streams data into the bucket under name, tagged with contentType.
// The returned location has the form "bucket/name".
func (n *NatsObjectStore) Put(ctx context.Context, name string, data io.Reader, contentType string) (string, error) {
	headers := nats.Header{}
	headers.Set(headerContentType, contentType)

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        name,
		Description: "",
		Headers:     headers,
		Metadata:    nil,
		Opts:        nil,
	}, data, nats.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to put object '%s' to bucket '%s': %w", name, n.bucket, err)
	}

	return n.bucket + "/" + name, nil
}

// Get retrieves an object and the content type it was stored with.
func (n *NatsObjectStore) Get(ctx context.Context, name string) ([]byte, string, error) {
	obj, err := n.store.Get(name, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("%w: '%s' in bucket '%s'", ErrObjectNotFound, name, n.bucket)
		}

		return nil, "", fmt.Errorf("failed to get object '%s' from bucket '%s': %w", name, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, "", fmt.Errorf("failed to read object '%s': %w", name, readErr)
	}

	if closeErr != nil {
		return data, "", fmt.Errorf("failed to close object '%s': %w", name, closeErr)
	}

	contentType := ""

	info, infoErr := obj.Info()
	if infoErr == nil && info.Headers != nil {
		contentType = info.Headers.Get(headerContentType)
	}

	return data, contentType, nil
}
