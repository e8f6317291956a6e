package storage

import (
	"context"
	goerrors "errors"
	"io"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// GCSSink stores objects in a Google Cloud Storage bucket.
type GCSSink struct {
	bucket *gcs.BucketHandle
	client *gcs.Client
	logger *zap.Logger
}

// NewGCSSink creates a GCS sink using application default credentials.
func NewGCSSink(ctx context.Context, bucket string, logger *zap.Logger) (*GCSSink, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "create gcs client")
	}
	return &GCSSink{
		bucket: client.Bucket(bucket),
		client: client,
		logger: logger.With(zap.String("component", "gcs_sink"), zap.String("bucket", bucket)),
	}, nil
}

// Put implements Sink.
func (g *GCSSink) Put(ctx context.Context, key string, body io.Reader) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeTransient, "upload object").
			WithDetail("key", key)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransient, "finalize upload").
			WithDetail("key", key)
	}
	g.logger.Debug("object uploaded", zap.String("key", key))
	return nil
}

// Get implements Sink.
func (g *GCSSink) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if goerrors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, errors.ErrorTypeTransient, "get object").
			WithDetail("key", key)
	}
	return r, nil
}

// List implements Sink.
func (g *GCSSink) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := g.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if goerrors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransient, "list objects").
				WithDetail("prefix", prefix)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Delete implements Sink.
func (g *GCSSink) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		if goerrors.Is(err, gcs.ErrObjectNotExist) {
			return nil
		}
		return errors.Wrap(err, errors.ErrorTypeTransient, "delete object").
			WithDetail("key", key)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCSSink) Close() error {
	return g.client.Close()
}
