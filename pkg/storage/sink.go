// Package storage provides the object-storage sinks report artifacts
// land in: S3, Google Cloud Storage, an in-memory sink for tests and
// a Snowflake table sink for warehouse-targeted report kinds.
package storage

import (
	"context"
	goerrors "errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for keys that do not exist.
var ErrNotFound = goerrors.New("object not found")

// Sink is the destination contract. Put overwrites whole objects;
// there are no partial writes at a key.
type Sink interface {
	Put(ctx context.Context, key string, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Sink providers selectable through a bucket reference scheme.
const (
	ProviderS3  = "s3"
	ProviderGCS = "gcs"
)

// ParseBucket splits a bucket reference into a provider and a bucket
// name. "gs://name" selects Google Cloud Storage; "s3://name" and bare
// names select S3.
func ParseBucket(ref string) (provider, bucket string) {
	switch {
	case strings.HasPrefix(ref, "gs://"):
		return ProviderGCS, strings.TrimPrefix(ref, "gs://")
	case strings.HasPrefix(ref, "s3://"):
		return ProviderS3, strings.TrimPrefix(ref, "s3://")
	}
	return ProviderS3, ref
}

// NewSink opens the object-storage sink for a bucket reference.
func NewSink(ctx context.Context, bucket, region string, logger *zap.Logger) (Sink, error) {
	provider, name := ParseBucket(bucket)
	if provider == ProviderGCS {
		return NewGCSSink(ctx, name, logger)
	}
	return NewS3Sink(ctx, name, region, logger)
}
