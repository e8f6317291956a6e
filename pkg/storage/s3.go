package storage

import (
	"context"
	goerrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// S3Sink stores objects in an S3 bucket using the transfer manager
// for uploads.
type S3Sink struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
	logger   *zap.Logger
}

// NewS3Sink creates an S3 sink using the default credential chain.
func NewS3Sink(ctx context.Context, bucket, region string, logger *zap.Logger) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load aws config")
	}

	client := s3.NewFromConfig(cfg)
	return &S3Sink{
		bucket:   bucket,
		client:   client,
		uploader: manager.NewUploader(client),
		logger:   logger.With(zap.String("component", "s3_sink"), zap.String("bucket", bucket)),
	}, nil
}

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransient, "upload object").
			WithDetail("key", key)
	}
	s.logger.Debug("object uploaded", zap.String("key", key))
	return nil
}

// Get implements Sink.
func (s *S3Sink) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if goerrors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, errors.ErrorTypeTransient, "get object").
			WithDetail("key", key)
	}
	return out.Body, nil
}

// List implements Sink.
func (s *S3Sink) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransient, "list objects").
				WithDetail("prefix", prefix)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Delete implements Sink.
func (s *S3Sink) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransient, "delete object").
			WithDetail("key", key)
	}
	return nil
}
