package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

const s3Scheme = "s3://"

// ObjectGetter is the part of the S3 client the loader needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Params configures the S3 client. Endpoint is only needed for
// S3-compatible storage such as MinIO; AccessKey and SecretKey fall back to
// the default AWS credential chain when empty.
type S3Params struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Loader opens GEDCOM input from the local filesystem or from S3
type Loader struct {
	client ObjectGetter
	logger *zap.Logger
}

// NewLoader creates a Loader with an S3 client built from params
func NewLoader(ctx context.Context, params S3Params) (*Loader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(params.Region),
	}
	if params.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(params.Endpoint))
	}
	if params.AccessKey != "" && params.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(params.AccessKey, params.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = params.Endpoint != ""
	})
	return NewLoaderWithClient(client), nil
}

// NewLoaderWithClient creates a Loader around an existing S3 client
func NewLoaderWithClient(client ObjectGetter) *Loader {
	return &Loader{client: client, logger: logger.Get()}
}

// Open returns a reader for uri, which is either s3://bucket/key or a local
// path. The caller closes the reader.
func (l *Loader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if strings.HasPrefix(uri, s3Scheme) {
		return l.openS3(ctx, uri)
	}

	f, err := os.Open(uri)
	if err != nil {
		return nil, apperrors.NewSourceFetchFailed(uri, err)
	}
	l.logger.Debug("Opened local file", zap.String("path", uri))
	return f, nil
}

func (l *Loader) openS3(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, apperrors.NewSourceFetchFailed(uri, err)
	}
	if l.client == nil {
		return nil, apperrors.NewSourceFetchFailed(uri, fmt.Errorf("no s3 client configured"))
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperrors.NewSourceFetchFailed(uri, err)
	}

	l.logger.Info("Fetched object from S3",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("size", aws.ToInt64(out.ContentLength)),
	)
	return out.Body, nil
}

// ParseS3URI splits s3://bucket/key into its bucket and key
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs a bucket and a key: %q", uri)
	}
	return bucket, key, nil
}
