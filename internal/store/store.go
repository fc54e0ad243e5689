// Package store wraps the destination S3 bucket behind the two operations
// the migration pipeline needs: streamed puts and a complete listing of the
// image namespace.
package store

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/openherbarium/specsync/internal/s3api"
)

const (
	// ImagePrefix is the bucket namespace that holds migrated image objects.
	ImagePrefix = "images/"

	// MetadataPrefix is the bucket namespace that holds per-image metadata.
	MetadataPrefix = "metadata/"

	imageSuffix = ".jpg"
)

// ImageKey derives the image object key for an item id.
func ImageKey(id string) string {
	return ImagePrefix + id + imageSuffix
}

// MetadataKey derives the metadata object key for an item id.
func MetadataKey(id string) string {
	return MetadataPrefix + id + ".json"
}

// Store provides access to the destination bucket. It is safe for use from
// multiple goroutines.
type Store struct {
	api      s3api.API
	uploader *manager.Uploader
	bucket   string
	logger   *zap.SugaredLogger
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, bucket, region string, logger *zap.SugaredLogger) (*Store, error) {
	if bucket == "" {
		return nil, NewError("new", bucket, ErrInvalidInput).WithMessage("bucket name cannot be empty")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, NewError("new", bucket, classify(err))
	}

	return NewWithAPI(s3.NewFromConfig(cfg), bucket, logger), nil
}

// NewWithAPI creates a Store over an existing S3 API implementation.
// This is the constructor used by tests with mocked clients.
func NewWithAPI(api s3api.API, bucket string, logger *zap.SugaredLogger) *Store {
	return &Store{
		api:      api,
		uploader: manager.NewUploader(api),
		bucket:   bucket,
		logger:   logger,
	}
}

// Bucket returns the destination bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// PutStream uploads the reader's contents under key without buffering the
// whole payload in memory. The reader is consumed exactly once.
func (s *Store) PutStream(ctx context.Context, key string, r io.Reader, contentType string) error {
	if key == "" {
		return NewError("put", s.bucket, ErrInvalidInput).WithMessage("object key cannot be empty")
	}
	if r == nil {
		return NewError("put", s.bucket, ErrInvalidInput).WithKey(key).WithMessage("reader cannot be nil")
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return NewError("put", s.bucket, classify(err)).WithKey(key)
	}
	return nil
}

// PutBytes uploads an in-memory payload under key. Convenience wrapper for
// small objects such as metadata documents.
func (s *Store) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return s.PutStream(ctx, key, bytes.NewReader(data), contentType)
}

// ObjectExists checks for an object with a HEAD request.
func (s *Store) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey") {
			return false, nil
		}
		return false, NewError("head", s.bucket, classify(err)).WithKey(key)
	}
	return true, nil
}

// ListImageIDs enumerates every image object in the bucket and returns the
// set of item ids they correspond to. The listing follows continuation
// tokens until the bucket reports no more pages; a short read here would
// silently corrupt a reconciliation audit, so the loop terminates only on
// an absent token, never on a page count.
func (s *Store) ListImageIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(ImagePrefix),
			MaxKeys:           aws.Int32(1000),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, NewError("list", s.bucket, classify(err))
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, imageSuffix) {
				continue
			}
			id := strings.TrimSuffix(path.Base(key), imageSuffix)
			ids[id] = struct{}{}
		}

		if !aws.ToBool(out.IsTruncated) {
			return ids, nil
		}
		token = out.NextContinuationToken
	}
}

// classify maps AWS SDK errors onto the store's sentinel errors while
// preserving the original error chain. Credential and authorization codes
// indicate the request was rejected for reasons unrelated to the object
// being written.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"ExpiredToken", "TokenRefreshRequired", "UnrecognizedClientException":
			return errors.Mark(err, ErrInvalidCredentials)
		case "NoSuchBucket":
			return errors.Mark(err, ErrBucketNotFound)
		}
	}

	// The credential chain can fail before any API call is signed, in which
	// case there is no APIError to inspect.
	msg := err.Error()
	if strings.Contains(msg, "failed to retrieve credentials") ||
		strings.Contains(msg, "no EC2 IMDS role found") ||
		strings.Contains(msg, "static credentials are empty") {
		return errors.Mark(err, ErrInvalidCredentials)
	}

	return err
}
