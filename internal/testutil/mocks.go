// Package testutil provides test mocks for the S3 API surface.
// This package is internal and should only be used for testing.
package testutil

import (
	"context"
	"io"
	"sync"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openherbarium/specsync/internal/s3api"
)

// MockS3Client is a mock implementation of the s3api.API interface.
// It allows customization of each operation through function fields.
type MockS3Client struct {
	PutObjectFunc               func(context.Context, *awss3.PutObjectInput, ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	ListObjectsV2Func           func(context.Context, *awss3.ListObjectsV2Input, ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	HeadObjectFunc              func(context.Context, *awss3.HeadObjectInput, ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *awss3.CreateMultipartUploadInput, ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error)
	UploadPartFunc              func(context.Context, *awss3.UploadPartInput, ...func(*awss3.Options)) (*awss3.UploadPartOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *awss3.CompleteMultipartUploadInput, ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *awss3.AbortMultipartUploadInput, ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error)
}

// PutObject mocks the S3 PutObject operation.
func (m *MockS3Client) PutObject(
	ctx context.Context,
	params *awss3.PutObjectInput,
	optFns ...func(*awss3.Options),
) (*awss3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	return &awss3.PutObjectOutput{}, nil
}

// ListObjectsV2 mocks the S3 ListObjectsV2 operation.
func (m *MockS3Client) ListObjectsV2(
	ctx context.Context,
	params *awss3.ListObjectsV2Input,
	optFns ...func(*awss3.Options),
) (*awss3.ListObjectsV2Output, error) {
	if m.ListObjectsV2Func != nil {
		return m.ListObjectsV2Func(ctx, params, optFns...)
	}
	return &awss3.ListObjectsV2Output{}, nil
}

// HeadObject mocks the S3 HeadObject operation.
func (m *MockS3Client) HeadObject(
	ctx context.Context,
	params *awss3.HeadObjectInput,
	optFns ...func(*awss3.Options),
) (*awss3.HeadObjectOutput, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}
	return &awss3.HeadObjectOutput{}, nil
}

// CreateMultipartUpload mocks the S3 CreateMultipartUpload operation.
func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *awss3.CreateMultipartUploadInput,
	optFns ...func(*awss3.Options),
) (*awss3.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	return &awss3.CreateMultipartUploadOutput{}, nil
}

// UploadPart mocks the S3 UploadPart operation.
func (m *MockS3Client) UploadPart(
	ctx context.Context,
	params *awss3.UploadPartInput,
	optFns ...func(*awss3.Options),
) (*awss3.UploadPartOutput, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, params, optFns...)
	}
	return &awss3.UploadPartOutput{}, nil
}

// CompleteMultipartUpload mocks the S3 CompleteMultipartUpload operation.
func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *awss3.CompleteMultipartUploadInput,
	optFns ...func(*awss3.Options),
) (*awss3.CompleteMultipartUploadOutput, error) {
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	return &awss3.CompleteMultipartUploadOutput{}, nil
}

// AbortMultipartUpload mocks the S3 AbortMultipartUpload operation.
func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *awss3.AbortMultipartUploadInput,
	optFns ...func(*awss3.Options),
) (*awss3.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	return &awss3.AbortMultipartUploadOutput{}, nil
}

// Ensure MockS3Client implements the s3api.API interface
var _ s3api.API = (*MockS3Client)(nil)

// RecordedPut captures one PutObject call for assertions.
type RecordedPut struct {
	Key         string
	ContentType string
	Body        []byte
}

// PutRecorder is a thread-safe MockS3Client wrapper that records every put.
type PutRecorder struct {
	MockS3Client

	mu   sync.Mutex
	puts []RecordedPut
}

// NewPutRecorder creates a recorder whose PutObject succeeds and captures
// key, content type, and body of each call.
func NewPutRecorder() *PutRecorder {
	r := &PutRecorder{}
	r.PutObjectFunc = func(ctx context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
		var body []byte
		if params.Body != nil {
			var err error
			body, err = io.ReadAll(params.Body)
			if err != nil {
				return nil, err
			}
		}
		r.mu.Lock()
		r.puts = append(r.puts, RecordedPut{
			Key:         deref(params.Key),
			ContentType: deref(params.ContentType),
			Body:        body,
		})
		r.mu.Unlock()
		return &awss3.PutObjectOutput{}, nil
	}
	return r
}

// Puts returns a snapshot of the recorded puts.
func (r *PutRecorder) Puts() []RecordedPut {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedPut, len(r.puts))
	copy(out, r.puts)
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
