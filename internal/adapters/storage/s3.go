package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by S3ObjectStore
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3ObjectStore implements ObjectStore on top of an S3 bucket
type S3ObjectStore struct {
	client S3API
	bucket string
}

// NewS3ObjectStore creates a store writing to bucket through client
func NewS3ObjectStore(client S3API, bucket string) (*S3ObjectStore, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	return &S3ObjectStore{client: client, bucket: bucket}, nil
}

// Put implements ObjectStore.Put
func (s *S3ObjectStore) Put(ctx context.Context, key string, data []byte, opts *PutOptions) (*ObjectMetadata, error) {
	if err := validateKey(key); err != nil {
		return nil, NewStorageError("Put", key, err, false)
	}

	contentType := contentTypeFor(key, opts)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if opts != nil {
		input.Expires = opts.Expires
		input.Metadata = opts.Metadata
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, classifyS3Error("Put", key, err)
	}

	meta := &ObjectMetadata{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		ETag:        aws.ToString(out.ETag),
	}
	if opts != nil {
		meta.Expires = opts.Expires
		meta.Metadata = opts.Metadata
	}
	return meta, nil
}

// Head implements ObjectStore.Head
func (s *S3ObjectStore) Head(ctx context.Context, key string) (*ObjectMetadata, error) {
	if err := validateKey(key); err != nil {
		return nil, NewStorageError("Head", key, err, false)
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error("Head", key, err)
	}

	return &ObjectMetadata{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
		Expires:      out.Expires,
		ETag:         aws.ToString(out.ETag),
		Metadata:     out.Metadata,
	}, nil
}

// Exists implements ObjectStore.Exists
func (s *S3ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Location implements ObjectStore.Location
func (s *S3ObjectStore) Location() string {
	return s.bucket
}

// Close implements ObjectStore.Close
func (s *S3ObjectStore) Close() error {
	return nil
}

// classifyS3Error maps SDK errors onto the storage error taxonomy
func classifyS3Error(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewStorageError(op, key, err, false)
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return NewStorageError(op, key, fmt.Errorf("%w: %v", ErrObjectNotFound, err), false)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return NewStorageError(op, key, fmt.Errorf("%w: %v", ErrObjectNotFound, err), false)
		case "AccessDenied", "Forbidden":
			return NewStorageError(op, key, fmt.Errorf("%w: %v", ErrPermissionDenied, err), false)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return NewStorageError(op, key, fmt.Errorf("%w: %v", ErrStorageUnavailable, err), true)
		}
		return NewStorageError(op, key, err, apiErr.ErrorFault() == smithy.FaultServer)
	}

	// Anything that never produced an API response is treated as transport failure
	return NewStorageError(op, key, fmt.Errorf("%w: %v", ErrNetworkError, err), true)
}
