package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the slice of the S3 API the provider needs. Implementations
// return ErrNotFound for missing keys.
type S3Client interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	HeadObject(ctx context.Context, bucket, key string) error
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// S3FileProvider stores files as objects under an optional key prefix.
type S3FileProvider struct {
	bucket string
	prefix string
	client S3Client
}

// NewS3FileProvider creates a new S3 file provider.
func NewS3FileProvider(bucket, prefix string, client S3Client) *S3FileProvider {
	return &S3FileProvider{bucket: bucket, prefix: prefix, client: client}
}

func (p *S3FileProvider) key(path string) string {
	return joinKey(p.prefix, path)
}

func (p *S3FileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.client.GetObject(ctx, p.bucket, p.key(path))
}

func (p *S3FileProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.client.PutObject(ctx, p.bucket, p.key(path), data)
}

// Exists only reports false for missing keys; access and network errors are
// returned so an empty catalog is never confused with an unreachable bucket.
func (p *S3FileProvider) Exists(ctx context.Context, path string) (bool, error) {
	err := p.client.HeadObject(ctx, p.bucket, p.key(path))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (p *S3FileProvider) Delete(ctx context.Context, path string) error {
	return p.client.DeleteObject(ctx, p.bucket, p.key(path))
}

func (p *S3FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.client.ListObjects(ctx, p.bucket, p.key(prefix))
	if err != nil {
		return nil, err
	}
	result := trimKeys(keys, p.key(""))
	sort.Strings(result)
	return result, nil
}

// AWSS3Client implements S3Client with the AWS SDK v2.
type AWSS3Client struct {
	api *s3.Client
}

// NewAWSS3Client creates a new AWS S3 client.
func NewAWSS3Client(api *s3.Client) *AWSS3Client {
	return &AWSS3Client{api: api}
}

func (c *AWSS3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, objectError("get", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (c *AWSS3Client) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return objectError("put", bucket, key, err)
	}
	return nil
}

func (c *AWSS3Client) HeadObject(ctx context.Context, bucket, key string) error {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return objectError("head", bucket, key, err)
	}
	return nil
}

func (c *AWSS3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return objectError("delete", bucket, key, err)
	}
	return nil
}

// ListObjects pages through every key under prefix. A missing bucket lists
// as empty so a fresh deployment can start before anything was uploaded.
func (c *AWSS3Client) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	keys := []string{}
	pages := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			var noSuchBucket *types.NoSuchBucket
			if errors.As(err, &noSuchBucket) || isNotFound(err) {
				return []string{}, nil
			}
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

func objectError(op, bucket, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
	}
	return fmt.Errorf("failed to %s s3://%s/%s: %w", op, bucket, key, err)
}

// isNotFound recognises the typed NoSuchKey error from GetObject and the
// bare "NotFound" code HeadObject returns, since HEAD responses have no body.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
