// S3 gateway backend for PicStash.
//
// Proxies all object data to an upstream S3 bucket via the AWS SDK for Go
// v2. Objects live at {prefix}{namespace}/{name} within a single upstream
// bucket. Credentials come from the standard AWS credential chain unless a
// static key pair is configured, and a custom endpoint turns this into a
// MinIO/path-style backend.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API defines the subset of the AWS S3 client interface that the gateway
// backend uses. This allows mocking in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures the S3 gateway backend.
type S3Options struct {
	Bucket          string
	Region          string
	Prefix          string
	EndpointURL     string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// S3Backend implements the Backend interface by proxying storage operations
// to an upstream Amazon S3 (or S3-compatible) bucket.
type S3Backend struct {
	// Bucket is the upstream S3 bucket name.
	Bucket string
	// Prefix is the key prefix for all objects in the upstream bucket.
	Prefix string
	// client is the AWS S3 client (satisfying the S3API interface).
	client S3API
}

// NewS3Backend creates an S3Backend proxying to the configured bucket. It
// initializes the AWS SDK client using the default credential chain, with
// optional overrides for custom endpoint, path-style addressing, and static
// credentials, then verifies the upstream bucket is reachable.
func NewS3Backend(ctx context.Context, opts S3Options) (*S3Backend, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.EndpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	b := &S3Backend{
		Bucket: opts.Bucket,
		Prefix: opts.Prefix,
		client: client,
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(opts.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("cannot access upstream S3 bucket %q: %w", opts.Bucket, err)
	}

	slog.Info("S3 backend initialized", "bucket", opts.Bucket, "region", opts.Region, "prefix", opts.Prefix)
	return b, nil
}

// NewS3BackendWithClient creates an S3Backend with a pre-configured client.
// This is primarily used for testing with mock clients.
func NewS3BackendWithClient(bucket, prefix string, client S3API) *S3Backend {
	return &S3Backend{
		Bucket: bucket,
		Prefix: prefix,
		client: client,
	}
}

// s3Key maps a (namespace, name) to an upstream S3 key.
func (b *S3Backend) s3Key(namespace, name string) string {
	return b.Prefix + namespace + "/" + name
}

// Put uploads the object bytes to the upstream bucket. S3 PutObject is
// atomic on the service side: readers see the old object or the new one,
// never a partial write.
func (b *S3Backend) Put(ctx context.Context, namespace, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.Bucket),
		Key:           aws.String(b.s3Key(namespace, name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("uploading to S3: %w", err)
	}
	return nil
}

// Get retrieves the object from the upstream bucket. The caller closes the
// returned body.
func (b *S3Backend) Get(ctx context.Context, namespace, name string) (io.ReadCloser, int64, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.s3Key(namespace, name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("getting object from S3: %w", err)
	}

	var size int64
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return resp.Body, size, nil
}

// Delete removes the object from the upstream bucket. S3 DeleteObject does
// not distinguish missing keys, so existence is checked first; the
// check-then-delete race resolves the same way concurrent deletes do.
func (b *S3Backend) Delete(ctx context.Context, namespace, name string) error {
	key := b.s3Key(namespace, name)

	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isS3NotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("checking object in S3: %w", err)
	}

	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("deleting object from S3: %w", err)
	}
	return nil
}

// Exists reports whether the object is present in the upstream bucket.
func (b *S3Backend) Exists(ctx context.Context, namespace, name string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.s3Key(namespace, name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking object existence in S3: %w", err)
	}
	return true, nil
}

// List returns the names of all objects under the namespace prefix,
// following ListObjectsV2 continuation tokens.
func (b *S3Backend) List(ctx context.Context, namespace string) ([]string, error) {
	prefix := b.Prefix + namespace + "/"

	var names []string
	var continuation *string
	for {
		resp, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects under %q: %w", prefix, err)
		}

		for _, obj := range resp.Contents {
			key := aws.ToString(obj.Key)
			if len(key) > len(prefix) {
				names = append(names, key[len(prefix):])
			}
		}

		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		continuation = resp.NextContinuationToken
	}

	return names, nil
}

// EnsureNamespace is a no-op: namespaces are key prefixes within the
// upstream bucket, not containers that need creating.
func (b *S3Backend) EnsureNamespace(ctx context.Context, namespace string) error {
	return nil
}

// HealthCheck verifies the upstream bucket is accessible.
func (b *S3Backend) HealthCheck(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.Bucket),
	})
	return err
}

// isS3NotFound checks if an AWS error is a 404/NoSuchKey/NotFound error.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" || code == "NoSuchBucket" {
			return true
		}
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		if respErr.HTTPStatusCode() == 404 {
			return true
		}
	}
	return false
}

// Ensure S3Backend implements Backend at compile time.
var _ Backend = (*S3Backend)(nil)
