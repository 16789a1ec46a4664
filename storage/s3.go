package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/feedsource/interfaces"
)

// S3Options configures an S3Backend.
type S3Options struct {
	BucketName string
	// Prefix is prepended to every key, usually the feed sub path.
	Prefix     string
	Region     string
	ServiceURL string
	Paths      interfaces.ResolvedPaths
	Encryption interfaces.EncryptionMode
	// Compress gzips text metadata on upload.
	Compress bool

	Credentials      *credentials.Credentials
	CredentialSource CredentialSource
}

// S3Backend stores a feed in an S3 or S3-compatible bucket.
// The underlying s3.S3 client is safe for concurrent use.
type S3Backend struct {
	client           *s3.S3
	bucketName       string
	prefix           string
	paths            interfaces.ResolvedPaths
	encryption       interfaces.EncryptionMode
	compress         bool
	credentialSource CredentialSource
	log              *slog.Logger
}

// NewS3Backend creates a new S3 feed backend. No request is sent.
func NewS3Backend(opts S3Options, log *slog.Logger) (*S3Backend, error) {
	region := opts.Region
	if region == "" {
		region = defaultSigningRegion
	}

	cfg := aws.Config{
		Region:      aws.String(region),
		Credentials: opts.Credentials,
	}
	if opts.ServiceURL != "" {
		cfg.Endpoint = aws.String(opts.ServiceURL)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	encryption := opts.Encryption
	if encryption == "" {
		encryption = interfaces.EncryptionNone
	}

	return &S3Backend{
		client:           s3.New(sess),
		bucketName:       opts.BucketName,
		prefix:           opts.Prefix,
		paths:            opts.Paths,
		encryption:       encryption,
		compress:         opts.Compress,
		credentialSource: opts.CredentialSource,
		log:              log,
	}, nil
}

// Fetch retrieves an object from the bucket, decoding gzip content encoding.
// Returns ErrFileNotFound if the object doesn't exist.
func (b *S3Backend) Fetch(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	objectKey, err := b.objectKey(key)
	if err != nil {
		return nil, err
	}

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, interfaces.ErrFileNotFound
		}
		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.bucketName),
			slog.String("key", objectKey),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	if aws.StringValue(result.ContentEncoding) == "gzip" {
		if data, err = gunzipBytes(data); err != nil {
			return nil, err
		}
	}

	b.log.Debug("Fetched object from S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", objectKey),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store uploads data to the bucket with the configured encryption.
func (b *S3Backend) Store(ctx context.Context, key string, data []byte) error {
	objectKey, err := b.objectKey(key)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentTypeFor(objectKey)),
	}

	if b.compress && isCompressible(objectKey) {
		if data, err = gzipBytes(data); err != nil {
			return err
		}
		input.ContentEncoding = aws.String("gzip")
	}
	input.Body = bytes.NewReader(data)

	if b.encryption == interfaces.EncryptionAES256 {
		input.ServerSideEncryption = aws.String(s3.ServerSideEncryptionAes256)
	}

	if _, err := b.client.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("Stored object in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", objectKey),
		slog.Int("size", len(data)))

	return nil
}

// List returns all keys below the feed prefix.
func (b *S3Backend) List(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(b.bucketName)}
	if b.prefix != "" {
		input.Prefix = aws.String(joinPrefix(b.prefix, ""))
	}

	var keys []string
	err := b.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, trimPrefix(b.prefix, aws.StringValue(obj.Key)))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects in S3: %w", err)
	}
	return keys, nil
}

// Delete removes an object. S3 treats deleting a missing key as success.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	objectKey, err := b.objectKey(key)
	if err != nil {
		return err
	}

	_, err = b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

func (b *S3Backend) AbsolutePath() string {
	return b.paths.AbsolutePath
}

func (b *S3Backend) BaseURI() string {
	return b.paths.BaseURI
}

// Encryption returns the server side encryption applied on upload.
func (b *S3Backend) Encryption() interfaces.EncryptionMode {
	return b.encryption
}

// Compress reports whether text metadata is gzipped on upload.
func (b *S3Backend) Compress() bool {
	return b.compress
}

// CredentialSource returns the strategy that produced the signing credentials.
func (b *S3Backend) CredentialSource() CredentialSource {
	return b.credentialSource
}

func (b *S3Backend) objectKey(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return joinPrefix(b.prefix, cleaned), nil
}

func isS3NotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey
}
