// Package objstore uploads CSV payloads to an S3 bucket under dated keys.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrUpload = errors.New("upload failed")

const DefaultPrefix = "data"

// PutObjectAPI is the subset of *s3.Client used by Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	Bucket string
	Prefix string
	Client PutObjectAPI

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewS3Client builds an S3 client from the default credential chain
// (environment, shared config, instance role).
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %v", ErrUpload, err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Key returns <prefix>/<YYYY-MM-DD>/<name>.csv for the given UTC date.
func (u *Uploader) Key(name string, at time.Time) string {
	prefix := u.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, at.UTC().Format(time.DateOnly), name+".csv")
}

// Upload stores payload under the dated key for name and returns the key.
func (u *Uploader) Upload(ctx context.Context, name string, payload []byte) (string, error) {
	if u.Bucket == "" {
		return "", fmt.Errorf("%w: bucket not set", ErrUpload)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty object name", ErrUpload)
	}
	if u.Client == nil {
		return "", fmt.Errorf("%w: no S3 client", ErrUpload)
	}

	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	key := u.Key(name, now())

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put s3://%s/%s: %v", ErrUpload, u.Bucket, key, err)
	}

	return key, nil
}
