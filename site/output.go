package site

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/slinkity/slinkity/plugin"
)

// DiskOutput writes built files under Dir.
type DiskOutput struct {
	Dir string
}

var _ plugin.Output = DiskOutput{}

// WriteFile implements plugin.Output.
func (o DiskOutput) WriteFile(_ context.Context, name string, data []byte) error {
	p := filepath.Join(o.Dir, filepath.FromSlash(path.Clean("/"+name)))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return os.WriteFile(p, data, 0o644)
}

// PutObjectAPI is the part of *s3.Client S3Output needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Output publishes built files to a bucket.
type S3Output struct {
	Client PutObjectAPI
	Bucket string
	// Prefix is prepended to every key, e.g. "site/".
	Prefix string
}

var _ plugin.Output = (*S3Output)(nil)

// NewS3Output creates an output backed by an S3 client for region. A
// non-empty endpoint selects an S3-compatible service with path-style
// addressing. Credentials come from AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY.
func NewS3Output(region, endpoint, bucket, prefix string) *S3Output {
	opts := s3.Options{
		Region: region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}, nil
		}),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return &S3Output{Client: s3.New(opts), Bucket: bucket, Prefix: prefix}
}

// WriteFile implements plugin.Output.
func (o *S3Output) WriteFile(ctx context.Context, name string, data []byte) error {
	key := o.Prefix + path.Clean("/" + name)[1:]
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := o.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s failed: %w", key, err)
	}
	return nil
}
