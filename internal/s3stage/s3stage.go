// Package s3stage optionally mirrors captured artifacts to an S3-compatible
// bucket after the dispatch server's upload endpoint has accepted them,
// giving an operator an independent, directly-queryable copy of
// every image. Off by default; gated by config.
package s3stage

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client is the narrow S3 surface Stage depends on, satisfied by
// *s3.Client and easily faked in tests.
type Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Stage mirrors local files to an S3 bucket under a fixed key prefix.
type Stage struct {
	client Client
	bucket string
	prefix string
}

// New builds a Stage around an already-resolved AWS client.
func New(client Client, bucket, prefix string) *Stage {
	return &Stage{client: client, bucket: bucket, prefix: prefix}
}

// NewFromEnv resolves the default AWS config (environment/shared config
// file/instance role) and optionally overrides the endpoint, for
// S3-compatible stores such as MinIO.
func NewFromEnv(ctx context.Context, bucket, prefix, endpointURL string) (*Stage, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3stage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	})

	return New(client, bucket, prefix), nil
}

// MirrorFile uploads the file at localPath to bucket/prefix/key.
func (s *Stage) MirrorFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("s3stage: open %s: %w", localPath, err)
	}
	defer f.Close()

	objectKey := key
	if s.prefix != "" {
		objectKey = s.prefix + "/" + key
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3stage: put object %s: %w", objectKey, err)
	}
	return nil
}
