package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"motorcycle-manuals/internal/credentials"
)

// S3 puts files into a bucket, under an optional key prefix.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3(ctx context.Context, cfg credentials.S3) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: add the `bucket' and try again")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			awscredentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *S3) Name() string {
	return MethodS3
}

func (s *S3) Put(ctx context.Context, file string, body io.Reader) Result {
	buf := &bytes.Buffer{}
	_, err := io.Copy(buf, body)
	if err != nil {
		return Skip(fmt.Errorf("read %s: %w", file, err))
	}

	key := s.prefix + file
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return Skip(fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err))
	}
	return Done(int64(buf.Len()))
}

func (s *S3) Close() error {
	return nil
}
