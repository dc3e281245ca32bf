// Package objectstore lists parquet exports in the source bucket.
package objectstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rocketman-21/farcaster-cron/pkg/config"
)

// Page is one ListObjectsV2 response.
type Page struct {
	Keys []string
	// NextToken is empty on the last page.
	NextToken string
}

// Lister pages through object keys under a prefix.
type Lister interface {
	ListPage(ctx context.Context, prefix, token string) (Page, error)
	Bucket() string
}

// listObjectsAPI is the subset of *s3.Client the lister needs.
type listObjectsAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Lister implements Lister on top of aws-sdk-go-v2.
type S3Lister struct {
	client  listObjectsAPI
	bucket  string
	maxKeys int32
}

// NewS3Client builds an S3 client from the service config. Static credentials are
// used when configured; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// NewS3Lister creates a lister for bucket.
func NewS3Lister(client listObjectsAPI, bucket string, maxKeys int32) *S3Lister {
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}
	return &S3Lister{client: client, bucket: bucket, maxKeys: maxKeys}
}

func (l *S3Lister) Bucket() string {
	return l.bucket
}

func (l *S3Lister) ListPage(ctx context.Context, prefix, token string) (Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(l.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(l.maxKeys),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := l.client.ListObjectsV2(ctx, input)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list s3://%s/%s: %w", l.bucket, prefix, err)
	}

	page := Page{Keys: make([]string, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		if key := aws.ToString(obj.Key); key != "" {
			page.Keys = append(page.Keys, key)
		}
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

// URL returns the s3:// location of key in the lister's bucket.
func URL(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
