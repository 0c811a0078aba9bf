package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/mp-manager/mp-manager/internal/config"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
	"github.com/mp-manager/mp-manager/pkg/api"
)

// S3API is the part of the S3 client used by exports.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a client from the default AWS credential chain. Endpoint
// and PathStyle allow S3 compatible stores such as MinIO.
func NewS3Client(ctx context.Context, cfg *config.S3Config) (*s3.Client, error) {
	region := "us-east-1"
	if cfg != nil && cfg.Region != "" {
		region = cfg.Region
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg == nil {
			return
		}
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func parseS3URL(dest string) (string, string, error) {
	u, err := url.Parse(dest)
	if err != nil {
		return "", "", fmt.Errorf("invalid destination %s: %w", dest, err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid destination %s, expected s3://bucket/key", dest)
	}
	return bucket, key, nil
}

func (e *Exporter) client(ctx context.Context) (S3API, error) {
	if e.s3Client != nil {
		return e.s3Client, nil
	}
	var cfg *config.S3Config
	if e.config != nil {
		cfg = e.config.S3
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot create S3 client: %w", err)
	}
	return client, nil
}

func (e *Exporter) exportS3(ctx context.Context, dest string, rows iter.Seq2[api.ProjectionRow, error]) (int, error) {
	bucket, key, err := parseS3URL(dest)
	if err != nil {
		return 0, err
	}
	client, err := e.client(ctx)
	if err != nil {
		return 0, err
	}

	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err == nil {
		return 0, serviceerrors.NewOutputConflictError(dest)
	}
	if !isNotFound(err) {
		return 0, fmt.Errorf("cannot check %s: %w", dest, err)
	}

	var buf bytes.Buffer
	count, err := WriteCSV(&buf, rows)
	if err != nil {
		return count, err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
		// the object may have been created since the HEAD
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if apiErrorCode(err) == "PreconditionFailed" {
			return count, serviceerrors.NewOutputConflictError(dest)
		}
		return count, fmt.Errorf("cannot write %s: %w", dest, err)
	}
	return count, nil
}

func isNotFound(err error) bool {
	switch apiErrorCode(err) {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
