package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payload-log/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the subset of *s3.Client used by S3.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads log objects stored as <prefix><service>-<session>.log.
//
// Only objects directly under the prefix are considered; keys with a
// further "/" belong to some other tree and are ignored by listing.
type S3 struct {
	api         ObjectAPI
	bucket      string
	prefix      string
	listTimeout time.Duration
}

// NewS3
//
// listTimeout bounds a whole ListSessions scan. Reads are bounded only by
// the caller's ctx, because a stream may legitimately stay open for as
// long as the operator keeps tailing.
func NewS3(api ObjectAPI, bucket, prefix string, listTimeout time.Duration) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{api: api, bucket: bucket, prefix: prefix, listTimeout: listTimeout}
}

// NewS3Client
//
// Builds the S3 client. SDK level retries are disabled: the query path
// never retries, a storage failure is reported to the caller as-is.
// endpoint overrides the AWS endpoint (MinIO, LocalStack) and switches
// to path-style addressing.
func NewS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Retryer = aws.NopRetryer{}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

func (s *S3) ListSessions(ctx context.Context) (model.SessionIndex, error) {
	if s.listTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.listTimeout)
		defer cancel()
	}

	b := model.NewSessionIndexBuilder()
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return model.NewSessionIndexBuilder().Build(), nil
			}
			return model.SessionIndex{}, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if strings.Contains(name, "/") {
				continue
			}
			if addr, ok := model.ParseObjectName(name); ok {
				b.Add(addr)
			}
		}
	}
	return b.Build(), nil
}

func (s *S3) OpenLines(ctx context.Context, addr model.Address) (LineIterator, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	key := s.prefix + addr.ObjectName()
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}

	it, err := newLineReader(ctx, out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return it, nil
}

// isNotFound reports missing keys and missing buckets.
// GetObject without ListBucket permission answers 403 for a missing key;
// that stays an error.
func isNotFound(err error) bool {
	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		notFound *types.NotFound
	)
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return false
}
