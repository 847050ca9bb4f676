// Package r2 implements object.Store for Cloudflare R2.
package r2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hlsgate/pkg/object"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Config holds R2 connection details.
type Config struct {
	AccountID        string
	AccessKey        string
	SecretAccessKey  string
	Bucket           string
	Region           string
	EndpointOverride string
}

// Storage implements object.Store for Cloudflare R2. The gateway only
// reads from the bucket, so Storage exposes no write operations.
type Storage struct {
	client *s3.Client
	bucket string
}

// Init bootstraps the R2 client using static credentials.
func (s *Storage) Init(ctx context.Context, param any) error {
	cfg, ok := param.(Config)
	if !ok {
		if p, ok := param.(*Config); ok && p != nil {
			cfg = *p
		} else {
			return fmt.Errorf("r2: unexpected config type %T", param)
		}
	}

	if cfg.AccountID == "" && cfg.EndpointOverride == "" {
		return errors.New("r2: AccountID or EndpointOverride required")
	}
	if cfg.AccessKey == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return errors.New("r2: AccessKey, SecretAccessKey, and Bucket are required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return fmt.Errorf("r2: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		base := cfg.EndpointOverride
		if base == "" {
			base = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
		}
		o.BaseEndpoint = aws.String(base)
	})

	s.client = client
	s.bucket = cfg.Bucket
	return nil
}

// Close cleans up resources; no-op for R2.
func (s *Storage) Close(_ context.Context) error {
	return nil
}

// Stat returns metadata only.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, err
	}

	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return object.Object{}, mapError(err)
	}

	return object.Object{
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		ETag:         aws.ToString(resp.ETag),
		ContentType:  aws.ToString(resp.ContentType),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

// Get fetches metadata plus a streaming reader. When rng is non-nil the
// request carries a Range header; a 206 from R2 is reported back through
// Read.Served so the caller can tell an honored range from a full read.
func (s *Storage) Get(ctx context.Context, key string, rng *object.Range) (object.Read, error) {
	if err := s.ensureClient(); err != nil {
		return object.Read{}, err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if rng != nil {
		input.Range = aws.String(rangeHeader(*rng))
	}

	resp, err := s.client.GetObject(ctx, input)
	if err != nil {
		return object.Read{}, mapError(err)
	}

	rd := object.Read{
		Object: object.Object{
			Key:          key,
			Size:         aws.ToInt64(resp.ContentLength),
			ETag:         aws.ToString(resp.ETag),
			ContentType:  aws.ToString(resp.ContentType),
			LastModified: aws.ToTime(resp.LastModified),
		},
		Body: resp.Body,
	}

	if rng != nil {
		if offset, length, total, ok := parseContentRange(aws.ToString(resp.ContentRange)); ok {
			rd.Object.Size = total
			rd.Served = &object.ServedRange{Offset: offset, Length: length}
		}
	}

	return rd, nil
}

func (s *Storage) ensureClient() error {
	if s.client == nil {
		return errors.New("r2: client not initialized")
	}
	return nil
}

func rangeHeader(rng object.Range) string {
	if rng.End >= 0 {
		return fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End)
	}
	return fmt.Sprintf("bytes=%d-", rng.Start)
}

// parseContentRange decodes "bytes <start>-<end>/<total>" as returned on a
// 206 response. Responses without a parsable Content-Range count as full
// reads.
func parseContentRange(header string) (offset, length, total int64, ok bool) {
	rest, found := strings.CutPrefix(header, "bytes ")
	if !found {
		return 0, 0, 0, false
	}
	span, totalStr, found := strings.Cut(rest, "/")
	if !found {
		return 0, 0, 0, false
	}
	startStr, endStr, found := strings.Cut(span, "-")
	if !found {
		return 0, 0, 0, false
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, 0, false
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, 0, false
	}
	total, err = strconv.ParseInt(totalStr, 10, 64)
	if err != nil || total <= end {
		return 0, 0, 0, false
	}
	return start, end - start + 1, total, true
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return object.ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch strings.ToLower(apiErr.ErrorCode()) {
		case "nosuchkey", "notfound", "404":
			return object.ErrNotFound
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return object.ErrNotFound
	}

	return err
}

// Ensure Storage implements the Store interface.
var _ object.Store = (*Storage)(nil)
