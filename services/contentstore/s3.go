package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// s3API is the subset of *s3.Client the store uses
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Config holds configuration for an S3-compatible store
type S3Config struct {
	// AccountID builds the Cloudflare R2 endpoint when Endpoint is empty
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint overrides the R2 endpoint (MinIO, S3 proper)
	Endpoint string
	// PublicURL is used by Location when the bucket is exposed publicly
	PublicURL string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// S3Store stores files as objects in an S3-compatible bucket such as
// Cloudflare R2. Revision tokens are ETags and writes are conditional
// through If-Match / If-None-Match.
type S3Store struct {
	client    s3API
	bucket    string
	publicURL string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewS3Store creates an S3 store talking to R2 (or cfg.Endpoint)
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3 store: access key and secret are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("s3 store: account id or endpoint is required")
		}
		// R2 endpoint format: https://<account_id>.r2.cloudflarestorage.com
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion("auto"), // R2 uses "auto" region
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg S3Config) *S3Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		timeout:   timeout,
		logger:    logger,
	}
}

// Name identifies the backend
func (s *S3Store) Name() string {
	return "r2"
}

// Provision creates the bucket if HeadBucket reports it missing
func (s *S3Store) Provision(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if err := s.classify("provision", s.bucket, err); !IsNotFound(err) {
		return err
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return s.classify("provision", s.bucket, err)
	}
	s.logger.Info("r2: bucket created", "bucket", s.bucket)
	return nil
}

// Exists returns the ETag of path
func (s *S3Store) Exists(ctx context.Context, path string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		err = s.classify("exists", path, err)
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return aws.ToString(out.ETag), true, nil
}

// Read downloads path
func (s *S3Store) Read(ctx context.Context, path string) (*File, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, s.classify("read", path, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, transportError("read", path, err)
	}
	return &File{Path: path, Content: content, Revision: aws.ToString(out.ETag)}, nil
}

// Write uploads path. An empty revision sends If-None-Match: * so the put
// fails when the object exists; otherwise If-Match pins the ETag.
func (s *S3Store) Write(ctx context.Context, req WriteRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(req.Path),
		Body:          bytes.NewReader(req.Content),
		ContentType:   aws.String(contentTypeFor(req.Path)),
		ContentLength: aws.Int64(int64(len(req.Content))),
	}
	if req.Message != "" {
		input.Metadata = map[string]string{"message": req.Message}
	}
	if req.Revision == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(req.Revision)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", s.classify("write", req.Path, err)
	}

	etag := aws.ToString(out.ETag)
	s.logger.Info("r2: object written", "key", req.Path, "created", req.Revision == "", "etag", etag)
	return etag, nil
}

// Location returns the public URL, or an r2:// reference without one
func (s *S3Store) Location(path string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, path)
	}
	return fmt.Sprintf("r2://%s/%s", s.bucket, path)
}

// classify maps an SDK error onto the store error kinds
func (s *S3Store) classify(op, path string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		kind := kindForS3Code(apiErr.ErrorCode())
		if kind == nil {
			if status == 0 {
				kind = ErrRejected
			} else {
				kind = kindForStatus(status)
			}
		}
		if kind != ErrNotFound {
			s.logger.Warn("r2: API error", "op", op, "key", path, "code", apiErr.ErrorCode(), "status", status)
		}
		return &Error{Op: op, Path: path, StatusCode: status, Kind: kind, Message: apiErr.ErrorMessage(), Err: err}
	}

	if status != 0 {
		return &Error{Op: op, Path: path, StatusCode: status, Kind: kindForStatus(status), Err: err}
	}
	return transportError(op, path, err)
}

func kindForS3Code(code string) error {
	switch code {
	case "NotFound", "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	case "PreconditionFailed", "ConditionalRequestConflict":
		return ErrConflict
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
		return ErrAuth
	case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout":
		return ErrTransient
	}
	return nil
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".md"):
		return "text/markdown; charset=utf-8"
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	}
	return "application/octet-stream"
}
