package mailbox

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	"golang-edi-invoice-service/pkg/errors"
	"golang-edi-invoice-service/pkg/logger"
)

// S3Config locates a mailbox in an S3-compatible bucket.
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Outbox       string `mapstructure:"outbox"`
	Archive      string `mapstructure:"archive"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`

	// RequestsPerSecond throttles API calls; zero disables throttling.
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// ParseURL fills Bucket and Prefix from s3://bucket/prefix.
func ParseURL(raw string) (S3Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return S3Config{}, err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return S3Config{}, fmt.Errorf("mailbox URL must look like s3://bucket/prefix, got %q", raw)
	}
	prefix := strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return S3Config{Bucket: u.Host, Prefix: prefix}, nil
}

// s3API is the subset of the S3 client used by the mailbox.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 is a mailbox backed by an S3 bucket. Inbox documents live directly
// under Prefix; acknowledgments are written under Prefix + Outbox and
// handled documents are moved under Prefix + Archive.
type S3 struct {
	client     s3API
	config     S3Config
	limiter    *rate.Limiter
	extensions []string
	logger     logger.Logger
}

// NewS3 creates an S3 mailbox using the default AWS credential chain, or
// static credentials when both keys are set.
func NewS3(ctx context.Context, cfg S3Config, log logger.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "mailbox.bucket", nil, nil)
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.TransportError(errors.CodeConnectionFailed, "s3://"+cfg.Bucket, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3(client, cfg, log), nil
}

func newS3(client s3API, cfg S3Config, log logger.Logger) *S3 {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}
	if cfg.Outbox == "" {
		cfg.Outbox = DefaultOutbox
	}
	cfg.Outbox = strings.Trim(cfg.Outbox, "/") + "/"
	if cfg.Archive == "" {
		cfg.Archive = DefaultArchive
	}
	cfg.Archive = strings.Trim(cfg.Archive, "/") + "/"
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &S3{
		client:     client,
		config:     cfg,
		limiter:    limiter,
		extensions: DefaultExtensions,
		logger:     log.WithComponent("mailbox"),
	}
}

func (m *S3) String() string {
	return "s3://" + m.config.Bucket + "/" + m.config.Prefix
}

func (m *S3) List(ctx context.Context) ([]string, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:    aws.String(m.config.Bucket),
		Prefix:    aws.String(m.config.Prefix),
		Delimiter: aws.String("/"),
	}

	var names []string
	pages := s3.NewListObjectsV2Paginator(m.client, in)
	for pages.HasMorePages() {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := withTimeout(ctx, m.config.Timeout, func(ctx context.Context) (*s3.ListObjectsV2Output, error) {
			return pages.NextPage(ctx)
		})
		if err != nil {
			return nil, m.transportError(m.String(), err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), m.config.Prefix)
			if name == "" || strings.Contains(name, "/") || !hasExtension(name, m.extensions) {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	m.logger.WithFields(logger.Fields{"mailbox": m.String(), "documents": len(names)}).Debug("Inbox listed")
	return names, nil
}

func (m *S3) Fetch(ctx context.Context, name string) ([]byte, error) {
	key, err := m.key(m.config.Prefix, name)
	if err != nil {
		return nil, err
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := withTimeout(ctx, m.config.Timeout, func(ctx context.Context) (*s3.GetObjectOutput, error) {
		return m.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.config.Bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return nil, m.transportError(m.url(key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, m.transportError(m.url(key), err)
	}
	return data, nil
}

func (m *S3) Deliver(ctx context.Context, name string, data []byte) error {
	key, err := m.key(m.config.Prefix+m.config.Outbox, name)
	if err != nil {
		return err
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = withTimeout(ctx, m.config.Timeout, func(ctx context.Context) (*s3.PutObjectOutput, error) {
		return m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.config.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/edi-x12"),
		})
	})
	if err != nil {
		return m.transportError(m.url(key), err)
	}

	m.logger.WithFields(logger.Fields{"key": key, "bytes": len(data)}).Info("Document delivered")
	return nil
}

// Archive copies an inbox object under the archive prefix, then deletes
// the original. S3 has no rename.
func (m *S3) Archive(ctx context.Context, name string) error {
	src, err := m.key(m.config.Prefix, name)
	if err != nil {
		return err
	}
	dst, err := m.key(m.config.Prefix+m.config.Archive, name)
	if err != nil {
		return err
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = withTimeout(ctx, m.config.Timeout, func(ctx context.Context) (*s3.CopyObjectOutput, error) {
		return m.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(m.config.Bucket),
			CopySource: aws.String(copySource(m.config.Bucket, src)),
			Key:        aws.String(dst),
		})
	})
	if err != nil {
		return m.transportError(m.url(src), err)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = withTimeout(ctx, m.config.Timeout, func(ctx context.Context) (*s3.DeleteObjectOutput, error) {
		return m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.config.Bucket),
			Key:    aws.String(src),
		})
	})
	if err != nil {
		return m.transportError(m.url(src), err)
	}

	m.logger.WithFields(logger.Fields{"from": src, "to": dst}).Info("Document archived")
	return nil
}

// copySource is the URL-encoded bucket/key form CopyObject expects.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

func (m *S3) key(prefix, name string) (string, error) {
	n, err := cleanName(name)
	if err != nil {
		return "", errors.TransportError(errors.CodeRemoteNotFound, m.String()+name, err)
	}
	return prefix + n, nil
}

func (m *S3) url(key string) string {
	return "s3://" + m.config.Bucket + "/" + key
}

func (m *S3) transportError(endpoint string, err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	switch {
	case stderrors.As(err, &noKey), stderrors.As(err, &noBucket):
		return errors.TransportError(errors.CodeRemoteNotFound, endpoint, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.TransportError(errors.CodeTimeout, endpoint, err)
	}
	return errors.TransportError(errors.CodeConnectionFailed, endpoint, err)
}

// withTimeout bounds one API request.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
