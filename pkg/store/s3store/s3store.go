// Package s3store keeps build results as objects in an S3-compatible bucket.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/persist"
)

const (
	objectPrefix = "build-"
	contentType  = "application/json"
)

// ErrNoBucket is returned when no bucket is configured.
var ErrNoBucket = errors.New("s3 bucket is required")

// API is the subset of the S3 client the store uses. *s3.Client satisfies it.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Options configures the client. Empty credentials fall back to the default
// AWS credential chain.
type Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store is a history.Store over a bucket prefix.
type Store struct {
	api    API
	bucket string
	prefix string
	codec  persist.Codec
}

// Dial builds an S3 client from opts.
func Dial(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, ErrNoBucket
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}

		o.UsePathStyle = opts.UsePathStyle
	})

	return New(client, opts.Bucket, opts.Prefix), nil
}

// New wraps an existing client.
func New(api API, bucket, prefix string) *Store {
	return &Store{
		api:    api,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(prefix, "/"),
		codec:  &persist.JSONCodec{},
	}
}

func (s *Store) listPrefix() string {
	if s.prefix == "" {
		return objectPrefix
	}

	return s.prefix + "/" + objectPrefix
}

func (s *Store) key(id build.ID) string {
	return s.listPrefix() + strconv.FormatInt(id, 10) + s.codec.Extension()
}

// Save implements history.Store.
func (s *Store) Save(ctx context.Context, result *build.Result) error {
	data, err := persist.Marshal(s.codec, result)
	if err != nil {
		return err
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(result.BuildID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put build %d: %w", result.BuildID, err)
	}

	return nil
}

// Load implements history.Loader.
func (s *Store) Load(ctx context.Context, id build.ID) (*build.Result, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, fmt.Errorf("%w: %d", history.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("get build %d: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read build %d: %w", id, err)
	}

	var r build.Result

	if err := persist.Unmarshal(s.codec, data, &r); err != nil {
		return nil, fmt.Errorf("%w: build %d: %w", history.ErrCorrupt, id, err)
	}

	if err := history.Verify(id, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// IDs implements history.Store. Objects that do not follow the naming scheme are ignored.
func (s *Store) IDs(ctx context.Context) ([]build.ID, error) {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.listPrefix()),
	})

	var ids []build.ID

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list builds: %w", err)
		}

		for _, obj := range page.Contents {
			if id, ok := s.parseKey(aws.ToString(obj.Key)); ok {
				ids = append(ids, id)
			}
		}
	}

	slices.Sort(ids)

	return ids, nil
}

func (s *Store) parseKey(key string) (build.ID, bool) {
	base, ok := strings.CutSuffix(path.Base(key), s.codec.Extension())
	if !ok {
		return 0, false
	}

	raw, ok := strings.CutPrefix(base, objectPrefix)
	if !ok {
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

// Close implements io.Closer.
func (s *Store) Close() error { return nil }
