package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

// ObjectAPI 是 ObjectStore 依赖的 S3 子集，*s3.Client 直接满足，测试中可注入内存实现。
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectStoreOptions 描述连接对象存储所需的参数。
type ObjectStoreOptions struct {
	Bucket       string
	Region       string
	Profile      string
	Prefix       string
	Endpoint     string
	UsePathStyle bool
	HTTPClient   *http.Client
	Logger       *logrus.Logger
}

// ObjectStore 将值整体缓存在内存后通过单次 PutObject 上传，不做分片与重试。
type ObjectStore struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger *logrus.Logger
}

// NewObjectStore 加载 AWS 默认凭证链（可指定 profile），并构造 S3 客户端。
func NewObjectStore(ctx context.Context, opts ObjectStoreOptions) (*ObjectStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket required")
	}
	if opts.Region == "" {
		return nil, errors.New("region required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.HTTPClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(opts.HTTPClient))
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

	return NewObjectStoreWithAPI(client, opts.Bucket, opts.Prefix, opts.Logger), nil
}

// NewObjectStoreWithAPI 使用现成的 ObjectAPI 构造后端。
func NewObjectStoreWithAPI(api ObjectAPI, bucket, prefix string, logger *logrus.Logger) *ObjectStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ObjectStore{
		api:    api,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

func (s *ObjectStore) Kind() string {
	return "s3"
}

// Key 返回 hash 在本后端上的对象 key。
func (s *ObjectStore) Key(hash string) string {
	return ObjectKey(s.prefix, hash)
}

func (s *ObjectStore) Get(ctx context.Context, hash string) ([]byte, error) {
	key := s.Key(hash)
	s.logger.WithFields(logrus.Fields{"bucket": s.bucket, "key": key}).Debug("object_get")

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isObjectNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s body: %w", s.bucket, key, err)
	}
	return value, nil
}

func (s *ObjectStore) Put(ctx context.Context, hash string, value []byte) error {
	key := s.Key(hash)
	s.logger.WithFields(logrus.Fields{
		"bucket":       s.bucket,
		"key":          key,
		"value_length": len(value),
	}).Debug("object_put")

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// isObjectNotFound 识别 NoSuchKey 以及 HEAD 风格的 NotFound 响应。
func isObjectNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
