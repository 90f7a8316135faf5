package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"djc/config"
)

const defaultRegion = "us-east-1"

// envelope is what is actually written to the bucket, object stores do not
// expire objects on their own with the precision we need.
type envelope struct {
	Artifact
	Expires time.Time `json:"expires"`
}

// S3 keeps artifacts as objects in S3 compatible storage.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
	region string
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time

	initOnce sync.Once
	initErr  error
}

func NewS3(cfg *config.S3Config, ttl time.Duration, log *zap.Logger) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	opts := &minio.Options{Secure: cfg.UseSSL, Region: region}
	if access, secret := strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey.Reveal()); access != "" || secret != "" {
		if access == "" || secret == "" {
			return nil, errors.New("s3 access key and secret key must be set together")
		}
		opts.Creds = credentials.NewStaticV4(access, secret, "")
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: region,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}, nil
}

func (s *S3) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.log.Info("Creating bucket", zap.String("bucket", s.bucket), zap.String("region", s.region))
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3) objectKey(key string) string {
	if len(s.prefix) == 0 {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3) Put(ctx context.Context, a Artifact) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	data, err := encodeEnvelope(a, expiresAt(s.now(), s.ttl))
	if err != nil {
		return "", err
	}

	key := newKey()
	_, err = s.client.PutObject(ctx, s.bucket, s.objectKey(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return key, nil
}

func (s *S3) Take(ctx context.Context, key string) (Artifact, error) {
	if !validKey(key) {
		return Artifact{}, ErrNotFound
	}
	if err := s.ensureBucket(ctx); err != nil {
		return Artifact{}, fmt.Errorf("ensure bucket: %w", err)
	}

	name := s.objectKey(key)
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return Artifact{}, mapS3Error(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return Artifact{}, mapS3Error(err)
	}

	// one-shot regardless of expiration
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		s.log.Warn("Unable to remove artifact", zap.String("key", key), zap.Error(err))
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return Artifact{}, err
	}
	if !s.now().Before(env.Expires) {
		return Artifact{}, ErrNotFound
	}
	return env.Artifact, nil
}

func (s *S3) Close() error {
	return nil
}

func mapS3Error(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	}
	return err
}

func encodeEnvelope(a Artifact, expires time.Time) ([]byte, error) {
	data, err := json.Marshal(envelope{Artifact: a, Expires: expires.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("decode artifact: %w", err)
	}
	return env, nil
}
