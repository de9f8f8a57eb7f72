package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	contentPrefix  = "content/"
	metadataPrefix = "meta/"
)

// MinioConfig locates an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps each upload as two objects: the raw content under
// content/<id> and a JSON metadata document under meta/<id>.json.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	maxSize int64
}

// NewMinioStore connects to the endpoint and creates the bucket if needed.
func NewMinioStore(ctx context.Context, cfg MinioConfig, maxSize int64) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := &MinioStore{client: client, bucket: cfg.Bucket, maxSize: maxSize}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func contentKey(id uuid.UUID) string  { return contentPrefix + id.String() }
func metadataKey(id uuid.UUID) string { return metadataPrefix + id.String() + ".json" }

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *MinioStore) Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(meta, content, s.maxSize)
	if err != nil {
		return nil, err
	}

	_, err = s.client.PutObject(ctx, s.bucket, contentKey(meta.ID), bytes.NewReader(data), meta.Size, minio.PutObjectOptions{
		ContentType: meta.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("store upload content: %w", err)
	}

	doc, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode upload metadata: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, metadataKey(meta.ID), bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		_ = s.client.RemoveObject(ctx, s.bucket, contentKey(meta.ID), minio.RemoveObjectOptions{})
		return nil, fmt.Errorf("store upload metadata: %w", err)
	}
	return &meta, nil
}

func (s *MinioStore) readMetadata(ctx context.Context, key string) (*Metadata, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &meta, nil
}

func (s *MinioStore) Stat(ctx context.Context, id uuid.UUID) (*Metadata, error) {
	return s.readMetadata(ctx, metadataKey(id))
}

func (s *MinioStore) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Metadata, error) {
	meta, err := s.Stat(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, contentKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get upload content: %w", err)
	}
	return obj, meta, nil
}

func (s *MinioStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Stat(ctx, id); err != nil {
		return err
	}
	for _, key := range []string{contentKey(id), metadataKey(id)} {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// List reads every metadata document. Upload volumes are small enough for
// a full scan.
func (s *MinioStore) List(ctx context.Context, params SearchParams) ([]*Metadata, int, error) {
	var matched []*Metadata
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: metadataPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, 0, fmt.Errorf("list uploads: %w", obj.Err)
		}
		meta, err := s.readMetadata(ctx, obj.Key)
		if err == ErrBlobNotFound {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		if matchesSearch(meta, params) {
			matched = append(matched, meta)
		}
	}
	return paginate(matched, params.Limit, params.Offset), len(matched), nil
}

// Ping checks the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
