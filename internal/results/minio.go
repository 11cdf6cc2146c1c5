package results

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore keeps result documents in a MinIO/S3 bucket under a
// "decisions_..." key per file. LastModified ordering replaces file mtimes.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *ObjectStore) Save(ctx context.Context, filename string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, filename, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put result object: %w", err)
	}
	return nil
}

func (s *ObjectStore) FindLatest(ctx context.Context, meeting, coderID string) ([]byte, error) {
	prefix := fmt.Sprintf("decisions_%s_%s_", meeting, coderID)
	var latest *minio.ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list result objects: %w", object.Err)
		}
		o := object
		if latest == nil || o.LastModified.After(latest.LastModified) {
			latest = &o
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, meeting, coderID)
	}
	reader, err := s.client.GetObject(ctx, s.bucket, latest.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get result object: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read result object: %w", err)
	}
	return data, nil
}

func (s *ObjectStore) List(ctx context.Context, coderID string) ([]FileInfo, error) {
	var items []FileInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: "decisions_"}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list result objects: %w", object.Err)
		}
		info, ok := ParseFilename(object.Key)
		if !ok {
			continue
		}
		if coderID != "" && info.CoderID != coderID {
			continue
		}
		info.ModifiedAt = object.LastModified
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ModifiedAt.After(items[j].ModifiedAt) })
	return items, nil
}
