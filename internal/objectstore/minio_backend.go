package objectstore

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
)

// MinIOBackend is the production Backend implementation over an
// S3-compatible object store, grounded on the minio-go/v7 client
// conventions used by the reference pack's MinIO storage layer.
type MinIOBackend struct {
	client *minio.Client
}

// NewMinIOBackend dials an S3-compatible endpoint with static credentials.
func NewMinIOBackend(endpoint, accessKey, secretKey string, useTLS bool) (*MinIOBackend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useTLS,
	})
	if err != nil {
		return nil, err
	}
	return &MinIOBackend{client: client}, nil
}

func (m *MinIOBackend) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinIOErr(key, err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinIOErr(key, err)
	}
	return body, nil
}

func (m *MinIOBackend) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *MinIOBackend) Head(ctx context.Context, bucket, key string) (*ObjectMeta, error) {
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &notFoundErr{key: key}
		}
		return nil, err
	}
	return &ObjectMeta{
		Key:         key,
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
		Tags:        info.UserTags,
	}, nil
}

func (m *MinIOBackend) List(ctx context.Context, bucket, prefix, continuationToken string) ([]string, string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, "", obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, "", nil
}

func (m *MinIOBackend) Tag(ctx context.Context, bucket, key string, objTags map[string]string) error {
	t, err := tags.NewTags(objTags, true)
	if err != nil {
		return err
	}
	return m.client.PutObjectTagging(ctx, bucket, key, t, minio.PutObjectTaggingOptions{})
}

func (m *MinIOBackend) GetTags(ctx context.Context, bucket, key string) (map[string]string, error) {
	t, err := m.client.GetObjectTagging(ctx, bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &notFoundErr{key: key}
		}
		return nil, err
	}
	return t.ToMap(), nil
}

func translateMinIOErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return &notFoundErr{key: key}
	}
	return err
}
