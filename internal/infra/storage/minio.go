package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store keeps inspection images in a MinIO (or any S3 compatible) bucket.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	maxSize    int64
}

// New buat koneksi MinIO and makes sure the bucket exists.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region, maxSize: DefaultMaxImageSize}, nil
}

// Load implements ai.ImageLoader. ref is an object key, optionally written as
// s3://<bucket>/<key> or /<bucket>/<key>.
func (s *Store) Load(ctx context.Context, ref string) ([]byte, error) {
	key := s.objectKey(ref)
	if key == "" {
		return nil, fmt.Errorf("empty image reference")
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("image %s exceeds %d bytes", key, s.maxSize)
	}
	return data, nil
}

func (s *Store) objectKey(ref string) string {
	ref = strings.TrimPrefix(ref, "s3://")
	ref = strings.TrimPrefix(ref, "/")
	return strings.TrimPrefix(ref, s.bucketName+"/")
}
