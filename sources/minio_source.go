package sources

import (
	"context"
	"fmt"
	"github.com/APTrust/deposit/models"
	"github.com/minio/minio-go/v7"
	"strings"
)

// MinioObjectClient is the part of *minio.Client that MinioSource
// uses.
type MinioObjectClient interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioSource is a staging area on an S3-compatible server other
// than AWS. Base uses the s3:// scheme, just like S3Source, and
// the server is named by the config's Endpoint.
type MinioSource struct {
	config models.StorageSourceConfig
	bucket string
	prefix string
	client MinioObjectClient
}

func NewMinioSource(config models.StorageSourceConfig, client MinioObjectClient) (*MinioSource, error) {
	bucket, prefix, err := parseBucketBase(config.Base)
	if err != nil {
		return nil, err
	}
	return &MinioSource{
		config: config,
		bucket: bucket,
		prefix: prefix,
		client: client,
	}, nil
}

func (source *MinioSource) Id() string {
	return source.config.Id
}

func (source *MinioSource) Base() string {
	return source.config.Base
}

func (source *MinioSource) IsReadOnly() bool {
	return source.config.ReadOnly
}

func (source *MinioSource) Owns(uri string) bool {
	_, err := source.keyFor(uri)
	return err == nil
}

func (source *MinioSource) keyFor(uri string) (string, error) {
	bucket, key, err := objectBucketAndKey(uri, "s3")
	if err != nil {
		return "", err
	}
	if bucket != source.bucket || !strings.HasPrefix(key, source.prefix) || key == source.prefix {
		return "", fmt.Errorf("'%s' is not an object inside source %s", uri, source.Id())
	}
	return key, nil
}

func (source *MinioSource) Delete(uri string) (bool, error) {
	key, err := source.keyFor(uri)
	if err != nil {
		return false, err
	}
	ctx := context.Background()
	_, err = source.client.StatObject(ctx, source.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("Stat %s/%s on %s: %v", source.bucket, key, source.config.Endpoint, err)
	}
	err = source.client.RemoveObject(ctx, source.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return false, fmt.Errorf("Remove %s/%s on %s: %v", source.bucket, key, source.config.Endpoint, err)
	}
	return true, nil
}

func (source *MinioSource) PruneEmptyParents(uri string) ([]string, error) {
	if _, err := source.keyFor(uri); err != nil {
		return nil, err
	}
	return []string{}, nil
}
