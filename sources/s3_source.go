package sources

import (
	"fmt"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/util"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"net/http"
	"net/url"
	"strings"
)

// S3Source is a staging area in an S3 bucket. Base looks like
// s3://bucket/prefix/.
type S3Source struct {
	config models.StorageSourceConfig
	bucket string
	prefix string
	client s3iface.S3API
}

func NewS3Source(config models.StorageSourceConfig, client s3iface.S3API) (*S3Source, error) {
	bucket, prefix, err := parseBucketBase(config.Base)
	if err != nil {
		return nil, err
	}
	return &S3Source{
		config: config,
		bucket: bucket,
		prefix: prefix,
		client: client,
	}, nil
}

// parseBucketBase splits an s3:// base URI into bucket and key
// prefix. A non-empty prefix always ends with a slash, so that
// "incoming" does not own "incoming-old".
func parseBucketBase(base string) (string, string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", "", err
	}
	if parsed.Scheme != "s3" || parsed.Host == "" {
		return "", "", fmt.Errorf("'%s' is not an s3://bucket/ URI", base)
	}
	_, prefix := util.BucketNameAndKey(base)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return parsed.Host, prefix, nil
}

func (source *S3Source) Id() string {
	return source.config.Id
}

func (source *S3Source) Base() string {
	return source.config.Base
}

func (source *S3Source) IsReadOnly() bool {
	return source.config.ReadOnly
}

// Bucket returns the name of the source's bucket.
func (source *S3Source) Bucket() string {
	return source.bucket
}

func (source *S3Source) Owns(uri string) bool {
	_, err := source.keyFor(uri)
	return err == nil
}

func (source *S3Source) keyFor(uri string) (string, error) {
	bucket, key, err := objectBucketAndKey(uri, "s3")
	if err != nil {
		return "", err
	}
	if bucket != source.bucket || !strings.HasPrefix(key, source.prefix) || key == source.prefix {
		return "", fmt.Errorf("'%s' is not an object inside source %s", uri, source.Id())
	}
	return key, nil
}

func objectBucketAndKey(uri, scheme string) (string, string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if parsed.Scheme != scheme {
		return "", "", fmt.Errorf("'%s' is not a %s:// URI", uri, scheme)
	}
	bucket, key := util.BucketNameAndKey(uri)
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("'%s' has no bucket or key", uri)
	}
	return bucket, key, nil
}

// Delete checks for the object before deleting it, because S3 reports
// success when deleting keys that don't exist.
func (source *S3Source) Delete(uri string) (bool, error) {
	key, err := source.keyFor(uri)
	if err != nil {
		return false, err
	}
	_, err = source.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(source.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("HEAD s3://%s/%s: %v", source.bucket, key, err)
	}
	_, err = source.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(source.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("DELETE s3://%s/%s: %v", source.bucket, key, err)
	}
	return true, nil
}

// PruneEmptyParents is a no-op. Buckets have no directories, only
// key prefixes, and a prefix disappears with its last object.
func (source *S3Source) PruneEmptyParents(uri string) ([]string, error) {
	if _, err := source.keyFor(uri); err != nil {
		return nil, err
	}
	return []string{}, nil
}

func isS3NotFound(err error) bool {
	if requestFailure, ok := err.(awserr.RequestFailure); ok {
		return requestFailure.StatusCode() == http.StatusNotFound
	}
	if awsErr, ok := err.(awserr.Error); ok {
		return awsErr.Code() == "NotFound" || awsErr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}
