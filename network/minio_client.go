package network

import (
	"fmt"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinioClient returns a client for an S3-compatible server at
// endpoint (host:port).
func NewMinioClient(endpoint, accessKeyId, secretAccessKey string, secure bool) (*minio.Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("Minio endpoint cannot be empty")
	}
	if accessKeyId == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("Minio access key and secret key are required")
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyId, secretAccessKey, ""),
		Secure: secure,
	})
}
