package sources_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/sources"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

// mockS3 keeps a set of keys in memory. Calling any S3API method
// other than the two below panics.
type mockS3 struct {
	s3iface.S3API
	keys    map[string]bool
	deleted []string
}

func (client *mockS3) HeadObject(input *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
	if !client.keys[aws.StringValue(input.Key)] {
		return nil, awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), 404, "req-1")
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil
}

func (client *mockS3) DeleteObject(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	key := aws.StringValue(input.Key)
	delete(client.keys, key)
	client.deleted = append(client.deleted, key)
	return &s3.DeleteObjectOutput{}, nil
}

func newS3Source(t *testing.T, client *mockS3, readOnly bool) *sources.S3Source {
	source, err := sources.NewS3Source(models.StorageSourceConfig{
		Id:       "s3-staging",
		Kind:     constants.SourceKindS3,
		Base:     "s3://deposit-staging/incoming",
		ReadOnly: readOnly,
	}, client)
	require.Nil(t, err)
	return source
}

func TestS3SourceOwns(t *testing.T) {
	source := newS3Source(t, &mockS3{}, false)
	assert.Equal(t, "deposit-staging", source.Bucket())
	assert.True(t, source.Owns("s3://deposit-staging/incoming/d1/a.txt"))
	assert.False(t, source.Owns("s3://deposit-staging/incoming-old/a.txt"))
	assert.False(t, source.Owns("s3://deposit-staging/incoming/"))
	assert.False(t, source.Owns("s3://other-bucket/incoming/a.txt"))
	assert.False(t, source.Owns("file:///incoming/a.txt"))
}

func TestNewS3Source_BadBase(t *testing.T) {
	_, err := sources.NewS3Source(models.StorageSourceConfig{Id: "x", Base: "file:///tmp/"}, &mockS3{})
	assert.NotNil(t, err)
}

func TestS3SourceDelete(t *testing.T) {
	client := &mockS3{keys: map[string]bool{"incoming/d1/a.txt": true}}
	source := newS3Source(t, client, false)

	deleted, err := source.Delete("s3://deposit-staging/incoming/d1/a.txt")
	require.Nil(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"incoming/d1/a.txt"}, client.deleted)

	deleted, err = source.Delete("s3://deposit-staging/incoming/d1/a.txt")
	require.Nil(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 1, len(client.deleted))

	removed, err := source.PruneEmptyParents("s3://deposit-staging/incoming/d1/a.txt")
	require.Nil(t, err)
	assert.Empty(t, removed)
}

func TestS3Source_ReadOnly(t *testing.T) {
	source := newS3Source(t, &mockS3{}, true)
	assert.True(t, source.IsReadOnly())
	assert.Equal(t, "s3://deposit-staging/incoming", source.Base())
}
