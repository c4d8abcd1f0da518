package util_test

import (
	"github.com/APTrust/deposit/util"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestHasArchiveExtension(t *testing.T) {
	assert.True(t, util.HasArchiveExtension("photos.zip"))
	assert.True(t, util.HasArchiveExtension("PHOTOS.ZIP"))
	assert.True(t, util.HasArchiveExtension("photos.tar.gz"))
	assert.True(t, util.HasArchiveExtension("photos.tgz"))
	assert.True(t, util.HasArchiveExtension("photos.tar"))
	assert.False(t, util.HasArchiveExtension("photos.tif"))
	assert.False(t, util.HasArchiveExtension("zip"))
	assert.False(t, util.HasArchiveExtension(""))
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "spaces", util.CleanString("  spaces  "))
	assert.Equal(t, "double quoted", util.CleanString("\"double quoted\""))
	assert.Equal(t, "single quoted", util.CleanString("'single quoted'"))
	assert.Equal(t, "\"mismatched'", util.CleanString("\"mismatched'"))
	assert.Equal(t, "\"", util.CleanString("\""))
}

func TestStatusFlag(t *testing.T) {
	assert.True(t, util.StatusFlag("true"))
	assert.True(t, util.StatusFlag("TRUE"))
	assert.True(t, util.StatusFlag(" 1 "))
	assert.True(t, util.StatusFlag("yes"))
	assert.False(t, util.StatusFlag("false"))
	assert.False(t, util.StatusFlag(""))
	assert.False(t, util.StatusFlag("maybe"))
}

func TestBucketNameAndKey(t *testing.T) {
	bucket, key := util.BucketNameAndKey("s3://deposit-staging/incoming/d1/data/photo.jpg")
	assert.Equal(t, "deposit-staging", bucket)
	assert.Equal(t, "incoming/d1/data/photo.jpg", key)
}

func TestStringListContains(t *testing.T) {
	list := []string{"apple", "orange", "banana"}
	assert.True(t, util.StringListContains(list, "orange"))
	assert.False(t, util.StringListContains(list, "wedgie"))
	// Don't panic on nil list
	assert.False(t, util.StringListContains(nil, "mars"))
}
