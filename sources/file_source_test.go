package sources_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/sources"
	"github.com/APTrust/deposit/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func newFileSource(t *testing.T, root string, readOnly bool) *sources.FileSource {
	source, err := sources.NewFileSource(models.StorageSourceConfig{
		Id:       "staging",
		Kind:     constants.SourceKindFilesystem,
		Base:     testutil.FileURI(root) + "/",
		ReadOnly: readOnly,
	})
	require.Nil(t, err)
	return source
}

func TestLocalPath(t *testing.T) {
	path, err := sources.LocalPath("file:///mnt/staging/d1/a.txt")
	require.Nil(t, err)
	assert.Equal(t, "/mnt/staging/d1/a.txt", path)

	path, err = sources.LocalPath("/mnt/staging/../staging/a.txt")
	require.Nil(t, err)
	assert.Equal(t, "/mnt/staging/a.txt", path)

	_, err = sources.LocalPath("s3://bucket/a.txt")
	assert.NotNil(t, err)
	_, err = sources.LocalPath("relative/a.txt")
	assert.NotNil(t, err)
}

func TestNewFileSource_RefusesFilesystemRoot(t *testing.T) {
	_, err := sources.NewFileSource(models.StorageSourceConfig{Id: "root", Base: "file:///"})
	assert.NotNil(t, err)
}

func TestFileSourceOwns(t *testing.T) {
	root := t.TempDir()
	source := newFileSource(t, root, false)
	assert.Equal(t, root, source.Root())
	assert.True(t, source.Owns(testutil.FileURI(filepath.Join(root, "d1", "a.txt"))))
	assert.True(t, source.Owns(filepath.Join(root, "d1", "a.txt")))
	assert.False(t, source.Owns(testutil.FileURI(root+"-other/a.txt")))
	assert.False(t, source.Owns("s3://bucket/a.txt"))
}

func TestFileSourceDeleteAndPrune(t *testing.T) {
	root := t.TempDir()
	source := newFileSource(t, root, false)
	fileA, err := testutil.WriteStagedFile(root, "d1/data/sub/a.txt")
	require.Nil(t, err)
	fileB, err := testutil.WriteStagedFile(root, "d1/b.txt")
	require.Nil(t, err)

	deleted, err := source.Delete(testutil.FileURI(fileA))
	require.Nil(t, err)
	assert.True(t, deleted)
	removed, err := source.PruneEmptyParents(testutil.FileURI(fileA))
	require.Nil(t, err)

	// d1 still holds b.txt, so pruning stops there.
	assert.Equal(t, []string{
		filepath.Join(root, "d1", "data", "sub"),
		filepath.Join(root, "d1", "data"),
	}, removed)
	assert.DirExists(t, filepath.Join(root, "d1"))

	deleted, err = source.Delete(testutil.FileURI(fileB))
	require.Nil(t, err)
	assert.True(t, deleted)
	removed, err = source.PruneEmptyParents(testutil.FileURI(fileB))
	require.Nil(t, err)
	assert.Equal(t, []string{filepath.Join(root, "d1")}, removed)

	// The root is never removed, even when empty.
	assert.DirExists(t, root)
}

func TestFileSourceDelete_AlreadyGone(t *testing.T) {
	root := t.TempDir()
	source := newFileSource(t, root, false)
	uri := testutil.FileURI(filepath.Join(root, "gone", "a.txt"))
	deleted, err := source.Delete(uri)
	require.Nil(t, err)
	assert.False(t, deleted)

	// Parents that were never there, or already pruned, are fine.
	removed, err := source.PruneEmptyParents(uri)
	require.Nil(t, err)
	assert.Empty(t, removed)
}

func TestFileSourceDelete_RefusesRootAndOutsiders(t *testing.T) {
	root := t.TempDir()
	source := newFileSource(t, root, false)
	_, err := source.Delete(testutil.FileURI(root))
	assert.NotNil(t, err)
	_, err = source.Delete(testutil.FileURI(filepath.Join(root, "..", "elsewhere.txt")))
	assert.NotNil(t, err)
}

func TestFileSource_ReadOnly(t *testing.T) {
	root := t.TempDir()
	source := newFileSource(t, root, true)
	path, err := testutil.WriteStagedFile(root, "d1/a.txt")
	require.Nil(t, err)

	assert.True(t, source.IsReadOnly())
	_, err = os.Stat(path)
	assert.Nil(t, err)
}
