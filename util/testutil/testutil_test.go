package testutil_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/util"
	"github.com/APTrust/deposit/util/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
)

func TestMakeDepositStatus(t *testing.T) {
	status := testutil.MakeDepositStatus(constants.PackagingBagIt)
	_, err := uuid.Parse(status.DepositId)
	assert.Nil(t, err)
	assert.Equal(t, constants.PackagingBagIt, status.PackagingType())
	assert.Equal(t, constants.StateReceived, status.State())
	assert.False(t, util.HasArchiveExtension(status.FileName()))
	assert.NotEqual(t, testutil.MakeDepositId(), testutil.MakeDepositId())
}

func TestMakeConfig(t *testing.T) {
	config := testutil.MakeConfig(t.TempDir())
	assert.Nil(t, config.Validate())
}

func TestWriteDepositGraph(t *testing.T) {
	dir := t.TempDir()
	locations := []models.StagingLocation{
		{URI: "file:///mnt/staging/a.txt", Role: constants.RoleIngested},
		{URI: "file:///mnt/staging/manifest.txt", Role: constants.RoleCleanupOnly},
	}
	path, err := testutil.WriteDepositGraph(dir, "dep-1", locations)
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(dir, "dep-1", constants.DepositGraphFile), path)

	reader := &models.DepositGraphReader{DepositsDirectory: dir}
	read, err := reader.StagingLocations("dep-1")
	require.Nil(t, err)
	require.Equal(t, 2, len(read))
	assert.Equal(t, "dep-1", read[0].DepositId)
	assert.Equal(t, constants.RoleIngested, read[0].Role)
	assert.Equal(t, constants.RoleCleanupOnly, read[1].Role)
}

func TestWriteStagedFile(t *testing.T) {
	root := t.TempDir()
	path, err := testutil.WriteStagedFile(root, "d1/data/a.txt")
	require.Nil(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "file://"+path, testutil.FileURI(path))
}
