package models_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const jsonConfig = `{
  "DepositsDirectory": "/mnt/deposits",
  "Dispatcher": "nsq",
  "LogDirectory": "/var/log/deposit",
  "LogLevel": 4,
  "NsqLookupd": "localhost:4161",
  "StatusBackend": "bolt",
  "BoltDBPath": "/var/lib/deposit/status.db",
  "ValidationTimeout": "12h",
  "SupervisorWorker": {
    "NsqTopic": "deposit_advance",
    "NsqChannel": "deposit_supervisor",
    "HeartbeatInterval": "30s"
  },
  "StorageSources": [
    {"Id": "staging", "Kind": "filesystem", "Base": "file:///mnt/staging/"},
    {"Id": "shared", "Kind": "filesystem", "Base": "file:///mnt/shared/", "ReadOnly": true}
  ]
}`

const yamlConfig = `
DepositsDirectory: /mnt/deposits
Dispatcher: local
LogDirectory: /var/log/deposit
LogLevel: 3
StatusBackend: redis
RedisAddress: localhost:6379
StatusExpiry: 48h
LocalJobWorker:
  Workers: 4
StorageSources:
  - Id: s3-staging
    Kind: s3
    Base: s3://deposit-staging/incoming/
    Region: us-east-1
`

func writeTempConfig(t *testing.T, name, content string) string {
	dir, err := ioutil.TempDir("", "deposit_config_test")
	require.Nil(t, err)
	path := filepath.Join(dir, name)
	require.Nil(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFile_Json(t *testing.T) {
	path := writeTempConfig(t, "test.json", jsonConfig)
	defer os.RemoveAll(filepath.Dir(path))

	config, err := models.LoadConfigFile(path)
	require.Nil(t, err)
	assert.Equal(t, path, config.ActiveConfig)
	assert.Equal(t, "/mnt/deposits", config.DepositsDirectory)
	assert.Equal(t, logging.INFO, config.LogLevel)
	assert.Equal(t, "deposit_advance", config.SupervisorWorker.NsqTopic)
	assert.Equal(t, 30*time.Second, config.SupervisorWorker.GetHeartbeatInterval())
	require.Equal(t, 2, len(config.StorageSources))
	assert.True(t, config.StorageSources[1].ReadOnly)
	assert.Nil(t, config.Validate())

	timeout, err := config.GetValidationTimeout()
	require.Nil(t, err)
	assert.Equal(t, 12*time.Hour, timeout)
	expiry, err := config.GetStatusExpiry()
	require.Nil(t, err)
	assert.Equal(t, constants.DefaultStatusExpiry, expiry)
}

func TestLoadConfigFile_Yaml(t *testing.T) {
	path := writeTempConfig(t, "test.yml", yamlConfig)
	defer os.RemoveAll(filepath.Dir(path))

	config, err := models.LoadConfigFile(path)
	require.Nil(t, err)
	assert.Equal(t, constants.DispatcherLocal, config.Dispatcher)
	assert.Equal(t, logging.NOTICE, config.LogLevel)
	assert.Equal(t, 4, config.LocalJobWorker.Workers)
	require.Equal(t, 1, len(config.StorageSources))
	assert.Equal(t, "us-east-1", config.StorageSources[0].Region)
	assert.Nil(t, config.Validate())

	timeout, err := config.GetValidationTimeout()
	require.Nil(t, err)
	assert.Equal(t, constants.DefaultValidationTimeout, timeout)
	expiry, err := config.GetStatusExpiry()
	require.Nil(t, err)
	assert.Equal(t, 48*time.Hour, expiry)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := models.LoadConfigFile("/does/not/exist.json")
	assert.NotNil(t, err)
}

func TestConfigValidate(t *testing.T) {
	path := writeTempConfig(t, "test.json", jsonConfig)
	defer os.RemoveAll(filepath.Dir(path))
	config, err := models.LoadConfigFile(path)
	require.Nil(t, err)

	config.StatusBackend = "mongo"
	assert.NotNil(t, config.Validate())
	config.StatusBackend = constants.BackendBolt

	config.Dispatcher = "carrier-pigeon"
	assert.NotNil(t, config.Validate())
	config.Dispatcher = constants.DispatcherNSQ

	config.ValidationTimeout = "a while"
	assert.NotNil(t, config.Validate())
	config.ValidationTimeout = "24h"

	config.StorageSources = append(config.StorageSources,
		models.StorageSourceConfig{Id: "staging", Kind: "filesystem", Base: "file:///x/"})
	assert.NotNil(t, config.Validate())
	config.StorageSources[2].Id = "other"
	config.StorageSources[2].Kind = "ftp"
	assert.NotNil(t, config.Validate())
	config.StorageSources[2].Kind = constants.SourceKindFilesystem
	assert.Nil(t, config.Validate())

	config.PurgeInterval = "often"
	assert.NotNil(t, config.Validate())
	config.PurgeInterval = ""

	config.DepositsDirectory = "/"
	assert.NotNil(t, config.Validate())
	config.DepositsDirectory = "/deposits"
	assert.Nil(t, config.Validate())
}

func TestGetAdvanceTopic(t *testing.T) {
	config := &models.Config{}
	assert.Equal(t, constants.TopicAdvance, config.GetAdvanceTopic())
	config.SupervisorWorker.NsqTopic = "deposit_advance_staging"
	assert.Equal(t, "deposit_advance_staging", config.GetAdvanceTopic())
}

func TestGetResultTopic(t *testing.T) {
	config := &models.Config{}
	topic := config.GetResultTopic()
	assert.True(t, strings.HasPrefix(topic, constants.TopicJobResult))
	assert.True(t, len(topic) <= 64)
	assert.Regexp(t, `^[a-zA-Z0-9._-]+$`, topic)
	assert.Equal(t, topic, config.GetResultTopic())

	config.ResultWorker.NsqTopic = "deposit_job_result_a"
	assert.Equal(t, "deposit_job_result_a", config.GetResultTopic())
}

func TestGetPurgeInterval(t *testing.T) {
	config := &models.Config{}
	interval, err := config.GetPurgeInterval()
	require.Nil(t, err)
	assert.Equal(t, constants.DefaultPurgeInterval, interval)
	config.PurgeInterval = "5m"
	interval, err = config.GetPurgeInterval()
	require.Nil(t, err)
	assert.Equal(t, 5*time.Minute, interval)
}

func TestEnsureDirectories(t *testing.T) {
	root, err := ioutil.TempDir("", "deposit_config_test")
	require.Nil(t, err)
	defer os.RemoveAll(root)
	config := &models.Config{
		LogDirectory:      filepath.Join(root, "logs"),
		DepositsDirectory: filepath.Join(root, "deposits"),
	}
	logDir, err := config.EnsureDirectories()
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(root, "logs"), logDir)
	assert.DirExists(t, filepath.Join(root, "deposits"))
	assert.Equal(t, filepath.Join(root, "deposits", "d1"), config.DepositDirectory("d1"))
}

func TestGetPostgresDSN(t *testing.T) {
	saved := os.Getenv("DEPOSIT_POSTGRES_DSN")
	defer os.Setenv("DEPOSIT_POSTGRES_DSN", saved)
	os.Setenv("DEPOSIT_POSTGRES_DSN", "postgres://env")
	config := &models.Config{}
	assert.Equal(t, "postgres://env", config.GetPostgresDSN())
	config.PostgresDSN = "postgres://config"
	assert.Equal(t, "postgres://config", config.GetPostgresDSN())
}

func TestDevConfigIsValid(t *testing.T) {
	pathToConfig, err := filepath.Abs(filepath.Join("..", "config", "dev.yml"))
	require.Nil(t, err)
	config, err := models.LoadConfigFile(pathToConfig)
	require.Nil(t, err)
	require.Nil(t, config.Validate())
	assert.Equal(t, constants.TopicAdvance, config.SupervisorWorker.NsqTopic)
	assert.Equal(t, "", config.ResultWorker.NsqTopic)
	assert.True(t, strings.HasPrefix(config.GetResultTopic(), constants.TopicJobResult))
	assert.Equal(t, "10m", config.SupervisorWorker.MessageTimeout)
	purgeInterval, err := config.GetPurgeInterval()
	require.Nil(t, err)
	assert.Equal(t, time.Hour, purgeInterval)
	assert.EqualValues(t, 3, config.SupervisorWorker.MaxAttempts)
	require.Len(t, config.StorageSources, 3)
	assert.True(t, config.StorageSources[2].ReadOnly)
	assert.Equal(t, logging.INFO, config.LogLevel)
}
