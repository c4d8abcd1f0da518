package models

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/util"
	"github.com/APTrust/deposit/util/fileutil"
	"github.com/op/go-logging"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

type WorkerConfig struct {
	// This describes how often the NSQ client should ping
	// the NSQ server to let it know it's still there. The
	// setting must be formatted like so:
	//
	// "800ms" for 800 milliseconds
	// "10s" for ten seconds
	// "1m" for one minute
	//
	// The supervisor also touches in-flight messages at this
	// interval while a validation batch is running.
	HeartbeatInterval string

	// The maximum number of times NSQ should deliver a message
	// before giving up on it.
	MaxAttempts uint16

	// Maximum number of messages a worker will accept from the
	// queue at one time. The supervisor blocks on validation
	// batches, so keep this at or above the number of deposits
	// you expect to be validating at once.
	MaxInFlight int

	// If the NSQ server does not hear from a client that a
	// message is complete in this amount of time, the server
	// considers it timed out and re-queues it.
	MessageTimeout string

	// The name of the NSQ Channel the worker should read from.
	NsqChannel string

	// The name of the NSQ Topic the worker should listen to.
	NsqTopic string

	// This describes how long the NSQ client will wait for
	// a read from the NSQ server before timing out. The format
	// is the same as for HeartbeatInterval.
	ReadTimeout string

	// Number of go routines to start in the worker.
	Workers int

	// This describes how long the NSQ client will wait for
	// a write to the NSQ server to complete before timing out.
	// The format is the same as for HeartbeatInterval.
	WriteTimeout string
}

// StorageSourceConfig describes one external location from which
// staged deposit files are read.
type StorageSourceConfig struct {
	// Id is a short unique name for the source, e.g. "ingest-staging".
	Id string

	// Name is a human-readable description.
	Name string

	// Kind is one of constants.SourceKinds.
	Kind string

	// Base is the URI prefix owned by this source, e.g.
	// "file:///mnt/staging/" or "s3://deposit-staging/incoming/".
	// The source's root boundary is the path part of Base. Cleanup
	// never deletes the root itself.
	Base string

	// ReadOnly sources are never modified by cleanup.
	ReadOnly bool

	// Region is the AWS region for s3 sources.
	Region string

	// Endpoint is the host:port of an S3-compatible server for
	// minio sources.
	Endpoint string

	// Secure says whether to use TLS when talking to Endpoint.
	Secure bool
}

type Config struct {
	// ActiveConfig is the configuration currently
	// in use.
	ActiveConfig string

	// JobTimeout bounds the wait for a single dispatched job, e.g.
	// "24h". A job that hasn't reported by then fails the deposit.
	// Defaults to one day.
	JobTimeout string

	// DepositsDirectory holds one working directory per deposit,
	// named by deposit id.
	DepositsDirectory string

	// Dispatcher is "nsq" to send jobs to remote job runners, or
	// "local" to run registered job runners in this process.
	Dispatcher string

	// LocalJobWorker configures the in-process job runners used
	// when Dispatcher is "local". Only Workers is used.
	LocalJobWorker WorkerConfig

	// LogDirectory is where we'll write our log files.
	LogDirectory string

	// LogLevel is defined in github.com/op/go-logging
	// and should be one of the following:
	// 0 - CRITICAL
	// 1 - ERROR
	// 2 - WARNING
	// 3 - NOTICE
	// 4 - INFO
	// 5 - DEBUG
	LogLevel logging.Level

	// If true, processes will log to STDERR in addition
	// to their standard log files. You really only want
	// to do this in development.
	LogToStderr bool

	// NsqdHttpAddress tells us where to post advance, complete
	// and failed events. It's typically something like
	// "http://localhost:4151"
	NsqdHttpAddress string

	// NsqdTCPAddress is where the NSQ dispatcher's producer
	// publishes job requests. Typically "localhost:4150".
	NsqdTCPAddress string

	// NsqLookupd is the address of the NSQ Lookup daemon, where
	// consumers discover topics and channels. This is typically
	// something like "localhost:4161"
	NsqLookupd string

	// PostgresDSN is the connection string for the postgres status
	// backend. If empty, we read DEPOSIT_POSTGRES_DSN from the
	// environment.
	PostgresDSN string

	// RedisAddress is the host:port of the redis status backend.
	// The password comes from REDIS_PASSWORD.
	RedisAddress string

	// RedisDB is the redis database number.
	RedisDB int

	// PurgeInterval is how often the supervisor removes expired
	// deposits from stores that don't expire them natively (bolt
	// and postgres), e.g. "1h". Defaults to one hour.
	PurgeInterval string

	// ResultWorker configures the consumer that reads job results
	// from remote job runners when Dispatcher is "nsq". Each
	// supervisor must read its own topic, so leave NsqTopic empty
	// to get deposit_job_result_<hostname>, or give every
	// supervisor a different one.
	ResultWorker WorkerConfig

	// StatusBackend is one of "bolt", "redis" or "postgres".
	StatusBackend string

	// BoltDBPath is the file that holds deposit status and
	// completion logs when StatusBackend is "bolt".
	BoltDBPath string

	// StatusExpiry is how long a deposit's status is retained after
	// cleanup, e.g. "168h". Defaults to seven days.
	StatusExpiry string

	// StorageSources lists every location from which deposits
	// may be staged.
	StorageSources []StorageSourceConfig

	// Configuration options for deposit_supervisor. NsqTopic is
	// also where advance events are published. It defaults to
	// deposit_advance.
	SupervisorWorker WorkerConfig

	// ValidationTimeout bounds the wait for a validation batch,
	// e.g. "24h". Defaults to one day.
	ValidationTimeout string
}

// LoadConfigFile loads the configuration at pathToConfigFile, which
// is specified in the -config flag when we run a program from the
// command line. Files ending in .yml or .yaml are parsed as YAML; all
// others as JSON. Both formats use the same field names.
func LoadConfigFile(pathToConfigFile string) (*Config, error) {
	file, err := fileutil.LoadRelativeFile(pathToConfigFile)
	if err != nil {
		detailedError := fmt.Errorf("Error reading config file '%s': %v\n",
			pathToConfigFile, err)
		return nil, detailedError
	}
	if isYamlFile(pathToConfigFile) {
		file, err = yamlToJson(file)
		if err != nil {
			detailedError := fmt.Errorf("Error parsing YAML from config file '%s': %v",
				pathToConfigFile, err)
			return nil, detailedError
		}
	}
	config := &Config{}
	err = json.Unmarshal(file, config)
	if err != nil {
		detailedError := fmt.Errorf("Error parsing JSON from config file '%s': %v",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config.ActiveConfig = pathToConfigFile
	return config, nil
}

func isYamlFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

// yamlToJson re-encodes a YAML document as JSON, so that a single
// set of (case-insensitive) field names works for both formats.
func yamlToJson(data []byte) ([]byte, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Validate checks for settings we cannot run without.
func (config *Config) Validate() error {
	if config.DepositsDirectory == "" {
		return fmt.Errorf("You must define config.DepositsDirectory")
	}
	if absDir, err := filepath.Abs(config.DepositsDirectory); err != nil || filepath.Dir(absDir) == absDir {
		return fmt.Errorf("config.DepositsDirectory cannot be the filesystem root")
	}
	if config.LogDirectory == "" {
		return fmt.Errorf("You must define config.LogDirectory")
	}
	if !util.StringListContains([]string{constants.BackendBolt,
		constants.BackendRedis, constants.BackendPostgres}, config.StatusBackend) {
		return fmt.Errorf("Unknown StatusBackend '%s'", config.StatusBackend)
	}
	if config.StatusBackend == constants.BackendBolt && config.BoltDBPath == "" {
		return fmt.Errorf("You must define config.BoltDBPath for the bolt backend")
	}
	if config.StatusBackend == constants.BackendRedis && config.RedisAddress == "" {
		return fmt.Errorf("You must define config.RedisAddress for the redis backend")
	}
	if config.Dispatcher != constants.DispatcherNSQ && config.Dispatcher != constants.DispatcherLocal {
		return fmt.Errorf("Unknown Dispatcher '%s'", config.Dispatcher)
	}
	if _, err := config.GetValidationTimeout(); err != nil {
		return err
	}
	if _, err := config.GetJobTimeout(); err != nil {
		return err
	}
	if _, err := config.GetStatusExpiry(); err != nil {
		return err
	}
	if _, err := config.GetPurgeInterval(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, source := range config.StorageSources {
		if source.Id == "" || source.Base == "" {
			return fmt.Errorf("Storage source '%s' needs both Id and Base", source.Name)
		}
		if seen[source.Id] {
			return fmt.Errorf("Storage source id '%s' is used more than once", source.Id)
		}
		seen[source.Id] = true
		if !util.StringListContains(constants.SourceKinds, source.Kind) {
			return fmt.Errorf("Storage source '%s' has unknown kind '%s'",
				source.Id, source.Kind)
		}
	}
	return nil
}

// EnsureDirectories expands file paths, then creates the log and
// deposits directories if they don't already exist. Returns the
// absolute path to the log directory.
func (config *Config) EnsureDirectories() (string, error) {
	config.ExpandFilePaths()
	if config.LogDirectory == "" {
		return "", fmt.Errorf("You must define config.LogDirectory")
	}
	if config.DepositsDirectory == "" {
		return "", fmt.Errorf("You must define config.DepositsDirectory")
	}
	for _, dir := range []string{config.LogDirectory, config.DepositsDirectory} {
		if !fileutil.FileExists(dir) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return "", err
			}
		}
	}
	return config.AbsLogDirectory(), nil
}

func (config *Config) AbsLogDirectory() string {
	absLogDir, err := filepath.Abs(config.LogDirectory)
	if err != nil {
		msg := fmt.Sprintf("Cannot get absolute path to log directory. "+
			"config.LogDirectory is set to '%s'", config.LogDirectory)
		panic(msg)
	}
	return absLogDir
}

// Expands ~ file paths to absolute paths.
func (config *Config) ExpandFilePaths() {
	expanded, err := fileutil.ExpandTilde(config.LogDirectory)
	if err == nil {
		config.LogDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.DepositsDirectory)
	if err == nil {
		config.DepositsDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.BoltDBPath)
	if err == nil {
		config.BoltDBPath = expanded
	}
}

// DepositDirectory returns the working directory for depositId.
func (config *Config) DepositDirectory(depositId string) string {
	return filepath.Join(config.DepositsDirectory, depositId)
}

// GetValidationTimeout returns ValidationTimeout as a duration,
// or the default if it isn't set.
func (config *Config) GetValidationTimeout() (time.Duration, error) {
	return parseDurationOrDefault("ValidationTimeout", config.ValidationTimeout,
		constants.DefaultValidationTimeout)
}

// GetJobTimeout returns JobTimeout as a duration, or the default
// if it isn't set.
func (config *Config) GetJobTimeout() (time.Duration, error) {
	return parseDurationOrDefault("JobTimeout", config.JobTimeout,
		constants.DefaultJobTimeout)
}

// GetStatusExpiry returns StatusExpiry as a duration, or the default
// if it isn't set.
func (config *Config) GetStatusExpiry() (time.Duration, error) {
	return parseDurationOrDefault("StatusExpiry", config.StatusExpiry,
		constants.DefaultStatusExpiry)
}

// GetPurgeInterval returns PurgeInterval as a duration, or the
// default if it isn't set.
func (config *Config) GetPurgeInterval() (time.Duration, error) {
	return parseDurationOrDefault("PurgeInterval", config.PurgeInterval,
		constants.DefaultPurgeInterval)
}

// GetAdvanceTopic returns the topic that carries advance events.
// The supervisor consumes it and everything else publishes to it.
func (config *Config) GetAdvanceTopic() string {
	if config.SupervisorWorker.NsqTopic != "" {
		return config.SupervisorWorker.NsqTopic
	}
	return constants.TopicAdvance
}

// GetResultTopic returns the topic on which this supervisor receives
// job results: ResultWorker.NsqTopic if set, otherwise
// deposit_job_result_<hostname>.
func (config *Config) GetResultTopic() string {
	if config.ResultWorker.NsqTopic != "" {
		return config.ResultWorker.NsqTopic
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return constants.TopicJobResult
	}
	topic := constants.TopicJobResult + "_" + badTopicChars.ReplaceAllString(hostname, "_")
	if len(topic) > maxTopicLength {
		topic = topic[:maxTopicLength]
	}
	return topic
}

// nsqd topic names are limited to these characters and 64 bytes.
var badTopicChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

const maxTopicLength = 64

// GetPostgresDSN returns PostgresDSN, falling back to the
// DEPOSIT_POSTGRES_DSN environment variable.
func (config *Config) GetPostgresDSN() string {
	if config.PostgresDSN != "" {
		return config.PostgresDSN
	}
	return os.Getenv("DEPOSIT_POSTGRES_DSN")
}

// GetHeartbeatInterval returns the worker's HeartbeatInterval as a
// duration, defaulting to one minute.
func (workerConfig *WorkerConfig) GetHeartbeatInterval() time.Duration {
	duration, err := parseDurationOrDefault("HeartbeatInterval",
		workerConfig.HeartbeatInterval, time.Minute)
	if err != nil || duration <= 0 {
		return time.Minute
	}
	return duration
}

func parseDurationOrDefault(name, value string, defaultValue time.Duration) (time.Duration, error) {
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s '%s': %v", name, value, err)
	}
	return duration, nil
}
