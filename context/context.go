package context

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/dispatch"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/network"
	"github.com/APTrust/deposit/pipeline"
	"github.com/APTrust/deposit/sources"
	"github.com/APTrust/deposit/stats"
	"github.com/APTrust/deposit/util/logger"
	"github.com/APTrust/deposit/util/storage"
	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
	stdlog "log"
	"os"
)

/*
Context sets up the items common to the deposit services
(deposit_supervisor, deposit_resume, deposit_status, etc.):
config, loggers, the status and completion log backend, the
dispatcher, the storage source resolver and the pipeline
components built on them.
*/
type Context struct {
	Config      *models.Config
	MessageLog  *logging.Logger
	JsonLog     *stdlog.Logger
	NSQClient   *network.NSQClient
	Store       pipeline.DepositStore
	Dispatcher  pipeline.Dispatcher
	Resolver    *sources.Resolver
	GraphReader *models.DepositGraphReader
	Stats       *stats.DepositStats
	Planner     *pipeline.Planner
	Coordinator *pipeline.ValidationCoordinator
	Cleanup     *pipeline.CleanupExecutor

	// NSQDispatcher is set when Config.Dispatcher is "nsq". Its
	// HandleMessage must consume the deposit_job_result topic.
	NSQDispatcher *dispatch.NSQDispatcher

	// LocalDispatcher is set when Config.Dispatcher is "local".
	// Register job runners on it before starting the supervisor.
	LocalDispatcher *dispatch.LocalDispatcher

	producer      *nsq.Producer
	pathToLogFile string
	pathToJsonLog string
}

/*
NewContext creates a Context from config. It returns an error if
the config is invalid, or if it cannot reach the status backend,
the NSQ producer or any configured storage source.

This object is meant to used as a singleton with any of the
stand-alone deposit services.
*/
func NewContext(config *models.Config) (*Context, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if _, err := config.EnsureDirectories(); err != nil {
		return nil, err
	}
	context := &Context{
		Config:      config,
		NSQClient:   network.NewNSQClient(config.NsqdHttpAddress, config.GetAdvanceTopic()),
		GraphReader: &models.DepositGraphReader{DepositsDirectory: config.DepositsDirectory},
		Stats:       stats.NewDepositStats(),
		Planner:     pipeline.NewPlanner(),
	}
	context.MessageLog, context.pathToLogFile = logger.InitLogger(config)
	context.JsonLog, context.pathToJsonLog = logger.InitJsonLogger(config)

	var err error
	if context.Store, err = OpenStore(config); err != nil {
		return nil, err
	}
	if context.Resolver, err = sources.NewResolverFromConfig(config.StorageSources); err != nil {
		context.Close()
		return nil, err
	}
	if err = context.initDispatcher(); err != nil {
		context.Close()
		return nil, err
	}

	validationTimeout, _ := config.GetValidationTimeout()
	statusExpiry, _ := config.GetStatusExpiry()
	context.Coordinator = pipeline.NewValidationCoordinator(context.Dispatcher,
		validationTimeout, context.MessageLog, context.Stats)
	context.Cleanup = pipeline.NewCleanupExecutor(context.Resolver, context.GraphReader,
		context.Store, config.DepositsDirectory, statusExpiry, context.MessageLog, context.Stats)
	return context, nil
}

// OpenStore opens the status and completion log backend named by
// config.StatusBackend.
func OpenStore(config *models.Config) (pipeline.DepositStore, error) {
	switch config.StatusBackend {
	case constants.BackendBolt:
		boltStore, err := storage.NewBoltStore(config.BoltDBPath)
		if err != nil {
			return nil, err
		}
		return boltStore, nil
	case constants.BackendRedis:
		client, err := storage.NewRedisClient(config.RedisAddress,
			os.Getenv("REDIS_PASSWORD"), config.RedisDB)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisStore(client, ""), nil
	case constants.BackendPostgres:
		postgresStore, err := storage.NewPostgresStore(config.GetPostgresDSN())
		if err != nil {
			return nil, err
		}
		return postgresStore, nil
	}
	return nil, fmt.Errorf("Unknown StatusBackend '%s'", config.StatusBackend)
}

func (context *Context) initDispatcher() error {
	switch context.Config.Dispatcher {
	case constants.DispatcherNSQ:
		producer, err := dispatch.NewNSQProducer(context.Config.NsqdTCPAddress)
		if err != nil {
			return err
		}
		context.producer = producer
		context.NSQDispatcher = dispatch.NewNSQDispatcher(producer,
			context.Config.GetResultTopic(), context.MessageLog)
		context.Dispatcher = context.NSQDispatcher
	case constants.DispatcherLocal:
		context.LocalDispatcher = dispatch.NewLocalDispatcher(
			context.Config.LocalJobWorker.Workers, context.MessageLog)
		context.Dispatcher = context.LocalDispatcher
	default:
		return fmt.Errorf("Unknown Dispatcher '%s'", context.Config.Dispatcher)
	}
	return nil
}

// Close stops the dispatcher and closes the store.
func (context *Context) Close() error {
	if context.LocalDispatcher != nil {
		context.LocalDispatcher.Close()
	}
	if context.producer != nil {
		context.producer.Stop()
	}
	if context.Store != nil {
		return context.Store.Close()
	}
	return nil
}

// Returns the path to this process' log file
func (context *Context) PathToLogFile() string {
	return context.pathToLogFile
}

// Returns the path to this process' JSON log file
func (context *Context) PathToJsonLog() string {
	return context.pathToJsonLog
}

// Logs the supervisor's counters.
func (context *Context) LogStats() {
	context.MessageLog.Info(context.Stats.Summary())
}
