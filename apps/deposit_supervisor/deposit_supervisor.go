package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/deposit/context"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/util/fileutil"
	"github.com/APTrust/deposit/workers"
	"github.com/joho/godotenv"
	"github.com/nsqio/go-nsq"
	"os"
	"os/signal"
	"syscall"
)

// deposit_supervisor reads deposit ids from the deposit_advance topic
// and moves each deposit through the ingest pipeline.
func main() {
	pathToConfigFile, pathToEnvFile, pathToStatsFile := parseCommandLine()
	if pathToEnvFile != "" {
		if err := godotenv.Load(pathToEnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot load env file %s: %v\n", pathToEnvFile, err)
			os.Exit(1)
		}
	}
	config, err := models.LoadConfigFile(pathToConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	_context, err := context.NewContext(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start: %v\n", err)
		os.Exit(1)
	}
	_context.MessageLog.Infof("Connecting to NSQLookupd at %s", config.NsqLookupd)
	_context.MessageLog.Infof("NSQDHttpAddress is %s", config.NsqdHttpAddress)
	_context.MessageLog.Infof("Dispatcher is %s, status backend is %s", config.Dispatcher, config.StatusBackend)
	if _context.LocalDispatcher != nil {
		_context.MessageLog.Warning("Local dispatcher has no job runners in this process. " +
			"Every dispatched job will fail.")
	}

	supervisor := workers.NewDepositSupervisor(_context)
	advanceConfig := config.SupervisorWorker
	advanceConfig.NsqTopic = config.GetAdvanceTopic()
	consumer, err := workers.CreateNsqConsumer(&advanceConfig, supervisor)
	if err != nil {
		_context.MessageLog.Fatalf("Cannot create advance consumer: %v", err)
	}
	consumers := []*nsq.Consumer{consumer}

	if _context.NSQDispatcher != nil {
		resultConfig := config.ResultWorker
		resultConfig.NsqTopic = _context.NSQDispatcher.ReplyTopic()
		_context.MessageLog.Infof("Reading job results from %s", resultConfig.NsqTopic)
		resultConsumer, err := workers.CreateNsqConsumer(&resultConfig, _context.NSQDispatcher)
		if err != nil {
			_context.MessageLog.Fatalf("Cannot create job result consumer: %v", err)
		}
		consumers = append(consumers, resultConsumer)
	}
	for _, c := range consumers {
		if err := c.ConnectToNSQLookupd(config.NsqLookupd); err != nil {
			_context.MessageLog.Fatalf("Cannot connect to NSQLookupd: %v", err)
		}
	}

	purgeInterval, _ := config.GetPurgeInterval()
	stopPurging := make(chan struct{})
	go supervisor.RunPurger(purgeInterval, stopPurging)
	_context.MessageLog.Info("deposit_supervisor started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		_context.MessageLog.Infof("Got %s. Stopping consumers.", sig)
		for _, c := range consumers {
			c.Stop()
		}
	}()

	// This blocks until the consumer stops, so our program does not exit.
	for _, c := range consumers {
		<-c.StopChan
	}
	close(stopPurging)
	_context.LogStats()
	if pathToStatsFile != "" {
		if err := _context.Stats.DumpToFile(pathToStatsFile); err != nil {
			_context.MessageLog.Errorf("Cannot write stats: %v", err)
		} else {
			_context.MessageLog.Infof("Wrote stats to %s", pathToStatsFile)
		}
	}
	if err := _context.Close(); err != nil {
		_context.MessageLog.Errorf("Error closing status store: %v", err)
	}
}

func parseCommandLine() (configFile, envFile, statsFile string) {
	var pathToConfigFile string
	var pathToEnvFile string
	var pathToStatsFile string
	flag.StringVar(&pathToConfigFile, "config", "", "Path to deposit config file")
	flag.StringVar(&pathToEnvFile, "env", "", "Path to .env file with secrets")
	flag.StringVar(&pathToStatsFile, "stats", "", "Path to file where we should dump JSON stats on exit")
	flag.Parse()
	if pathToConfigFile == "" {
		printUsage()
		os.Exit(1)
	}
	pathToStatsFile, err := fileutil.ExpandTilde(pathToStatsFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	return pathToConfigFile, pathToEnvFile, pathToStatsFile
}

// Tell the user about the program.
func printUsage() {
	message := `
deposit_supervisor: Reads deposit ids from the deposit_advance topic. For
each deposit, it decides which job comes next, dispatches it, and records
the result. It runs the validation batch and cleanup itself.

Usage: deposit_supervisor -config=<path to config file> [-env=<path to .env>] [-stats=<path>]

Param -config is required.
Param -env loads secrets such as AWS_ACCESS_KEY_ID, MINIO_ACCESS_KEY and
REDIS_PASSWORD into the environment.
Param -stats tells us where to dump JSON stats when we shut down.
`
	fmt.Println(message)
}
