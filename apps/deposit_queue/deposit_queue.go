package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/network"
	"github.com/joho/godotenv"
	"os"
	"strings"
)

// deposit_queue puts deposit ids into the deposit_advance topic.
func main() {
	pathToConfigFile, pathToEnvFile, depositIds := parseCommandLine()
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
	nsqClient := network.NewNSQClient(config.NsqdHttpAddress, config.GetAdvanceTopic())
	exitCode := 0
	for _, depositId := range depositIds {
		if err := nsqClient.Advance(depositId); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot queue %s: %v\n", depositId, err)
			exitCode = 1
			continue
		}
		fmt.Println("Queued", depositId)
	}
	os.Exit(exitCode)
}

func parseCommandLine() (configFile, envFile string, depositIds []string) {
	var pathToConfigFile string
	var pathToEnvFile string
	var depositList string
	flag.StringVar(&pathToConfigFile, "config", "", "Path to deposit config file")
	flag.StringVar(&pathToEnvFile, "env", "", "Path to .env file")
	flag.StringVar(&depositList, "deposit", "", "Deposit id, or a comma-separated list of ids")
	flag.Parse()
	for _, id := range strings.Split(depositList, ",") {
		if id = strings.TrimSpace(id); id != "" {
			depositIds = append(depositIds, id)
		}
	}
	if pathToConfigFile == "" || len(depositIds) == 0 {
		printUsage()
		os.Exit(1)
	}
	return pathToConfigFile, pathToEnvFile, depositIds
}

// Tell the user about the program.
func printUsage() {
	message := `
deposit_queue: Sends an advance event for one or more deposits, so that
deposit_supervisor picks up where each deposit left off.

Usage: deposit_queue -config=<path to config file> -deposit=<id>[,<id>...]

Params -config and -deposit are required.
`
	fmt.Println(message)
}
