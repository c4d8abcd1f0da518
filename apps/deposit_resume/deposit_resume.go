package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/context"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/network"
	"github.com/joho/godotenv"
	"os"
)

// deposit_resume restarts a FAILED deposit. It clears the failure
// from the deposit's status and sends an advance event. The
// completion log is untouched, so the deposit resumes with the job
// that failed.
func main() {
	pathToConfigFile, pathToEnvFile, depositId := parseCommandLine()
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
	config.ExpandFilePaths()
	store, err := context.OpenStore(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open status store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	status, err := store.GetStatus(depositId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read status of %s: %v\n", depositId, err)
		os.Exit(1)
	}
	if status.State() != constants.StateFailed {
		fmt.Fprintf(os.Stderr, "Deposit %s is %s, not %s. Nothing to resume.\n",
			depositId, displayState(status), constants.StateFailed)
		os.Exit(1)
	}
	fmt.Printf("Resuming %s, which failed with: %s\n", depositId, status.ErrorMessage())

	err = store.ClearStatusFields(depositId,
		constants.FieldErrorMessage,
		constants.FieldErrorDetail,
		constants.FieldEndTime,
		constants.FieldState)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot clear failure from %s: %v\n", depositId, err)
		os.Exit(1)
	}
	if err := network.NewNSQClient(config.NsqdHttpAddress, config.GetAdvanceTopic()).Advance(depositId); err != nil {
		fmt.Fprintf(os.Stderr, "Cleared failure, but cannot queue %s: %v\n"+
			"Run deposit_queue to queue it.\n", depositId, err)
		os.Exit(1)
	}
	fmt.Println("Queued", depositId)
}

func displayState(status *models.DepositStatus) string {
	if status.IsEmpty() {
		return "unknown"
	}
	if status.State() == "" {
		return "in progress"
	}
	return status.State()
}

func parseCommandLine() (configFile, envFile, depositId string) {
	var pathToConfigFile string
	var pathToEnvFile string
	flag.StringVar(&pathToConfigFile, "config", "", "Path to deposit config file")
	flag.StringVar(&pathToEnvFile, "env", "", "Path to .env file")
	flag.StringVar(&depositId, "deposit", "", "Id of the failed deposit")
	flag.Parse()
	if pathToConfigFile == "" || depositId == "" {
		printUsage()
		os.Exit(1)
	}
	return pathToConfigFile, pathToEnvFile, depositId
}

// Tell the user about the program.
func printUsage() {
	message := `
deposit_resume: Clears the failure from a FAILED deposit and queues it, so
deposit_supervisor retries the job that failed.

Usage: deposit_resume -config=<path to config file> -deposit=<id>

Params -config and -deposit are required.

With the bolt status backend, only one process can open the status
database at a time. Stop deposit_supervisor before running this.
`
	fmt.Println(message)
}
