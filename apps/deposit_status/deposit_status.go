package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"github.com/APTrust/deposit/context"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/pipeline"
	"github.com/joho/godotenv"
	"os"
)

// StatusReport is what deposit_status prints.
type StatusReport struct {
	DepositId     string
	Fields        map[string]string
	CompletedJobs []string
	RemainingJobs []string `json:",omitempty"`
	PlanError     string   `json:",omitempty"`
}

// deposit_status prints a deposit's status fields, completed jobs and
// the jobs it still has to run, as JSON.
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

	report, err := buildReport(store, depositId)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func buildReport(store pipeline.DepositStore, depositId string) (*StatusReport, error) {
	status, err := store.GetStatus(depositId)
	if err != nil {
		return nil, fmt.Errorf("Cannot read status of %s: %v", depositId, err)
	}
	if status.IsEmpty() {
		return nil, fmt.Errorf("No status for deposit %s. It may have expired.", depositId)
	}
	completed, err := store.CompletedJobTypes(depositId)
	if err != nil {
		return nil, fmt.Errorf("Cannot read completion log of %s: %v", depositId, err)
	}
	report := &StatusReport{
		DepositId:     depositId,
		Fields:        status.Fields,
		CompletedJobs: completed,
	}
	remaining, err := pipeline.NewPlanner().RemainingJobs(status, completed)
	if err != nil {
		report.PlanError = err.Error()
		return report, nil
	}
	for _, jobType := range remaining {
		report.RemainingJobs = append(report.RemainingJobs, jobType.String())
	}
	return report, nil
}

func parseCommandLine() (configFile, envFile, depositId string) {
	var pathToConfigFile string
	var pathToEnvFile string
	flag.StringVar(&pathToConfigFile, "config", "", "Path to deposit config file")
	flag.StringVar(&pathToEnvFile, "env", "", "Path to .env file")
	flag.StringVar(&depositId, "deposit", "", "Deposit id")
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
deposit_status: Prints a deposit's status fields, the jobs it has
completed and the jobs it has left, as JSON. A FAILED deposit's
errorMessage and errorDetail fields say what went wrong.

Usage: deposit_status -config=<path to config file> -deposit=<id>

Params -config and -deposit are required.
`
	fmt.Println(message)
}
