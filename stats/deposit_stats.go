package stats

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/util/fileutil"
	"io/ioutil"
	"os"
	"regexp"
	"sync"
	"time"
)

// JobTiming accumulates run counts and durations for one job type.
type JobTiming struct {
	Succeeded int64
	Failed    int64
	Total     time.Duration
	Longest   time.Duration
}

// Average returns the mean duration of all runs, or zero.
func (timing *JobTiming) Average() time.Duration {
	runs := timing.Succeeded + timing.Failed
	if runs == 0 {
		return 0
	}
	return timing.Total / time.Duration(runs)
}

// DepositStats records what deposit_supervisor did. It's safe for
// concurrent use, and is passed to the supervisor, the validation
// coordinator and the cleanup executor as their observer.
type DepositStats struct {
	Advanced         int64
	Dispatched       int64
	JobsSucceeded    int64
	JobsFailed       int64
	BatchesPassed    int64
	BatchesFailed    int64
	Cleanups         int64
	FilesDeleted     int64
	FilesSkipped     int64
	DepositsFailed   int64
	DepositsComplete int64
	Purged           int64
	Jobs             map[string]*JobTiming
	FailedDeposits   []string
	StartedAt        time.Time

	mutex sync.Mutex
}

// NewDepositStats creates a new, empty DepositStats object.
func NewDepositStats() *DepositStats {
	return &DepositStats{
		Jobs:           make(map[string]*JobTiming),
		FailedDeposits: make([]string, 0),
		StartedAt:      time.Now().UTC(),
	}
}

// DepositStatsLoadFromFile loads DepositStats from a JSON file.
func DepositStatsLoadFromFile(pathToFile string) (*DepositStats, error) {
	file, err := ioutil.ReadFile(pathToFile)
	if err != nil {
		return nil, fmt.Errorf("Error reading file '%s': %v", pathToFile, err)
	}
	_stats := NewDepositStats()
	if err := json.Unmarshal(file, _stats); err != nil {
		return nil, fmt.Errorf("Error parsing JSON from file '%s': %v", pathToFile, err)
	}
	return _stats, nil
}

// DumpToFile writes this object as formatted JSON to pathToFile. It
// won't overwrite an existing file unless the name ends in .json.
// See also DepositStatsLoadFromFile.
func (stats *DepositStats) DumpToFile(pathToFile string) error {
	// Matches .json, or tempfile with random ending, like .json43272
	fileNameLooksSafe, err := regexp.MatchString("\\.json\\d*$", pathToFile)
	if err != nil {
		return fmt.Errorf("DumpToFile(): path '%s'?? : %v", pathToFile, err)
	}
	if fileutil.FileExists(pathToFile) && !fileNameLooksSafe {
		return fmt.Errorf("DumpToFile() will not overwrite existing file "+
			"'%s' because that might be dangerous. Give your output file a .json "+
			"extension to be safe.", pathToFile)
	}
	stats.mutex.Lock()
	jsonData, err := json.MarshalIndent(stats, "", "  ")
	stats.mutex.Unlock()
	if err != nil {
		return err
	}
	outputFile, err := os.Create(pathToFile)
	if err != nil {
		return err
	}
	defer outputFile.Close()
	_, err = outputFile.Write(jsonData)
	return err
}

// Timing returns a copy of the timing for jobType.
func (stats *DepositStats) Timing(jobType constants.JobType) JobTiming {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()
	if timing, ok := stats.Jobs[jobType.String()]; ok {
		return *timing
	}
	return JobTiming{}
}

// Summary returns a one-line description for the log.
func (stats *DepositStats) Summary() string {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()
	return fmt.Sprintf("**STATS** Advanced: %d, Dispatched: %d, Jobs ok/failed: %d/%d, "+
		"Batches ok/failed: %d/%d, Cleanups: %d, Complete: %d, Failed: %d, Purged: %d",
		stats.Advanced, stats.Dispatched, stats.JobsSucceeded, stats.JobsFailed,
		stats.BatchesPassed, stats.BatchesFailed, stats.Cleanups,
		stats.DepositsComplete, stats.DepositsFailed, stats.Purged)
}

func (stats *DepositStats) DepositAdvanced(depositId string) {
	stats.mutex.Lock()
	stats.Advanced++
	stats.mutex.Unlock()
}

func (stats *DepositStats) JobDispatched(depositId string, jobType constants.JobType) {
	stats.mutex.Lock()
	stats.Dispatched++
	stats.mutex.Unlock()
}

func (stats *DepositStats) JobFinished(depositId string, jobType constants.JobType, succeeded bool, elapsed time.Duration) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()
	timing, ok := stats.Jobs[jobType.String()]
	if !ok {
		timing = &JobTiming{}
		stats.Jobs[jobType.String()] = timing
	}
	if succeeded {
		stats.JobsSucceeded++
		timing.Succeeded++
	} else {
		stats.JobsFailed++
		timing.Failed++
	}
	timing.Total += elapsed
	if elapsed > timing.Longest {
		timing.Longest = elapsed
	}
}

func (stats *DepositStats) BatchFinished(depositId string, succeeded bool, elapsed time.Duration) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()
	if succeeded {
		stats.BatchesPassed++
	} else {
		stats.BatchesFailed++
	}
}

func (stats *DepositStats) CleanupFinished(depositId string, deleted, skipped int) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()
	stats.Cleanups++
	stats.FilesDeleted += int64(deleted)
	stats.FilesSkipped += int64(skipped)
}

func (stats *DepositStats) DepositFailed(depositId string) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()
	stats.DepositsFailed++
	stats.FailedDeposits = append(stats.FailedDeposits, depositId)
}

func (stats *DepositStats) DepositCompleted(depositId string) {
	stats.mutex.Lock()
	stats.DepositsComplete++
	stats.mutex.Unlock()
}

// ExpiredPurged counts deposits removed by the expiry purge.
func (stats *DepositStats) ExpiredPurged(count int) {
	stats.mutex.Lock()
	stats.Purged += int64(count)
	stats.mutex.Unlock()
}

// PurgedTotal returns the number of purged deposits.
func (stats *DepositStats) PurgedTotal() int64 {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()
	return stats.Purged
}
