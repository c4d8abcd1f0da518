package models

import (
	"github.com/APTrust/deposit/constants"
	"sort"
	"sync"
)

// InFlightJobs records which job each deposit is waiting on. It is
// shared across the supervisor's go routines, so that a duplicate
// advance message does not dispatch the same job twice.
type InFlightJobs struct {
	data  map[string]constants.JobType
	mutex *sync.RWMutex
}

func NewInFlightJobs() *InFlightJobs {
	return &InFlightJobs{
		data:  make(map[string]constants.JobType),
		mutex: &sync.RWMutex{},
	}
}

// Claim marks jobType as in flight for depositId. It returns false,
// and changes nothing, if the deposit already has a job in flight.
func (jobs *InFlightJobs) Claim(depositId string, jobType constants.JobType) bool {
	jobs.mutex.Lock()
	defer jobs.mutex.Unlock()
	if _, exists := jobs.data[depositId]; exists {
		return false
	}
	jobs.data[depositId] = jobType
	return true
}

// Release clears the deposit's in-flight job.
func (jobs *InFlightJobs) Release(depositId string) {
	jobs.mutex.Lock()
	delete(jobs.data, depositId)
	jobs.mutex.Unlock()
}

// ReleaseJob clears the deposit's in-flight job only if it is
// jobType. It returns true if it cleared something.
func (jobs *InFlightJobs) ReleaseJob(depositId string, jobType constants.JobType) bool {
	jobs.mutex.Lock()
	defer jobs.mutex.Unlock()
	if current, exists := jobs.data[depositId]; exists && current == jobType {
		delete(jobs.data, depositId)
		return true
	}
	return false
}

// Get returns the deposit's in-flight job, or JobNone.
func (jobs *InFlightJobs) Get(depositId string) constants.JobType {
	jobs.mutex.RLock()
	defer jobs.mutex.RUnlock()
	return jobs.data[depositId]
}

func (jobs *InFlightJobs) Len() int {
	jobs.mutex.RLock()
	defer jobs.mutex.RUnlock()
	return len(jobs.data)
}

// DepositIds returns the ids of all deposits with a job in flight,
// sorted.
func (jobs *InFlightJobs) DepositIds() []string {
	jobs.mutex.RLock()
	ids := make([]string, 0, len(jobs.data))
	for id := range jobs.data {
		ids = append(ids, id)
	}
	jobs.mutex.RUnlock()
	sort.Strings(ids)
	return ids
}
