package models

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"sort"
	"strings"
)

// CompletedJobs is the set of job types that have succeeded for
// one deposit, as read from the completion log.
type CompletedJobs struct {
	jobs map[constants.JobType]bool
}

// NewCompletedJobs returns a set containing jobTypes.
func NewCompletedJobs(jobTypes ...constants.JobType) *CompletedJobs {
	completed := &CompletedJobs{
		jobs: make(map[constants.JobType]bool),
	}
	for _, jobType := range jobTypes {
		completed.jobs[jobType] = true
	}
	return completed
}

// ParseCompletedJobs converts completion log tokens into a set of
// job types. If any token is not a known job type, this returns an
// error naming all of the unknown tokens. Duplicate tokens are fine.
func ParseCompletedJobs(tokens []string) (*CompletedJobs, error) {
	completed := NewCompletedJobs()
	unknown := make([]string, 0)
	for _, token := range tokens {
		jobType, err := constants.ParseJobType(token)
		if err != nil {
			unknown = append(unknown, token)
			continue
		}
		completed.jobs[jobType] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("Completion log contains unknown job types: %s",
			strings.Join(unknown, ", "))
	}
	return completed, nil
}

// Contains returns true if jobType has succeeded.
func (completed *CompletedJobs) Contains(jobType constants.JobType) bool {
	return completed.jobs[jobType]
}

// ContainsAll returns true if every one of jobTypes has succeeded.
func (completed *CompletedJobs) ContainsAll(jobTypes []constants.JobType) bool {
	for _, jobType := range jobTypes {
		if !completed.jobs[jobType] {
			return false
		}
	}
	return true
}

// Add adds jobType to the set.
func (completed *CompletedJobs) Add(jobType constants.JobType) {
	completed.jobs[jobType] = true
}

// Len returns the number of job types in the set.
func (completed *CompletedJobs) Len() int {
	return len(completed.jobs)
}

// JobTypes returns the members of the set in canonical order.
func (completed *CompletedJobs) JobTypes() []constants.JobType {
	jobTypes := make([]constants.JobType, 0, len(completed.jobs))
	for jobType := range completed.jobs {
		jobTypes = append(jobTypes, jobType)
	}
	sort.Slice(jobTypes, func(i, j int) bool { return jobTypes[i] < jobTypes[j] })
	return jobTypes
}

// Tokens returns the completion log tokens of the set's members,
// in canonical order.
func (completed *CompletedJobs) Tokens() []string {
	jobTypes := completed.JobTypes()
	tokens := make([]string, len(jobTypes))
	for i, jobType := range jobTypes {
		tokens[i] = jobType.String()
	}
	return tokens
}
