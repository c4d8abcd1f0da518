package models

import (
	"fmt"
	"strings"
	"time"
)

// WorkSummary records what happened during one piece of deposit
// work: an advance, a validation batch or a cleanup run.
type WorkSummary struct {
	// DepositId is the deposit this work was done for.
	DepositId string

	// Operation names the work, usually a job type name.
	Operation string

	// AttemptNumber is the NSQ delivery attempt that did this
	// work. It starts at one. Zero means the work was not started
	// by a queue message.
	AttemptNumber uint16

	// ErrorIsFatal is set when retrying cannot help, such as an
	// unknown packaging type or an unresolvable storage source.
	ErrorIsFatal bool

	// Errors describes everything that went wrong.
	Errors []string

	// Warnings describes things that went wrong without failing
	// the work, such as a staged file that was already gone.
	Warnings []string

	// StartedAt and FinishedAt bracket the work. A zero StartedAt
	// means the work never started.
	StartedAt  time.Time
	FinishedAt time.Time

	// Retry indicates whether a failure should be retried. It
	// defaults to true and goes false with fatal errors.
	Retry bool
}

func NewWorkSummary(depositId, operation string) *WorkSummary {
	return &WorkSummary{
		DepositId: depositId,
		Operation: operation,
		Errors:    make([]string, 0),
		Warnings:  make([]string, 0),
		Retry:     true,
	}
}

func (summary *WorkSummary) Start() {
	summary.StartedAt = time.Now().UTC()
}

func (summary *WorkSummary) Started() bool {
	return !summary.StartedAt.IsZero()
}

func (summary *WorkSummary) Finish() {
	summary.FinishedAt = time.Now().UTC()
}

func (summary *WorkSummary) Finished() bool {
	return !summary.FinishedAt.IsZero()
}

// RunTime returns how long the work took, or how long it has been
// running if it hasn't finished.
func (summary *WorkSummary) RunTime() time.Duration {
	if summary.StartedAt.IsZero() {
		return time.Duration(0)
	}
	endTime := summary.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	return endTime.Sub(summary.StartedAt)
}

func (summary *WorkSummary) Succeeded() bool {
	return summary.Finished() && len(summary.Errors) == 0
}

func (summary *WorkSummary) AddError(format string, a ...interface{}) {
	summary.Errors = append(summary.Errors, fmt.Sprintf(format, a...))
}

// AddFatalError records an error and marks the work as not retryable.
func (summary *WorkSummary) AddFatalError(format string, a ...interface{}) {
	summary.AddError(format, a...)
	summary.ErrorIsFatal = true
	summary.Retry = false
}

func (summary *WorkSummary) AddWarning(format string, a ...interface{}) {
	summary.Warnings = append(summary.Warnings, fmt.Sprintf(format, a...))
}

func (summary *WorkSummary) ClearErrors() {
	summary.Errors = make([]string, 0)
	summary.ErrorIsFatal = false
	summary.Retry = true
}

func (summary *WorkSummary) HasErrors() bool {
	return len(summary.Errors) > 0
}

func (summary *WorkSummary) FirstError() string {
	if len(summary.Errors) > 0 {
		return summary.Errors[0]
	}
	return ""
}

func (summary *WorkSummary) AllErrorsAsString() string {
	return strings.Join(summary.Errors, "\n")
}
