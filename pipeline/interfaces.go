// Package pipeline decides what happens next to a deposit, runs the
// validation batch, and cleans up after ingest.
package pipeline

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/dispatch"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/sources"
	"time"
)

// StatusStore holds each deposit's flat status map.
type StatusStore interface {
	GetStatus(depositId string) (*models.DepositStatus, error)
	UpdateStatus(depositId, field, value string) error
	ClearStatusFields(depositId string, fields ...string) error
	ExpireStatus(depositId string, ttl time.Duration) error
}

// CompletionLog is the append-only record of which jobs have
// succeeded for each deposit.
type CompletionLog interface {
	CompletedJobTypes(depositId string) ([]string, error)
	JobSucceeded(depositId string, jobType constants.JobType) error
}

// DepositStore is a backend that keeps both status and completion
// logs.
type DepositStore interface {
	StatusStore
	CompletionLog
	Close() error
}

// Purger is implemented by stores with no native expiry. PurgeExpired
// removes expired deposits and returns how many it removed.
type Purger interface {
	PurgeExpired() (int, error)
}

// Dispatcher starts a job and returns a handle to its outcome.
type Dispatcher interface {
	Dispatch(depositId string, jobType constants.JobType) (*dispatch.Handle, error)
}

// SourceResolver finds the storage source that owns a staged file.
type SourceResolver interface {
	ResolveOwningSource(uri string) (sources.Source, error)
}

// GraphReader returns the staging locations recorded for a deposit.
type GraphReader interface {
	StagingLocations(depositId string) ([]models.StagingLocation, error)
}

// Notifier tells the rest of the system about deposit progress.
type Notifier interface {
	Advance(depositId string) error
	NotifyComplete(depositId string) error
	NotifyFailed(failure *models.DepositFailure) error
}

// Observer receives counts and timings. It must be safe for
// concurrent use.
type Observer interface {
	DepositAdvanced(depositId string)
	JobDispatched(depositId string, jobType constants.JobType)
	JobFinished(depositId string, jobType constants.JobType, succeeded bool, elapsed time.Duration)
	BatchFinished(depositId string, succeeded bool, elapsed time.Duration)
	CleanupFinished(depositId string, deleted, skipped int)
	DepositFailed(depositId string)
	DepositCompleted(depositId string)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) DepositAdvanced(string) {}
func (NopObserver) JobDispatched(string, constants.JobType) {}
func (NopObserver) JobFinished(string, constants.JobType, bool, time.Duration) {}
func (NopObserver) BatchFinished(string, bool, time.Duration) {}
func (NopObserver) CleanupFinished(string, int, int) {}
func (NopObserver) DepositFailed(string) {}
func (NopObserver) DepositCompleted(string) {}
