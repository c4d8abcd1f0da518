package pipeline

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/util"
)

// planRule is one step of the pipeline. When guard is true and the
// job hasn't succeeded yet, the job is next. A job function that
// returns JobNone means the step doesn't apply to this deposit.
type planRule struct {
	job   func(status *models.DepositStatus) constants.JobType
	guard func(status *models.DepositStatus) bool
}

func always(*models.DepositStatus) bool {
	return true
}

func fixed(jobType constants.JobType) func(*models.DepositStatus) constants.JobType {
	return func(*models.DepositStatus) constants.JobType {
		return jobType
	}
}

// planRules is the pipeline, in order. The validation step returns
// JobValidationBatch, which stands for all of ValidationJobs.
var planRules = []planRule{
	{
		job:   fixed(constants.JobPackageIntegrityCheck),
		guard: (*models.DepositStatus).HasSuppliedChecksum,
	},
	{
		job: fixed(constants.JobUnpackDeposit),
		guard: func(status *models.DepositStatus) bool {
			return util.HasArchiveExtension(status.FileName()) &&
				status.PackagingType() != constants.PackagingSimpleObject
		},
	},
	{
		job: func(status *models.DepositStatus) constants.JobType {
			return constants.NormalizationJobs[status.PackagingType()]
		},
		guard: always,
	},
	{
		job: fixed(constants.JobNormalizeFileObjects),
		guard: func(status *models.DepositStatus) bool {
			return status.PackagingType() == constants.PackagingMETSCDR
		},
	},
	{job: fixed(constants.JobValidationBatch), guard: always},
	{job: fixed(constants.JobVirusScan), guard: always},
	{job: fixed(constants.JobFixityCheck), guard: always},
	{job: fixed(constants.JobExtractTechnicalMetadata), guard: always},
	{job: fixed(constants.JobAssignStorageLocation), guard: always},
	{job: fixed(constants.JobTransferBinaries), guard: always},
	{
		job:   fixed(constants.JobStaffOnlyPermission),
		guard: (*models.DepositStatus).StaffOnly,
	},
	{
		job: fixed(constants.JobCreateDepositRecord),
		guard: func(status *models.DepositStatus) bool {
			return !status.ExcludeDepositRecord()
		},
	},
	{job: fixed(constants.JobIngestContentObjects), guard: always},
	{job: fixed(constants.JobCleanup), guard: always},
}

// Planner picks the next job for a deposit. It has no state and
// no side effects, so one Planner can serve every worker.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// NextJob returns the next job to run for the deposit described by
// status, given the completion log tokens in completed. It returns
// done = true once Cleanup has succeeded.
//
// An unknown packaging type or an unknown completion log token
// returns a *FatalError.
func (planner *Planner) NextJob(status *models.DepositStatus, completed []string) (constants.JobType, bool, error) {
	completedJobs, err := models.ParseCompletedJobs(completed)
	if err != nil {
		return constants.JobNone, false, NewFatalError("Invalid completion log", "%v", err)
	}
	return planner.next(status, completedJobs)
}

func (planner *Planner) next(status *models.DepositStatus, completed *models.CompletedJobs) (constants.JobType, bool, error) {
	if _, ok := constants.NormalizationJobs[status.PackagingType()]; !ok {
		return constants.JobNone, false, NewFatalError("Unknown packaging type",
			"'%s' for deposit %s", status.PackagingType(), status.DepositId)
	}
	if completed.Contains(constants.JobCleanup) {
		return constants.JobNone, true, nil
	}
	for _, rule := range planRules {
		if !rule.guard(status) {
			continue
		}
		jobType := rule.job(status)
		switch {
		case jobType == constants.JobNone:
			continue
		case jobType == constants.JobValidationBatch:
			if !completed.ContainsAll(constants.ValidationJobs) {
				return jobType, false, nil
			}
		case !completed.Contains(jobType):
			return jobType, false, nil
		}
	}
	// Every rule is satisfied, but the final rule is Cleanup,
	// which we checked above.
	return constants.JobCleanup, false, nil
}

// RemainingJobs returns the jobs still to run for the deposit, in
// order, assuming each succeeds. A validation batch appears once,
// as JobValidationBatch. Operators use this to see where a deposit
// stands.
func (planner *Planner) RemainingJobs(status *models.DepositStatus, completed []string) ([]constants.JobType, error) {
	completedJobs, err := models.ParseCompletedJobs(completed)
	if err != nil {
		return nil, NewFatalError("Invalid completion log", "%v", err)
	}
	remaining := make([]constants.JobType, 0)
	for {
		jobType, done, err := planner.next(status, completedJobs)
		if err != nil {
			return nil, err
		}
		if done {
			return remaining, nil
		}
		remaining = append(remaining, jobType)
		if jobType == constants.JobValidationBatch {
			for _, member := range constants.ValidationJobs {
				completedJobs.Add(member)
			}
		} else {
			completedJobs.Add(jobType)
		}
	}
}
