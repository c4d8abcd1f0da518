package constants

import (
	"fmt"
)

// JobType identifies one processing stage in the deposit pipeline.
// The set is closed: job types are declared here and nowhere else,
// and the order of declaration is the canonical pipeline order.
type JobType int

const (
	JobNone JobType = iota
	JobPackageIntegrityCheck
	JobUnpackDeposit
	JobNormalizeMETSCDR
	JobNormalizeSimpleObject
	JobNormalizeBagIt
	JobNormalizeDirectory
	JobNormalizeWorkForm
	JobNormalizeFileObjects
	JobValidateDestination
	JobValidateContentModel
	JobValidateDescription
	JobValidateFileAvailability
	JobVirusScan
	JobFixityCheck
	JobExtractTechnicalMetadata
	JobAssignStorageLocation
	JobTransferBinaries
	JobStaffOnlyPermission
	JobCreateDepositRecord
	JobIngestContentObjects
	JobCleanup

	// JobValidationBatch is not a real job. The planner returns it
	// for the parallel validation region, whose members are listed
	// in ValidationJobs. It is never written to the completion log.
	JobValidationBatch
)

var jobTypeNames = map[JobType]string{
	JobNone:                     "None",
	JobPackageIntegrityCheck:    "PackageIntegrityCheck",
	JobUnpackDeposit:            "UnpackDeposit",
	JobNormalizeMETSCDR:         "NormalizeMETSCDR",
	JobNormalizeSimpleObject:    "NormalizeSimpleObject",
	JobNormalizeBagIt:           "NormalizeBagIt",
	JobNormalizeDirectory:       "NormalizeDirectory",
	JobNormalizeWorkForm:        "NormalizeWorkForm",
	JobNormalizeFileObjects:     "NormalizeFileObjects",
	JobValidateDestination:      "ValidateDestination",
	JobValidateContentModel:     "ValidateContentModel",
	JobValidateDescription:      "ValidateDescription",
	JobValidateFileAvailability: "ValidateFileAvailability",
	JobVirusScan:                "VirusScan",
	JobFixityCheck:              "FixityCheck",
	JobExtractTechnicalMetadata: "ExtractTechnicalMetadata",
	JobAssignStorageLocation:    "AssignStorageLocation",
	JobTransferBinaries:         "TransferBinaries",
	JobStaffOnlyPermission:      "StaffOnlyPermission",
	JobCreateDepositRecord:      "CreateDepositRecord",
	JobIngestContentObjects:     "IngestContentObjects",
	JobCleanup:                  "Cleanup",
	JobValidationBatch:          "ValidationBatch",
}

// ValidationJobs are the independent validators that run together
// as one batch. They share no state and may finish in any order.
var ValidationJobs []JobType = []JobType{
	JobValidateDestination,
	JobValidateContentModel,
	JobValidateDescription,
	JobValidateFileAvailability,
}

// NormalizationJobs maps each packaging type to the job that converts
// it into the canonical internal representation. A packaging type
// that is already canonical maps to JobNone.
var NormalizationJobs map[string]JobType = map[string]JobType{
	PackagingMETSCDR:      JobNormalizeMETSCDR,
	PackagingSimpleObject: JobNormalizeSimpleObject,
	PackagingBagIt:        JobNormalizeBagIt,
	PackagingDirectory:    JobNormalizeDirectory,
	PackagingWorkForm:     JobNormalizeWorkForm,
	PackagingBagWithN3:    JobNone,
}

// String returns the job type's name, which is also the token
// stored in the completion log.
func (jobType JobType) String() string {
	name, ok := jobTypeNames[jobType]
	if !ok {
		return fmt.Sprintf("JobType(%d)", int(jobType))
	}
	return name
}

// IsRecordable returns true if the job type may appear in a
// deposit's completion log.
func (jobType JobType) IsRecordable() bool {
	return jobType > JobNone && jobType <= JobCleanup
}

// IsValidation returns true if the job type is a member of the
// parallel validation batch.
func (jobType JobType) IsValidation() bool {
	for _, member := range ValidationJobs {
		if member == jobType {
			return true
		}
	}
	return false
}

// Topic returns the NSQ topic to which requests for this job type
// are published.
func (jobType JobType) Topic() string {
	return JobTopicPrefix + jobType.String()
}

// ParseJobType converts a completion log token back into a JobType.
// Tokens that name no recordable job type return an error. These
// usually mean the deposit was processed by an older pipeline
// definition.
func ParseJobType(token string) (JobType, error) {
	for jobType, name := range jobTypeNames {
		if name == token && jobType.IsRecordable() {
			return jobType, nil
		}
	}
	return JobNone, fmt.Errorf("Unknown job type '%s'", token)
}

// RecordableJobTypes returns all job types that may appear in the
// completion log, in canonical order.
func RecordableJobTypes() []JobType {
	jobTypes := make([]JobType, 0, int(JobCleanup))
	for jobType := JobPackageIntegrityCheck; jobType <= JobCleanup; jobType++ {
		jobTypes = append(jobTypes, jobType)
	}
	return jobTypes
}

// StateFor returns the deposit state that describes a deposit whose
// next job is jobType.
func StateFor(jobType JobType) string {
	switch jobType {
	case JobPackageIntegrityCheck:
		return StateIntegrity
	case JobUnpackDeposit:
		return StateUnpacking
	case JobNormalizeMETSCDR, JobNormalizeSimpleObject, JobNormalizeBagIt,
		JobNormalizeDirectory, JobNormalizeWorkForm, JobNormalizeFileObjects:
		return StateNormalizing
	case JobValidationBatch, JobValidateDestination, JobValidateContentModel,
		JobValidateDescription, JobValidateFileAvailability:
		return StateValidating
	case JobVirusScan:
		return StateScanning
	case JobFixityCheck:
		return StateFixity
	case JobExtractTechnicalMetadata:
		return StateExtracting
	case JobAssignStorageLocation:
		return StateAssigningStorage
	case JobTransferBinaries:
		return StateTransferring
	case JobStaffOnlyPermission:
		return StateRestricting
	case JobCreateDepositRecord:
		return StateRecording
	case JobIngestContentObjects:
		return StateIngesting
	case JobCleanup:
		return StateCleaningUp
	}
	return StateReceived
}
