package constants_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseJobType(t *testing.T) {
	for _, jobType := range constants.RecordableJobTypes() {
		parsed, err := constants.ParseJobType(jobType.String())
		require.Nil(t, err, jobType.String())
		assert.Equal(t, jobType, parsed)
	}
}

func TestParseJobType_Unknown(t *testing.T) {
	_, err := constants.ParseJobType("edu.unc.lib.deposit.OldJob")
	assert.NotNil(t, err)

	// Neither the batch marker nor None may appear in the log.
	_, err = constants.ParseJobType("ValidationBatch")
	assert.NotNil(t, err)
	_, err = constants.ParseJobType("None")
	assert.NotNil(t, err)
	_, err = constants.ParseJobType("")
	assert.NotNil(t, err)
}

func TestRecordableJobTypes(t *testing.T) {
	jobTypes := constants.RecordableJobTypes()
	assert.Equal(t, constants.JobPackageIntegrityCheck, jobTypes[0])
	assert.Equal(t, constants.JobCleanup, jobTypes[len(jobTypes)-1])
	for _, jobType := range jobTypes {
		assert.True(t, jobType.IsRecordable())
	}
	assert.False(t, constants.JobValidationBatch.IsRecordable())
	assert.False(t, constants.JobNone.IsRecordable())
}

func TestJobTypeIsValidation(t *testing.T) {
	assert.Equal(t, 4, len(constants.ValidationJobs))
	assert.True(t, constants.JobValidateDescription.IsValidation())
	assert.False(t, constants.JobVirusScan.IsValidation())
	assert.False(t, constants.JobValidationBatch.IsValidation())
}

func TestJobTypeTopic(t *testing.T) {
	assert.Equal(t, "deposit_job_VirusScan", constants.JobVirusScan.Topic())
}

func TestJobTypeString_OutOfRange(t *testing.T) {
	assert.Equal(t, "JobType(999)", constants.JobType(999).String())
}

func TestNormalizationJobs(t *testing.T) {
	for _, packagingType := range constants.PackagingTypes {
		_, ok := constants.NormalizationJobs[packagingType]
		assert.True(t, ok, packagingType)
	}
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, constants.StateValidating, constants.StateFor(constants.JobValidationBatch))
	assert.Equal(t, constants.StateNormalizing, constants.StateFor(constants.JobNormalizeFileObjects))
	assert.Equal(t, constants.StateCleaningUp, constants.StateFor(constants.JobCleanup))
	assert.Equal(t, constants.StateReceived, constants.StateFor(constants.JobNone))
}

func TestIsTerminalState(t *testing.T) {
	assert.True(t, constants.IsTerminalState(constants.StateComplete))
	assert.True(t, constants.IsTerminalState(constants.StateFailed))
	assert.False(t, constants.IsTerminalState(constants.StateValidating))
	assert.False(t, constants.IsTerminalState(""))
}
