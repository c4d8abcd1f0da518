// Common vars and constants, shared by the deposit supervisor, the
// dispatchers and the storage layer.
package constants

import (
	"time"
)

// Packaging types describe the format in which a deposit arrives.
// These values are what submission tools write into the packagingType
// status field.
const (
	PackagingMETSCDR      = "http://cdr.unc.edu/METS/profiles/Simple"
	PackagingSimpleObject = "http://cdr.unc.edu/model/Simple"
	PackagingBagIt        = "http://purl.org/net/sword/package/BagIt"
	PackagingDirectory    = "http://cdr.unc.edu/DirectoryPackage"
	PackagingWorkForm     = "http://cdr.unc.edu/WorkFormDeposit"
	PackagingBagWithN3    = "http://cdr.unc.edu/BAGIT/profiles/N3"
)

var PackagingTypes []string = []string{
	PackagingMETSCDR,
	PackagingSimpleObject,
	PackagingBagIt,
	PackagingDirectory,
	PackagingWorkForm,
	PackagingBagWithN3,
}

// ArchiveExtensions lists the filename suffixes that mark a deposit
// as a package that must be unpacked before normalization. Matching
// is case-insensitive.
var ArchiveExtensions []string = []string{
	".zip",
	".tar",
	".tgz",
	".tar.gz",
}

// Deposit status fields. The status map is deliberately flat, so new
// optional fields can be added without migrating stored deposits.
const (
	FieldPackagingType        = "packagingType"
	FieldFileName             = "fileName"
	FieldDepositMd5           = "depositMd5"
	FieldContainerId          = "containerId"
	FieldDepositorName        = "depositorName"
	FieldStaffOnly            = "staffOnly"
	FieldExcludeDepositRecord = "excludeDepositRecord"
	FieldState                = "state"
	FieldErrorMessage         = "errorMessage"
	FieldErrorDetail          = "errorDetail"
	FieldStartTime            = "startTime"
	FieldEndTime              = "endTime"
	FieldExpiresAt            = "expiresAt"
)

// Deposit states. COMPLETE and FAILED are terminal.
const (
	StateReceived         = "RECEIVED"
	StateIntegrity        = "INTEGRITY"
	StateUnpacking        = "UNPACKING"
	StateNormalizing      = "NORMALIZING"
	StateValidating       = "VALIDATING"
	StateScanning         = "SCANNING"
	StateFixity           = "FIXITY"
	StateExtracting       = "EXTRACTING"
	StateAssigningStorage = "ASSIGNING_STORAGE"
	StateTransferring     = "TRANSFERRING"
	StateRestricting      = "RESTRICTING"
	StateRecording        = "RECORDING"
	StateIngesting        = "INGESTING"
	StateCleaningUp       = "CLEANING_UP"
	StateComplete         = "COMPLETE"
	StateFailed           = "FAILED"
)

var DepositStates []string = []string{
	StateReceived,
	StateIntegrity,
	StateUnpacking,
	StateNormalizing,
	StateValidating,
	StateScanning,
	StateFixity,
	StateExtracting,
	StateAssigningStorage,
	StateTransferring,
	StateRestricting,
	StateRecording,
	StateIngesting,
	StateCleaningUp,
	StateComplete,
	StateFailed,
}

// IsTerminalState returns true for states from which a deposit never
// advances on its own.
func IsTerminalState(state string) bool {
	return state == StateComplete || state == StateFailed
}

// NSQ topics. Job requests go to JobTopicPrefix + the job type name,
// e.g. deposit_job_VirusScan.
const (
	TopicAdvance   = "deposit_advance"
	TopicJobResult = "deposit_job_result"
	TopicComplete  = "deposit_complete"
	TopicFailed    = "deposit_failed"
	JobTopicPrefix = "deposit_job_"
)

// Storage source kinds, as named in the StorageSources config block.
const (
	SourceKindFilesystem = "filesystem"
	SourceKindS3         = "s3"
	SourceKindMinio      = "minio"
)

var SourceKinds []string = []string{
	SourceKindFilesystem,
	SourceKindS3,
	SourceKindMinio,
}

// Status and completion log backends.
const (
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Dispatcher implementations.
const (
	DispatcherNSQ   = "nsq"
	DispatcherLocal = "local"
)

// Staging location roles, as recorded in the deposit graph.
const (
	RoleIngested    = "ingested"
	RoleCleanupOnly = "cleanup-only"
)

// DepositGraphFile is the name of the descriptive graph document
// inside each deposit's working directory.
const DepositGraphFile = "deposit_graph.json"

const (
	// DefaultValidationTimeout bounds the validation join. It is sized
	// to absorb queue backlog, not the cost of validating.
	DefaultValidationTimeout = 24 * time.Hour

	// DefaultJobTimeout bounds the wait for a single job.
	DefaultJobTimeout = 24 * time.Hour

	// DefaultStatusExpiry is how long a finished deposit's status
	// stays readable after cleanup.
	DefaultStatusExpiry = 7 * 24 * time.Hour

	// DefaultPurgeInterval is how often expired deposits are
	// removed from stores without native expiry.
	DefaultPurgeInterval = time.Hour

	// TimestampFormat is used for time values in the status map.
	TimestampFormat = time.RFC3339
)
