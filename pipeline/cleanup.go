package pipeline

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/sources"
	"github.com/APTrust/deposit/util/fileutil"
	"github.com/op/go-logging"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// CleanupResult describes one cleanup run. Errors and warnings are in
// the embedded WorkSummary.
type CleanupResult struct {
	*models.WorkSummary

	// Deleted lists the staged files that were removed.
	Deleted []string

	// Skipped lists staged files left alone because their source
	// is read-only, or because no source owns them.
	Skipped []string

	// Pruned lists the empty directories removed after deleting.
	Pruned []string

	// WorkingDirectoryRemoved is true if the deposit's working
	// directory was removed by this run.
	WorkingDirectoryRemoved bool
}

type resolvedLocation struct {
	location models.StagingLocation
	source   sources.Source
}

// CleanupExecutor removes a deposit's staged files once ingest is
// done. It is safe to run more than once for the same deposit.
type CleanupExecutor struct {
	resolver          SourceResolver
	graphs            GraphReader
	status            StatusStore
	depositsDirectory string
	statusExpiry      time.Duration
	logger            *logging.Logger
	observer          Observer
}

func NewCleanupExecutor(resolver SourceResolver, graphs GraphReader, status StatusStore,
	depositsDirectory string, statusExpiry time.Duration, logger *logging.Logger,
	observer Observer) *CleanupExecutor {
	if observer == nil {
		observer = NopObserver{}
	}
	return &CleanupExecutor{
		resolver:          resolver,
		graphs:            graphs,
		status:            status,
		depositsDirectory: depositsDirectory,
		statusExpiry:      statusExpiry,
		logger:            logger,
		observer:          observer,
	}
}

// Cleanup deletes the deposit's staged files, prunes directories
// they leave empty, schedules the deposit's status to expire, records
// the expiry time in the expiresAt field and removes its working
// directory.
//
// Every ingested file's source is resolved before anything is
// deleted. If any can't be resolved, Cleanup returns a *FatalError
// and changes nothing. Other errors are returned after every
// location has been tried. In that case the status and working
// directory are left in place, so the deposit graph is still there
// when the cleanup is retried.
func (executor *CleanupExecutor) Cleanup(depositId string) (*CleanupResult, error) {
	result := &CleanupResult{
		WorkSummary: models.NewWorkSummary(depositId, constants.JobCleanup.String()),
		Deleted:     make([]string, 0),
		Skipped:     make([]string, 0),
		Pruned:      make([]string, 0),
	}
	result.Start()
	defer result.Finish()

	workingDir, err := executor.workingDirectory(depositId)
	if err != nil {
		result.AddFatalError("%v", err)
		return result, err
	}

	locations, err := executor.graphs.StagingLocations(depositId)
	if err != nil {
		result.AddFatalError("Cannot read staging locations: %v", err)
		return result, NewFatalError("Cannot read staging locations", "%v", err)
	}

	ingested, cleanupOnly, err := executor.resolve(depositId, locations)
	if err != nil {
		result.AddFatalError("%v", err)
		return result, err
	}

	for _, resolved := range ingested {
		executor.cleanIngested(result, resolved)
	}
	for _, resolved := range cleanupOnly {
		executor.cleanCleanupOnly(result, resolved)
	}
	if result.HasErrors() {
		executor.logger.Warningf("[%s] Cleanup left work undone: %s", depositId, result.AllErrorsAsString())
		return result, fmt.Errorf("Cleanup of deposit %s incomplete: %s", depositId, result.FirstError())
	}

	expiresAt := time.Now().UTC().Add(executor.statusExpiry)
	if err := executor.status.ExpireStatus(depositId, executor.statusExpiry); err != nil {
		result.AddError("Cannot set status expiry: %v", err)
		return result, err
	}
	err = executor.status.UpdateStatus(depositId, constants.FieldExpiresAt,
		expiresAt.Format(constants.TimestampFormat))
	if err != nil {
		result.AddWarning("Cannot record expiry time: %v", err)
	}
	if err := executor.removeWorkingDirectory(result, workingDir); err != nil {
		result.AddError("%v", err)
		return result, err
	}
	executor.observer.CleanupFinished(depositId, len(result.Deleted), len(result.Skipped))
	executor.logger.Infof("[%s] Cleanup deleted %d files, skipped %d, pruned %d directories",
		depositId, len(result.Deleted), len(result.Skipped), len(result.Pruned))
	return result, nil
}

// resolve finds the owning source of every location. An ingested
// file with no owner is fatal. A cleanup-only file with no owner
// gets a nil source.
func (executor *CleanupExecutor) resolve(depositId string, locations []models.StagingLocation) ([]resolvedLocation, []resolvedLocation, error) {
	ingested := make([]resolvedLocation, 0)
	cleanupOnly := make([]resolvedLocation, 0)
	for _, location := range locations {
		source, err := executor.resolver.ResolveOwningSource(location.URI)
		if err != nil && !sources.IsUnknownSource(err) {
			return nil, nil, err
		}
		switch location.Role {
		case constants.RoleIngested:
			if source == nil {
				return nil, nil, NewFatalError("Unknown storage source",
					"no configured source owns %s, staged for deposit %s", location.URI, depositId)
			}
			ingested = append(ingested, resolvedLocation{location: location, source: source})
		case constants.RoleCleanupOnly:
			cleanupOnly = append(cleanupOnly, resolvedLocation{location: location, source: source})
		default:
			return nil, nil, NewFatalError("Unknown staging role",
				"'%s' for %s", location.Role, location.URI)
		}
	}
	return ingested, cleanupOnly, nil
}

func (executor *CleanupExecutor) cleanIngested(result *CleanupResult, resolved resolvedLocation) {
	uri := resolved.location.URI
	if resolved.source.IsReadOnly() {
		executor.logger.Infof("[%s] Leaving %s: source %s is read-only",
			result.DepositId, uri, resolved.source.Id())
		result.Skipped = append(result.Skipped, uri)
		return
	}
	executor.deleteAndPrune(result, resolved.source, uri)
}

// cleanCleanupOnly removes support files. These were staged by the
// pipeline itself, so read-only policy doesn't apply.
func (executor *CleanupExecutor) cleanCleanupOnly(result *CleanupResult, resolved resolvedLocation) {
	uri := resolved.location.URI
	if resolved.source != nil {
		deleted, err := resolved.source.Delete(uri)
		executor.recordDelete(result, uri, deleted, err)
		return
	}
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != "file" {
		result.AddWarning("No source owns cleanup-only file %s. Left it alone.", uri)
		result.Skipped = append(result.Skipped, uri)
		return
	}
	path, err := sources.LocalPath(uri)
	if err != nil {
		result.AddWarning("Cannot interpret cleanup-only file %s: %v", uri, err)
		result.Skipped = append(result.Skipped, uri)
		return
	}
	deleted, err := fileutil.RemoveIfExists(path)
	executor.recordDelete(result, uri, deleted, err)
}

// deleteAndPrune deletes uri if present, then prunes. Pruning runs
// even when the file was already gone, since an earlier run may
// have died between the two steps.
func (executor *CleanupExecutor) deleteAndPrune(result *CleanupResult, source sources.Source, uri string) {
	deleted, err := source.Delete(uri)
	executor.recordDelete(result, uri, deleted, err)
	if err != nil {
		return
	}
	pruned, err := source.PruneEmptyParents(uri)
	result.Pruned = append(result.Pruned, pruned...)
	if err != nil {
		result.AddError("Error pruning directories above %s: %v", uri, err)
	}
}

func (executor *CleanupExecutor) recordDelete(result *CleanupResult, uri string, deleted bool, err error) {
	if err != nil {
		result.AddError("Error deleting %s: %v", uri, err)
		return
	}
	if deleted {
		executor.logger.Debugf("[%s] Deleted %s", result.DepositId, uri)
		result.Deleted = append(result.Deleted, uri)
	} else {
		executor.logger.Debugf("[%s] %s was already gone", result.DepositId, uri)
	}
}

// workingDirectory returns the deposit's working directory, after
// checking that deleting it can't harm anything else.
func (executor *CleanupExecutor) workingDirectory(depositId string) (string, error) {
	if depositId == "" || depositId != filepath.Base(depositId) || depositId == "." || depositId == ".." {
		return "", NewFatalError("Bad deposit id", "'%s' cannot name a working directory", depositId)
	}
	dir := filepath.Join(executor.depositsDirectory, depositId)
	if !fileutil.IsWithin(dir, executor.depositsDirectory) || dir == filepath.Clean(executor.depositsDirectory) {
		return "", NewFatalError("Unsafe working directory", "refusing to delete %s", dir)
	}
	return dir, nil
}

func (executor *CleanupExecutor) removeWorkingDirectory(result *CleanupResult, dir string) error {
	if !fileutil.FileExists(dir) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("Cannot remove working directory %s: %v", dir, err)
	}
	result.WorkingDirectoryRemoved = true
	return nil
}
