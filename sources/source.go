// Package sources knows where staged deposit files live and how to
// remove them once a deposit has been ingested.
package sources

import (
	"errors"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/network"
	"os"
)

// ErrUnknownSource is returned by ResolveOwningSource when no
// configured source owns a URI.
var ErrUnknownSource = errors.New("No storage source owns this location")

// Source is an external location from which staged files are read.
type Source interface {
	// Id returns the source's configured id.
	Id() string

	// Base returns the URI prefix the source owns.
	Base() string

	// IsReadOnly returns true if files ingested from this source must
	// be left in place. Sources don't enforce this themselves, since
	// the pipeline's own support files may be removed regardless.
	IsReadOnly() bool

	// Owns returns true if uri lies inside this source.
	Owns(uri string) bool

	// Delete removes the file at uri. It returns false, with no
	// error, if the file was already gone.
	Delete(uri string) (bool, error)

	// PruneEmptyParents removes directories above uri that are now
	// empty, working upward and stopping at the first non-empty
	// directory or at the source's root, which is never removed.
	// It returns the directories it removed.
	PruneEmptyParents(uri string) ([]string, error)
}

// Resolver finds the source that owns a URI.
type Resolver struct {
	sources []Source
}

// NewResolver returns a Resolver over sources.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// NewResolverFromConfig builds a source for each configured storage
// source. S3 sources take credentials from AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY, minio sources from MINIO_ACCESS_KEY and
// MINIO_SECRET_KEY.
func NewResolverFromConfig(configs []models.StorageSourceConfig) (*Resolver, error) {
	sources := make([]Source, 0, len(configs))
	for _, sourceConfig := range configs {
		var source Source
		var err error
		switch sourceConfig.Kind {
		case constants.SourceKindFilesystem:
			source, err = NewFileSource(sourceConfig)
		case constants.SourceKindS3:
			_session, sessionErr := network.GetS3Session(sourceConfig.Region)
			if sessionErr != nil {
				return nil, fmt.Errorf("Storage source %s: %v", sourceConfig.Id, sessionErr)
			}
			source, err = NewS3Source(sourceConfig, network.NewS3Client(_session))
		case constants.SourceKindMinio:
			client, clientErr := network.NewMinioClient(sourceConfig.Endpoint,
				os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"),
				sourceConfig.Secure)
			if clientErr != nil {
				return nil, fmt.Errorf("Storage source %s: %v", sourceConfig.Id, clientErr)
			}
			source, err = NewMinioSource(sourceConfig, client)
		default:
			err = fmt.Errorf("Unknown source kind '%s'", sourceConfig.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("Storage source %s: %v", sourceConfig.Id, err)
		}
		sources = append(sources, source)
	}
	return NewResolver(sources...), nil
}

// Sources returns the resolver's sources.
func (resolver *Resolver) Sources() []Source {
	return resolver.sources
}

// ResolveOwningSource returns the source that owns uri. When more
// than one source owns it, the one with the longest base wins, so a
// nested read-only mount can sit inside a writable staging area.
// Returns an error wrapping ErrUnknownSource if no source owns uri.
func (resolver *Resolver) ResolveOwningSource(uri string) (Source, error) {
	var owner Source
	for _, source := range resolver.sources {
		if !source.Owns(uri) {
			continue
		}
		if owner == nil || len(source.Base()) > len(owner.Base()) {
			owner = source
		}
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, uri)
	}
	return owner, nil
}

// IsUnknownSource returns true if err came from failing to resolve
// a source.
func IsUnknownSource(err error) bool {
	return errors.Is(err, ErrUnknownSource)
}
