package sources

import (
	"fmt"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/util/fileutil"
	"net/url"
	"os"
	"path/filepath"
)

// FileSource is a staging area on a locally mounted filesystem.
type FileSource struct {
	config models.StorageSourceConfig
	root   string
}

// NewFileSource returns a FileSource whose root is the path of
// config.Base, which must be a file:// URI or an absolute path.
func NewFileSource(config models.StorageSourceConfig) (*FileSource, error) {
	root, err := LocalPath(config.Base)
	if err != nil {
		return nil, err
	}
	if root == string(os.PathSeparator) {
		return nil, fmt.Errorf("Refusing to use the filesystem root as a storage source")
	}
	return &FileSource{
		config: config,
		root:   root,
	}, nil
}

// LocalPath converts a file:// URI or absolute path into a cleaned
// absolute path.
func LocalPath(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	path := uri
	if parsed.Scheme == "file" {
		path = parsed.Path
	} else if parsed.Scheme != "" {
		return "", fmt.Errorf("'%s' is not a file URI", uri)
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("'%s' is not an absolute path", uri)
	}
	return filepath.Clean(path), nil
}

func (source *FileSource) Id() string {
	return source.config.Id
}

func (source *FileSource) Base() string {
	return source.config.Base
}

// Root returns the directory at the top of this source.
func (source *FileSource) Root() string {
	return source.root
}

func (source *FileSource) IsReadOnly() bool {
	return source.config.ReadOnly
}

func (source *FileSource) Owns(uri string) bool {
	path, err := LocalPath(uri)
	if err != nil {
		return false
	}
	return fileutil.IsWithin(path, source.root)
}

func (source *FileSource) pathFor(uri string) (string, error) {
	path, err := LocalPath(uri)
	if err != nil {
		return "", err
	}
	if path == source.root || !fileutil.IsWithin(path, source.root) {
		return "", fmt.Errorf("'%s' is not a file inside source %s", uri, source.Id())
	}
	return path, nil
}

func (source *FileSource) Delete(uri string) (bool, error) {
	path, err := source.pathFor(uri)
	if err != nil {
		return false, err
	}
	return fileutil.RemoveIfExists(path)
}

// PruneEmptyParents tolerates directories vanishing underneath it,
// since cleanup of another deposit may be pruning the same tree.
func (source *FileSource) PruneEmptyParents(uri string) ([]string, error) {
	removed := make([]string, 0)
	path, err := source.pathFor(uri)
	if err != nil {
		return removed, err
	}
	for dir := filepath.Dir(path); dir != source.root && fileutil.IsWithin(dir, source.root); dir = filepath.Dir(dir) {
		empty, err := fileutil.IsEmptyDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return removed, err
		}
		if !empty {
			break
		}
		err = os.Remove(dir)
		if err == nil {
			removed = append(removed, dir)
			continue
		}
		if os.IsNotExist(err) {
			continue
		}
		// Something landed in the directory after we looked.
		if stillEmpty, checkErr := fileutil.IsEmptyDir(dir); checkErr == nil && !stillEmpty {
			break
		}
		return removed, err
	}
	return removed, nil
}
