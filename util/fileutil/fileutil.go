package fileutil

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// DepositHome returns the absolute path to the deposit root directory,
// which contains source, config and test files. You can set this
// explicitly by defining an environment variable called DEPOSIT_HOME.
// Otherwise, this function will try to infer the value by appending
// to the environment variable GOPATH. If neither of those variables
// is set, this returns an error.
func DepositHome() (depositHome string, err error) {
	depositHome = os.Getenv("DEPOSIT_HOME")
	if depositHome == "" {
		goHome := os.Getenv("GOPATH")
		if goHome != "" {
			depositHome = filepath.Join(goHome, "src", "github.com", "APTrust", "deposit")
		} else {
			err = fmt.Errorf("Cannot determine deposit home because neither " +
				"DEPOSIT_HOME nor GOPATH is set in environment.")
		}
	}
	if depositHome != "" {
		depositHome, err = filepath.Abs(depositHome)
	}
	return depositHome, err
}

// LoadRelativeFile reads the file at the specified path
// relative to DEPOSIT_HOME and returns the contents as a byte array.
// Absolute paths are read as-is.
func LoadRelativeFile(relativePath string) ([]byte, error) {
	absPath, err := RelativeToAbsPath(relativePath)
	if err != nil {
		return nil, err
	}
	return ioutil.ReadFile(absPath)
}

// Reads data from the file at absPath (an absolute path)
// and coverts it to an object of whatever type param obj
// is. Returns an error if there's a problem reading the
// file or unmarshalling the data into the type you passed in.
func JsonFileToObject(absPath string, obj interface{}) error {
	data, err := ioutil.ReadFile(absPath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, obj)
}

// Converts a relative path within the deposit directory tree
// to an absolute path.
func RelativeToAbsPath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return relativePath, nil
	}
	depositHome, err := DepositHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(depositHome, relativePath), nil
}

// Returns true if the file at path exists, false if not.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil && os.IsNotExist(err) {
		return false
	}
	return true
}

// Expands the tilde in a directory path to the current
// user's home directory. For example, on Linux, ~/data
// would expand to something like /home/josie/data
func ExpandTilde(filePath string) (string, error) {
	if strings.Index(filePath, "~") < 0 {
		return filePath, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	homeDir := usr.HomeDir + "/"
	expandedDir := strings.Replace(filePath, "~/", homeDir, 1)
	return expandedDir, nil
}

// RemoveIfExists deletes the file at path. It returns true if it
// deleted something. A file that is already gone is not an error.
func RemoveIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsEmptyDir returns true if dir is a directory with no entries.
// A directory that doesn't exist returns false and an error that
// satisfies os.IsNotExist.
func IsEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// IsWithin returns true if path is dir itself or lies somewhere
// beneath it. Both paths are cleaned before comparison.
func IsWithin(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}
