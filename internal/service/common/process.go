//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ExecutablePath returns the absolute path of the running executable with symlinks resolved.
func ExecutablePath() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path, nil //nolint:nilerr // The unresolved path is still usable.
	}

	return resolved, nil
}

// OtherInstances returns the ids of running processes whose executable name
// equals name, excluding the current process.
func OtherInstances(name string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	var result []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != name {
			continue
		}

		result = append(result, process.Pid())
	}

	return result, nil
}
