package resources

import (
	"path/filepath"
	"runtime"
)

// BasePath returns the root of the repository, where config/ lives.
func BasePath() string {
	_, callerFilePath, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(callerFilePath), "../..")
}
