package util

import (
	"os"
	"path/filepath"
	"strings"
)

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || os.IsExist(err)
}

// ExpandTilde expands the tilde in a file path to the user's home
// directory. Paths without a leading tilde come back unchanged.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	separatorIndex := strings.Index(filePath, string(os.PathSeparator))
	if separatorIndex < 0 {
		return homeDir, nil
	}
	return filepath.Join(homeDir, filePath[separatorIndex+1:]), nil
}

// LooksSafeToDelete returns true if a directory path looks safe to
// delete. It must have a minimum length and a minimum number of path
// separators. This keeps cleanup code from accidentally wiping out
// top-level system directories.
func LooksSafeToDelete(dir string, minLength, minSeparators int) bool {
	separatorCount := strings.Count(dir, string(os.PathSeparator))
	return len(dir) >= minLength && separatorCount >= minSeparators
}
