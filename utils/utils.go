package utils

import (
	"os"
	"strings"
)

func FileExist(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

func CreateDirIfNotExist(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}

	return nil
}

// IsBlank reports whether the given string is empty or whitespace only.
func IsBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
