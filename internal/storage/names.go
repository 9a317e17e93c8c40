package storage

import (
	"path/filepath"
	"strings"
)

// ValidateName accepts only a single, relative path segment. Download and
// delete build filesystem paths from request parameters, so anything that
// could climb out of the upload directory is refused here.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrInvalidName
	case filepath.IsAbs(name), filepath.VolumeName(name) != "":
		return ErrInvalidName
	case name == incomingDir:
		return ErrInvalidName
	}
	return nil
}
