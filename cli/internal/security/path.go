package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinBoundary ensures that targetPath is within or equal to
// boundaryPath once both are made absolute, so "../" cannot escape it.
//
//	boundary := "/srv/machines"
//	target := "/srv/machines/orders.asl.json"   // valid
//	target := "/srv/machines/../../etc/passwd"  // rejected
func ValidatePathWithinBoundary(boundaryPath, targetPath string) error {
	absBoundary, err := filepath.Abs(boundaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve boundary path %q: %w", boundaryPath, err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return fmt.Errorf("failed to resolve target path %q: %w", targetPath, err)
	}

	rel, err := filepath.Rel(absBoundary, absTarget)
	if err != nil {
		return fmt.Errorf("invalid path relationship between %q and %q: %w", absBoundary, absTarget, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %q escapes boundary %q", targetPath, boundaryPath)
	}

	return nil
}

// ResolvePath joins a relative path onto base and checks that it stays inside
// base. Absolute paths are returned cleaned when allowAbsolute is set and
// rejected otherwise.
func ResolvePath(base, path string, allowAbsolute bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if filepath.IsAbs(path) {
		if !allowAbsolute {
			return "", fmt.Errorf("absolute path %q is not allowed", path)
		}
		return filepath.Clean(path), nil
	}

	resolved := filepath.Join(base, path)
	if err := ValidatePathWithinBoundary(base, resolved); err != nil {
		return "", err
	}
	return resolved, nil
}
