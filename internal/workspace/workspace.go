// Package workspace resolves the directory tree file tools operate in and
// guards paths that must never be read or written.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolve locates the workspace root for a starting path. A directory
// containing .git wins; otherwise the starting path itself is the root.
func Resolve(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	dir := abs
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// IsProtected reports whether a path carries credentials or keys and must
// be refused by every file tool regardless of arguments.
func IsProtected(path string) bool {
	lower := strings.ToLower(path)
	base := strings.ToLower(filepath.Base(path))

	switch {
	case strings.HasPrefix(base, ".env"):
		return true
	case strings.HasSuffix(base, ".pem"),
		strings.HasSuffix(base, ".key"),
		strings.HasSuffix(base, ".p12"),
		strings.HasSuffix(base, ".pfx"):
		return true
	case strings.HasPrefix(base, "id_rsa"), strings.HasPrefix(base, "id_ed25519"):
		return true
	case base == ".npmrc", base == ".netrc":
		return true
	}
	if strings.Contains(lower, filepath.ToSlash(filepath.Join(".aws", "credentials"))) {
		return true
	}
	if strings.Contains(lower, filepath.ToSlash(filepath.Join(".docker", "config.json"))) {
		return true
	}
	if strings.Contains(lower, filepath.ToSlash(filepath.Join(".kube", "config"))) {
		return true
	}
	return false
}
