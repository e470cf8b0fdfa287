package intake

import (
	"path/filepath"
	"strings"
)

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".tiff": {},
}

// Gate filters candidate paths by extension and filename prefix.
type Gate struct {
	prefix string
}

// NewGate returns a gate accepting files whose name starts with prefix.
func NewGate(prefix string) Gate {
	return Gate{prefix: prefix}
}

// Eligible reports whether path has an allowed image extension
// (case-insensitive) and a base name, without extension, that starts with the
// configured prefix (case-sensitive). It inspects only the path string.
func (g Gate) Eligible(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if _, ok := allowedExtensions[strings.ToLower(ext)]; !ok {
		return false
	}
	stem := strings.TrimSuffix(base, ext)
	return strings.HasPrefix(stem, g.prefix)
}

// Prefix returns the configured filename prefix.
func (g Gate) Prefix() string {
	return g.prefix
}
