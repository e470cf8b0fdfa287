package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// pngHeader is enough of a PNG for code that only reads bytes.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// WriteImage creates dir/name holding a PNG signature plus size filler bytes
// and returns its path.
func WriteImage(t testing.TB, dir, name string, size int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if size < 0 {
		size = 0
	}
	data := make([]byte, 0, len(pngHeader)+size)
	data = append(data, pngHeader...)
	for i := 0; i < size; i++ {
		data = append(data, 0x42)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
