//go:build !linux

package organizer

func renameNoReplace(oldPath, newPath string) error {
	return renameIfAbsent(oldPath, newPath)
}
