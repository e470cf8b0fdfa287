package daemonctl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// verifyProcess is swapped in tests that need to treat fake PIDs as live.
var verifyProcess = IsSnapSenseProcess

// IsSnapSenseProcess reports whether pid is alive and, when its command line
// is readable, looks like a SnapSense executable. An unreadable command line
// is treated as a match so a live daemon is never mistaken for a stale one.
func IsSnapSenseProcess(pid int) bool {
	if !processAlive(pid) {
		return false
	}
	cmdline, ok := processCommandLine(pid)
	if !ok {
		return true
	}
	return matchesExecutable(cmdline)
}

// processAlive checks pid with signal 0. EPERM means the process exists but
// belongs to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}
	return !processZombie(pid)
}

func matchesExecutable(cmdline string) bool {
	for _, name := range executableNames() {
		if strings.Contains(cmdline, name) {
			return true
		}
	}
	return false
}

func executableNames() []string {
	names := []string{"snapsense"}
	if exe, err := os.Executable(); err == nil {
		names = append(names, filepath.Base(exe))
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		names = append(names, filepath.Base(os.Args[0]))
	}
	return names
}
