//go:build !linux

package daemonctl

import (
	"os/exec"
	"strconv"
	"strings"
)

func processCommandLine(pid int) (string, bool) {
	out, err := exec.Command("ps", "-o", "command=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return "", false
	}
	cmdline := strings.TrimSpace(string(out))
	return cmdline, cmdline != ""
}

func processZombie(pid int) bool {
	out, err := exec.Command("ps", "-o", "state=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(string(out)), "Z")
}
