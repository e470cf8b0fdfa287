package daemonctl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"snapsense/internal/services"
)

const (
	lockStaleAfter    = 10 * time.Second
	claimPollInterval = 25 * time.Millisecond
)

// claimTimeout bounds how long a claim waits for another claimant's lock.
var claimTimeout = 5 * time.Second

// ErrAlreadyRunning reports that the PID file names another live daemon.
var ErrAlreadyRunning = errors.New("snapsense already running")

// ReadPIDFile returns the PID recorded at path. A missing file yields 0 and a
// nil error; unparsable content is an ErrProcessState.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read pid file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(value)
	if err != nil || pid <= 0 {
		return 0, services.Wrap(services.ErrProcessState, "daemonctl", "read pid file",
			fmt.Sprintf("pid file %q holds %q", path, value), err)
	}
	return pid, nil
}

// ClaimPIDFile records pid in the PID file unless the file already names a
// different verified live process. Claims are serialized through an exclusive
// <path>.lock file so two daemons starting together cannot both win.
func ClaimPIDFile(path string, pid int) error {
	release, err := acquireClaimLock(path + ".lock")
	if err != nil {
		return err
	}
	defer release()

	current, err := ReadPIDFile(path)
	if err != nil && !errors.Is(err, services.ErrProcessState) {
		return err
	}
	if current > 0 && current != pid && verifyProcess(current) {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, current)
	}
	return writePIDFile(path, pid)
}

// ReleasePIDFile removes the PID file if it still names pid.
func ReleasePIDFile(path string, pid int) error {
	release, err := acquireClaimLock(path + ".lock")
	if err != nil {
		return err
	}
	defer release()
	return removeIfOwned(path, pid)
}

// removeIfOwned deletes the PID file when it names pid or holds garbage.
// Callers hold the claim lock.
func removeIfOwned(path string, pid int) error {
	current, err := ReadPIDFile(path)
	if err != nil && !errors.Is(err, services.ErrProcessState) {
		return err
	}
	if err == nil && current != pid {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove pid file %q: %w", path, err)
	}
	return nil
}

// writePIDFile replaces the PID file atomically via a sibling temp file.
func writePIDFile(path string, pid int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp pid file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp pid file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp pid file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp pid file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install pid file: %w", err)
	}
	return nil
}

// acquireClaimLock creates lockPath exclusively, breaking locks older than
// lockStaleAfter left behind by a crashed claimant.
func acquireClaimLock(lockPath string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	deadline := time.Now().Add(claimTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create pid lock %q: %w", lockPath, err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrProcessState, "daemonctl", "acquire pid lock",
				fmt.Sprintf("lock %q held by another process", lockPath), nil)
		}
		time.Sleep(claimPollInterval)
	}
}
