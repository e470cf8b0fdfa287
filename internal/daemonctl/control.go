package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"snapsense/internal/services"
)

const (
	// DefaultStartTimeout bounds how long Start waits for the daemon's PID file.
	DefaultStartTimeout = 10 * time.Second
	startPollInterval   = 100 * time.Millisecond
	// startExitGrace is how long Start keeps reading the PID file after the
	// child exits early, waiting for a racing winner's claim.
	startExitGrace = 5 * startPollInterval
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	// LogPath receives the detached daemon's stdout and stderr.
	LogPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// State is the supervisor's view of the daemon.
type State string

const (
	StateRunning    State = "running"
	StateNotRunning State = "not_running"
)

// StatusResult describes the daemon as seen through the PID file.
type StatusResult struct {
	State   State
	PID     int
	PIDFile string
}

// Running reports whether a verified daemon process was found.
func (s StatusResult) Running() bool {
	return s.State == StateRunning
}

// ErrNotRunning indicates no verified daemon process exists.
var ErrNotRunning = errors.New("snapsense is not running")

// StopOptions tunes the graceful stop window.
type StopOptions struct {
	Polls        int
	PollInterval time.Duration
}

// DefaultStopOptions waits 10 x 500ms for a graceful exit before SIGKILL.
func DefaultStopOptions() StopOptions {
	return StopOptions{Polls: 10, PollInterval: 500 * time.Millisecond}
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Status reads and verifies the PID file. A PID file naming a dead or foreign
// process is removed.
func Status(pidPath string) (StatusResult, error) {
	result := StatusResult{State: StateNotRunning, PIDFile: pidPath}
	pid, err := ReadPIDFile(pidPath)
	if err != nil && !errors.Is(err, services.ErrProcessState) {
		return result, err
	}
	if err == nil && pid == 0 {
		return result, nil
	}
	if err == nil && verifyProcess(pid) {
		result.State = StateRunning
		result.PID = pid
		return result, nil
	}
	if cleanupErr := removeStale(pidPath, pid); cleanupErr != nil {
		return result, cleanupErr
	}
	return result, nil
}

// removeStale deletes the PID file if it still holds the stale value that was
// observed, so a daemon that claimed the file in the meantime is left alone.
func removeStale(pidPath string, observed int) error {
	release, err := acquireClaimLock(pidPath + ".lock")
	if err != nil {
		return err
	}
	defer release()
	return removeIfOwned(pidPath, observed)
}

// Launch starts a detached snapsense daemon process in its own session and
// returns the child handle.
func Launch(executablePath string, opts LaunchOptions) (*exec.Cmd, error) {
	if strings.TrimSpace(executablePath) == "" {
		return nil, fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	output := devNull
	if logPath := strings.TrimSpace(opts.LogPath); logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, fmt.Errorf("create daemon log directory: %w", err)
		}
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open daemon log: %w", err)
		}
		defer logFile.Close()
		output = logFile
	}

	proc := exec.Command(executablePath, args...)
	proc.Stdin = devNull
	proc.Stdout = output
	proc.Stderr = output
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("launch daemon: %w", err)
	}
	return proc, nil
}

// Start launches the daemon unless a verified one is already running, then
// waits up to timeout for the PID file to name a live daemon.
func Start(executablePath, pidPath string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	status, err := Status(pidPath)
	if err != nil {
		return StartResult{}, err
	}
	if status.Running() {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}

	proc, err := Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	childPID := proc.Process.Pid
	exited := make(chan error, 1)
	go func() { exited <- proc.Wait() }()

	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()

	for {
		select {
		case waitErr := <-exited:
			if pid, ok := awaitOtherDaemon(pidPath, childPID, startExitGrace); ok {
				return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
			}
			return StartResult{}, fmt.Errorf("daemon exited during startup (%v); see %s", describeExit(waitErr), opts.LogPath)
		case <-deadline.C:
			return StartResult{}, fmt.Errorf("daemon did not report ready within %s; see %s", timeout, opts.LogPath)
		case <-ticker.C:
			pid, _ := ReadPIDFile(pidPath)
			if pid <= 0 || !verifyProcess(pid) {
				continue
			}
			if pid == childPID {
				return StartResult{State: StartStateStarted, PID: pid}, nil
			}
			return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
		}
	}
}

// awaitOtherDaemon polls the PID file for up to grace, looking for a verified
// daemon other than exclude.
func awaitOtherDaemon(pidPath string, exclude int, grace time.Duration) (int, bool) {
	deadline := time.Now().Add(grace)
	for {
		if pid, _ := ReadPIDFile(pidPath); pid > 0 && pid != exclude && verifyProcess(pid) {
			return pid, true
		}
		if !time.Now().Before(deadline) {
			return 0, false
		}
		time.Sleep(startPollInterval)
	}
}

func describeExit(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}

// Stop sends SIGTERM to the daemon named by the PID file and escalates to
// SIGKILL when it has not exited after the grace window. It returns
// ErrNotRunning without signalling anything when no verified daemon exists.
func Stop(pidPath string, opts StopOptions) (StopResult, error) {
	status, err := Status(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if !status.Running() {
		return StopResult{}, ErrNotRunning
	}
	pid := status.PID
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if opts.Polls <= 0 || opts.PollInterval <= 0 {
		opts = DefaultStopOptions()
	}

	result := StopResult{PID: pid}
	if err := signalProcess(pid, unix.SIGTERM); err != nil {
		return result, err
	}
	if waitForExit(pid, opts.Polls, opts.PollInterval) {
		return result, cleanupAfterExit(pidPath, pid)
	}

	if err := signalProcess(pid, unix.SIGKILL); err != nil {
		return result, err
	}
	result.ForcedKill = true
	if !waitForExit(pid, opts.Polls, opts.PollInterval) {
		return result, services.Wrap(services.ErrProcessState, "daemonctl", "stop",
			fmt.Sprintf("pid %d survived SIGKILL", pid), nil)
	}
	return result, cleanupAfterExit(pidPath, pid)
}

// Restart stops the daemon if running, then starts it again.
func Restart(executablePath, pidPath string, opts LaunchOptions, stopOpts StopOptions, startTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := Stop(pidPath, stopOpts)
	if stopErr != nil && !errors.Is(stopErr, ErrNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := Start(executablePath, pidPath, opts, startTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

func signalProcess(pid int, sig unix.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal pid %d with %s: %w", pid, unix.SignalName(sig), err)
	}
	return nil
}

func waitForExit(pid, polls int, interval time.Duration) bool {
	for i := 0; i < polls; i++ {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(interval)
	}
	return !processAlive(pid)
}

func cleanupAfterExit(pidPath string, pid int) error {
	if err := removeStale(pidPath, pid); err != nil {
		return fmt.Errorf("remove pid file after stop: %w", err)
	}
	return nil
}
