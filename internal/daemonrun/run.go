package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"snapsense/internal/config"
	"snapsense/internal/daemonctl"
	"snapsense/internal/history"
	"snapsense/internal/intake"
	"snapsense/internal/logging"
	"snapsense/internal/organizer"
	"snapsense/internal/services/llm"
	"snapsense/internal/watcher"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Foreground mirrors log output to stdout in addition to the run log.
	Foreground bool
}

// Run starts the snapsense daemon runtime loop and blocks until SIGINT,
// SIGTERM, or cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}
	if err := cfg.ValidateWatchDirectory(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The instance lock comes before any log file so a refused daemon leaves
	// the running daemon's run log and snapsense.log pointer alone.
	instanceLock := flock.New(cfg.InstanceLockPath())
	locked, err := instanceLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		fmt.Fprintf(os.Stderr, "snapsense: another daemon holds %s; exiting\n", cfg.InstanceLockPath())
		return daemonctl.ErrAlreadyRunning
	}
	defer func() {
		if err := instanceLock.Unlock(); err != nil {
			fmt.Fprintf(os.Stderr, "snapsense: release instance lock: %v\n", err)
		}
	}()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("snapsense-%s.log", runID))
	outputs := []string{logPath}
	if opts.Foreground {
		outputs = append([]string{"stdout"}, outputs...)
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.CurrentLogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update snapsense.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "snapsense-*.log", Pointer: cfg.CurrentLogPath()},
	)

	pidPath := cfg.PIDFilePath()
	pid := os.Getpid()
	if err := daemonctl.ClaimPIDFile(pidPath, pid); err != nil {
		if errors.Is(err, daemonctl.ErrAlreadyRunning) {
			logger.Info("snapsense daemon already running; exiting", logging.Error(err))
		}
		return err
	}
	defer func() {
		if err := daemonctl.ReleasePIDFile(pidPath, pid); err != nil {
			logger.Warn("failed to remove pid file",
				logging.Error(err),
				logging.String(logging.FieldEventType, "pid_release_failed"),
				logging.String(logging.FieldErrorHint, "the next status or start call removes it"),
				logging.String(logging.FieldImpact, "stale pid file left behind"),
			)
		}
	}()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.HistoryDBPath())
		if err != nil {
			logging.WarnWithContext(logger, "rename history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
				logging.String(logging.FieldImpact, "renames are not journaled this run"),
			)
			store = nil
		} else {
			defer store.Close()
		}
	}

	pipeline := BuildPipeline(cfg, logger, store)
	w := watcher.New(watcher.Options{
		Directory:    cfg.Watch.ScanDirectory,
		ScanInterval: cfg.ScanInterval(),
		Eligible:     pipeline.Gate().Eligible,
	}, pipeline, logger)

	logger.Info("snapsense daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.Int("pid", pid),
		logging.String("directory", cfg.Watch.ScanDirectory),
		logging.String("prefix", cfg.Watch.ScreenshotPrefix),
		logging.Int("max_retries", cfg.Watch.MaxRetries),
		logging.String("model", cfg.LLM.Model),
		logging.Bool("history", store != nil),
		logging.String("log_path", logPath),
	)

	runErr := w.Run(signalCtx)
	logger.Info("snapsense daemon shutting down", logging.String(logging.FieldEventType, "daemon_stopped"))
	return runErr
}

// BuildPipeline wires the naming client, renamer, and optional journal into an
// intake pipeline.
func BuildPipeline(cfg *config.Config, logger *slog.Logger, store *history.Store) *intake.Pipeline {
	var opts []intake.Option
	if store != nil {
		opts = append(opts, intake.WithJournal(store))
	}
	return intake.NewPipeline(intake.SettingsFromConfig(cfg), NewNamingClient(cfg), organizer.New(logger), logger, opts...)
}

// NewNamingClient builds the naming service client.
func NewNamingClient(cfg *config.Config) *llm.Client {
	llmCfg := cfg.GetLLM()
	return llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
		MaxTokens:      llmCfg.MaxTokens,
	})
}

func ensureCurrentLogPointer(current, target string) error {
	if target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
