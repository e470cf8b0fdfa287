package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"snapsense/internal/config"
	"snapsense/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the snapsense daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := preflightDaemon(cfg); err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Start(exe, cfg.PIDFilePath(), daemonLaunchOptions(ctx, cfg), daemonctl.DefaultStartTimeout)
			if err != nil {
				return err
			}
			printStartResult(cmd.OutOrStdout(), result, cfg)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the snapsense daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cfg.PIDFilePath(), daemonctl.DefaultStopOptions())
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, "SnapSense is not running")
				return nil
			}
			if err != nil {
				return err
			}
			printStopResult(stdout, result)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := daemonctl.Status(cfg.PIDFilePath())
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range statusLines(status, cfg, ctx.configPath, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the snapsense daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := preflightDaemon(cfg); err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				exe,
				cfg.PIDFilePath(),
				daemonLaunchOptions(ctx, cfg),
				daemonctl.DefaultStopOptions(),
				daemonctl.DefaultStartTimeout,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				printStopResult(stdout, result.Stop)
			}
			printStartResult(stdout, result.Start, cfg)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

// preflightDaemon reports configuration problems in the foreground before a
// detached daemon could swallow them.
func preflightDaemon(cfg *config.Config) error {
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}
	return cfg.ValidateWatchDirectory()
}

func printStartResult(out io.Writer, result daemonctl.StartResult, cfg *config.Config) {
	switch result.State {
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(out, "SnapSense is already running (pid %d)\n", result.PID)
	default:
		fmt.Fprintf(out, "SnapSense started (pid %d)\n", result.PID)
		fmt.Fprintf(out, "Watching %s for %s* screenshots\n", cfg.Watch.ScanDirectory, cfg.Watch.ScreenshotPrefix)
	}
}

func printStopResult(out io.Writer, result daemonctl.StopResult) {
	if result.ForcedKill {
		fmt.Fprintf(out, "SnapSense did not exit in time; killed (pid %d)\n", result.PID)
		return
	}
	fmt.Fprintf(out, "SnapSense stopped (pid %d)\n", result.PID)
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, cfg *config.Config) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogPath: cfg.DaemonLogPath()}
	if path := strings.TrimSpace(ctx.launchConfigPath()); path != "" {
		opts.ConfigPath = path
	}
	return opts
}
