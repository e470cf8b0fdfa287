package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"snapsense/internal/config"
	"snapsense/internal/daemonrun"
)

const defaultEditor = "nano"

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities (defaults to show)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, ctx)
		},
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigEditCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, ctx)
		},
	}
}

func showConfig(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	masked := *cfg
	masked.LLM.APIKey = maskSecret(cfg.LLM.APIKey)
	encoded, err := toml.Marshal(masked)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	out := cmd.OutOrStdout()
	if ctx.configExists {
		fmt.Fprintf(out, "# Config path: %s\n", ctx.configPath)
	} else {
		fmt.Fprintf(out, "# Config path: %s (not found; showing defaults)\n", ctx.configPath)
	}
	fmt.Fprint(out, string(encoded))
	return nil
}

// maskSecret keeps the last four characters of long secrets for recognition.
func maskSecret(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case len(value) <= 8:
		return "****"
	default:
		return "****" + value[len(value)-4:]
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTargetPath(targetPath, ctx.flagPath())
			if err != nil {
				return err
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key (or export SNAPSENSE_API_KEY) before running `snapsense start`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file (defaults to --config or the standard location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// resolveTargetPath picks --path, then the global --config, then the default location.
func resolveTargetPath(pathFlag, configFlag string) (string, error) {
	target := strings.TrimSpace(pathFlag)
	if target == "" {
		target = strings.TrimSpace(configFlag)
	}
	if target == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return defaultPath, nil
	}
	expanded, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return expanded, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var checkLLM bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			if err := cfg.ValidateCredentials(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
			if err := cfg.ValidateWatchDirectory(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
			if checkLLM {
				if err := daemonrun.NewNamingClient(cfg).HealthCheck(cmd.Context()); err != nil {
					return fmt.Errorf("naming service check failed: %w", err)
				}
				fmt.Fprintf(out, "Naming service reachable (model %s)\n", cfg.LLM.Model)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Also send a test request to the naming service")
	return cmd
}

func newConfigEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "edit",
		Short:       "Open the configuration file in $EDITOR",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTargetPath(ctx.flagPath(), "")
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); os.IsNotExist(err) {
				if err := config.CreateSample(target); err != nil {
					return fmt.Errorf("create sample config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s with defaults\n", target)
			} else if err != nil {
				return fmt.Errorf("check config path: %w", err)
			}

			editor := editorCommand(os.Getenv("EDITOR"))
			editCmd := exec.CommandContext(cmd.Context(), editor[0], append(editor[1:], target)...)
			editCmd.Stdin = cmd.InOrStdin()
			editCmd.Stdout = cmd.OutOrStdout()
			editCmd.Stderr = cmd.ErrOrStderr()
			if err := editCmd.Run(); err != nil {
				return fmt.Errorf("run editor %s: %w", filepath.Base(editor[0]), err)
			}
			return nil
		},
	}
}

// editorCommand splits $EDITOR so values like "code --wait" work.
func editorCommand(value string) []string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return []string{defaultEditor}
	}
	return fields
}
