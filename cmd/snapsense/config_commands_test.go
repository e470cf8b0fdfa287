package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snapsense/internal/config"
	"snapsense/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration to "+target) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigInitHonorsConfigFlag(t *testing.T) {
	target := filepath.Join(t.TempDir(), "snapsense.toml")
	if _, err := runCLI(t, "--config", target, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config at --config path: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Config path: "+env.configPath) || !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "Warning") {
		t.Fatalf("unexpected warning:\n%s", out)
	}
}

func TestConfigValidateWarnsOnMissingKey(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIKey(""))

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Warning") || !strings.Contains(out, "llm.api_key") {
		t.Fatalf("expected credential warning:\n%s", out)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Watch.RetryBackoff = "sometimes"
	writeTestConfig(t, env.configPath, env.cfg)

	if _, err := env.run(t, "config", "validate"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigShowMasksAPIKey(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIKey("sk-or-abcdefgh12345678"))

	for _, args := range [][]string{{"config"}, {"config", "show"}} {
		out, err := env.run(t, args...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if strings.Contains(out, "sk-or-abcdefgh12345678") {
			t.Fatalf("%v leaked the api key:\n%s", args, out)
		}
		if !strings.Contains(out, "****5678") || !strings.Contains(out, "scan_directory") {
			t.Fatalf("%v unexpected output:\n%s", args, out)
		}
	}
}

func TestConfigEditCreatesFileAndRunsEditor(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("EDITOR", "true")

	out, err := runCLI(t, "--config", target, "config", "edit")
	if err != nil {
		t.Fatalf("config edit: %v", err)
	}
	if !strings.Contains(out, "Created "+target) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("created config does not load: %v", err)
	}
}

func TestEditorCommandDefaultsToNano(t *testing.T) {
	if got := editorCommand("  "); len(got) != 1 || got[0] != "nano" {
		t.Fatalf("editorCommand(blank) = %v", got)
	}
	if got := editorCommand("code --wait"); len(got) != 2 || got[0] != "code" || got[1] != "--wait" {
		t.Fatalf("editorCommand(code --wait) = %v", got)
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"short":            "****",
		"sk-1234567890abc": "****0abc",
	}
	for in, want := range cases {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfigValidateChecksNamingService(t *testing.T) {
	server := namingServer(t, `{"ok":true}`)
	env := setupCLITestEnv(t, testsupport.WithLLMBaseURL(server.URL))

	out, err := env.run(t, "config", "validate", "--check-llm")
	if err != nil {
		t.Fatalf("config validate --check-llm: %v", err)
	}
	if !strings.Contains(out, "Naming service reachable") {
		t.Fatalf("expected reachability line:\n%s", out)
	}

	failing := namingServer(t, "not json")
	env = setupCLITestEnv(t, testsupport.WithLLMBaseURL(failing.URL))
	if _, err := env.run(t, "config", "validate", "--check-llm"); err == nil {
		t.Fatal("expected failure for unusable health response")
	}
}
