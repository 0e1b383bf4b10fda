package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audiopipe/internal/config"
	"audiopipe/internal/testsupport"
)

const demucsStub = `out="$6"
input="$7"
base=$(basename "$input")
base="${base%.*}"
mkdir -p "$out/$2/$base"
for t in drums bass other vocals; do
  echo stem > "$out/$2/$base/$t.wav"
done`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, stages ...string) *cliTestEnv {
	t.Helper()

	if len(stages) == 0 {
		stages = []string{config.StageSeparation}
	}
	cfg := testsupport.NewConfig(t, testsupport.WithStages(stages...))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg.Separation.Binary = testsupport.StubBinary(t, filepath.Join(base, "bin"), "demucs", demucsStub)

	configPath := filepath.Join(homeDir, ".config", "audiopipe", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	quoted := make([]string, 0, len(cfg.Pipeline.Stages))
	for _, stage := range cfg.Pipeline.Stages {
		quoted = append(quoted, fmt.Sprintf("%q", stage))
	}
	content := fmt.Sprintf(
		"[paths]\noutput_dir = %q\nlog_dir = %q\n\n[pipeline]\nstages = [%s]\npersist_failed_manifests = %t\n\n[separation]\nbackend = %q\nmodel = %q\nbinary = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		strings.Join(quoted, ", "),
		cfg.Pipeline.PersistFailedManifests,
		cfg.Separation.Backend,
		cfg.Separation.Model,
		cfg.Separation.Binary,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
