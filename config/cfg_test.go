package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if cfg.Builder.AllowedFileEndAudio != 1500*time.Millisecond {
		t.Errorf("AllowedFileEndAudio = %v, want 1.5s", cfg.Builder.AllowedFileEndAudio)
	}
	if cfg.Builder.Generator != "" {
		t.Errorf("Generator = %q, want empty", cfg.Builder.Generator)
	}
	if cfg.Source.FFProbe != "ffprobe" {
		t.Errorf("FFProbe = %q, want ffprobe", cfg.Source.FFProbe)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" {
		t.Errorf("Console level = %q, want normal", cfg.Logging.ConsoleLogger.Level)
	}
	if cfg.Logging.FileLogger.Level != "none" {
		t.Errorf("File level = %q, want none", cfg.Logging.FileLogger.Level)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `version: 1
builder:
  allowed_file_end_audio: 250ms
  generator: "merger 2.0"
source:
  ffprobe: /usr/local/bin/ffprobe
logging:
  console:
    level: debug
  file:
    level: debug
    destination: `+filepath.ToSlash(filepath.Join(dir, "logs", "run.log"))+`
    mode: append
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Builder.AllowedFileEndAudio != 250*time.Millisecond {
		t.Errorf("AllowedFileEndAudio = %v, want 250ms", cfg.Builder.AllowedFileEndAudio)
	}
	if cfg.Builder.Generator != "merger 2.0" {
		t.Errorf("Generator = %q", cfg.Builder.Generator)
	}
	if cfg.Source.FFProbe != "/usr/local/bin/ffprobe" {
		t.Errorf("FFProbe = %q", cfg.Source.FFProbe)
	}
	if cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("Mode = %q, want append", cfg.Logging.FileLogger.Mode)
	}
	// values missing from the file come from defaults
	if cfg.Reporting.Destination == "" {
		t.Error("Reporting destination should keep default value")
	}
	// sanitizer makes sure log directory exists
	if _, err := os.Stat(filepath.Join(dir, "logs")); err != nil {
		t.Errorf("log directory was not created: %v", err)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "invalid yaml",
			content: `version: 1
builder:
  generator: x
  invalid indent
`,
		},
		{
			name: "unknown field",
			content: `version: 1
unknown_field: value
`,
		},
		{
			name:    "unsupported version",
			content: "version: 2\n",
		},
		{
			name: "negative allowance",
			content: `version: 1
builder:
  allowed_file_end_audio: -1s
`,
		},
		{
			name: "bad duration",
			content: `version: 1
builder:
  allowed_file_end_audio: soon
`,
		},
		{
			name: "empty ffprobe",
			content: `version: 1
source:
  ffprobe: ""
`,
		},
		{
			name: "bad log level",
			content: `version: 1
logging:
  console:
    level: loud
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Builder.AllowedFileEndAudio = 3 * time.Second
	cfg.Builder.Generator = "gen"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if !strings.Contains(string(data), "allowed_file_end_audio: 3s") {
		t.Errorf("Dump() output does not have duration as string:\n%s", data)
	}

	cfg2, err := unmarshalConfig(data, &Config{}, true)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Builder != cfg.Builder {
		t.Errorf("Builder after dump/load = %+v, want %+v", cfg2.Builder, cfg.Builder)
	}
}

func TestUnmarshalConfig_WrapsValidationError(t *testing.T) {
	_, err := unmarshalConfig([]byte("version: 99\n"), &Config{}, true)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validat") {
		t.Errorf("expected error to mention validation, got: %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("expected wrapped error, got bare error: %v", err)
	}
}
