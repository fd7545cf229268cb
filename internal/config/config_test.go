package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"BFJIT_TAPE_SIZE", "BFJIT_CODE_SIZE", "BFJIT_DEBUG", "BFJIT_CACHE_DIR", "NO_COLOR"} {
		if v, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, v) })
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bfjit.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "tape_size = 65536\ndebug = true\ncache_dir = \"/tmp/bf\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.TapeSize = 65536
	want.Debug = true
	want.CacheDir = "/tmp/bf"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "tape_size = 65536\n")
	t.Setenv("BFJIT_TAPE_SIZE", "100")
	t.Setenv("BFJIT_DEBUG", "1")
	t.Setenv("NO_COLOR", "1")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TapeSize != 100 || !cfg.Debug || cfg.Color {
		t.Errorf("environment not applied: %+v", cfg)
	}
}

func TestMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("missing explicit config file accepted")
	}
}

func TestUnknownKeys(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "tape = 1\n"))
	if err == nil || !strings.Contains(err.Error(), "tape") {
		t.Errorf("unknown key not reported: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		cfg Config
		ok  bool
	}{
		{Default(), true},
		{Config{TapeSize: 1, CodeSize: 1}, true},
		{Config{TapeSize: 0, CodeSize: 1}, false},
		{Config{TapeSize: 1, CodeSize: 0}, false},
		{Config{TapeSize: MaxTapeSize + 1, CodeSize: 1}, false},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("Validate(%+v) = %v", tt.cfg, err)
		}
	}
}

func TestUnknownKeySuggestion(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "tape_sise = 1\nzzzzzzzzzz = 2\n"))
	if err == nil {
		t.Fatal("unknown keys accepted")
	}
	msg := err.Error()
	if !strings.Contains(msg, "tape_sise (did you mean tape_size?)") {
		t.Errorf("missing suggestion in %q", msg)
	}
	if strings.Contains(msg, "zzzzzzzzzz (did you mean") {
		t.Errorf("unexpected suggestion in %q", msg)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"debug", "debug", 0},
		{"color", "colour", 1},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestKnownKeys(t *testing.T) {
	want := []string{"tape_size", "code_size", "debug", "cache_dir", "color"}
	if diff := cmp.Diff(want, knownKeys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvReadOnEveryLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "")
	t.Setenv("BFJIT_TAPE_SIZE", "100")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TapeSize != 100 {
		t.Fatalf("TapeSize = %d, want 100", cfg.TapeSize)
	}
	t.Setenv("BFJIT_TAPE_SIZE", "200")
	t.Setenv("BFJIT_CACHE_DIR", "/tmp/bfcache")
	if cfg, err = Load(path); err != nil {
		t.Fatal(err)
	}
	if cfg.TapeSize != 200 || cfg.CacheDir != "/tmp/bfcache" {
		t.Errorf("second Load missed environment changes: %+v", cfg)
	}
}

func TestLoadDefersValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("BFJIT_TAPE_SIZE", "0")
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load validated before flags could apply: %v", err)
	}
	if cfg.TapeSize != 0 || cfg.Validate() == nil {
		t.Errorf("tape size 0 not rejected by Validate: %+v", cfg)
	}
	cfg.TapeSize = 100
	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config rejected: %v", err)
	}
}
