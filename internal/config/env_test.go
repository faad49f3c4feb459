package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nBROKER_API_TOKEN=\"abc123\"\nALREADY_SET=new\n\nBROKEN LINE\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ALREADY_SET", "old")
	os.Unsetenv("BROKER_API_TOKEN")
	t.Cleanup(func() { os.Unsetenv("BROKER_API_TOKEN") })

	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("BROKER_API_TOKEN"); got != "abc123" {
		t.Fatalf("expected quoted value stripped, got %q", got)
	}
	if got := os.Getenv("ALREADY_SET"); got != "old" {
		t.Fatalf("existing variables must win, got %q", got)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
}
