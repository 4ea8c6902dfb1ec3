package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		DefaultSession: "work",
		Backend:        Backend{BaseURL: "https://api.example.edu", Token: "tok"},
		Poll:           Poll{ListIntervalMS: 5000, MessageIntervalMS: 1500},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Backend.BaseURL != "https://api.example.edu" {
		t.Errorf("BaseURL = %q, want the saved value", loaded.Backend.BaseURL)
	}
	if loaded.ListInterval() != 5*time.Second {
		t.Errorf("ListInterval() = %v, want 5s", loaded.ListInterval())
	}
	if loaded.MessageInterval() != 1500*time.Millisecond {
		t.Errorf("MessageInterval() = %v, want 1.5s", loaded.MessageInterval())
	}
}

func TestIntervalDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.ListInterval() != DefaultListPollInterval {
		t.Errorf("ListInterval() = %v, want default %v", cfg.ListInterval(), DefaultListPollInterval)
	}
	if cfg.MessageInterval() != DefaultMessagePollInterval {
		t.Errorf("MessageInterval() = %v, want default %v", cfg.MessageInterval(), DefaultMessagePollInterval)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
