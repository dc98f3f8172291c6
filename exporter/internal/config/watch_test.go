package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("host: first\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c *Config) { changes <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("protocol: ftp\n"), 0o600); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	if err := os.WriteFile(path, []byte("host: second\n"), 0o600); err != nil {
		t.Fatalf("write valid: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Host == "second" {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("Watch: %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_ReloadsRenameSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("host: first\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() { _ = Watch(ctx, path, func(c *Config) { changes <- c }) }()

	time.Sleep(100 * time.Millisecond)

	// Two saves in a row: the second checks the watch survives the first.
	for _, host := range []string{"second", "third"} {
		tmp := filepath.Join(dir, "config.yaml.tmp")
		if err := os.WriteFile(tmp, []byte("host: "+host+"\n"), 0o600); err != nil {
			t.Fatalf("write tmp: %v", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("rename: %v", err)
		}
		waitForHost(t, changes, host)
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("host: first\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() { _ = Watch(ctx, path, func(c *Config) { changes <- c }) }()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("host: other\n"), 0o600); err != nil {
		t.Fatalf("write sibling: %v", err)
	}
	select {
	case c := <-changes:
		t.Fatalf("unexpected reload: host %q", c.Host)
	case <-time.After(300 * time.Millisecond):
	}
}

func waitForHost(t *testing.T, changes <-chan *Config, host string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Host == host {
				return
			}
		case <-deadline:
			t.Fatalf("no reload with host %q observed", host)
		}
	}
}
