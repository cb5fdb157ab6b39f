package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("mpdd %s failed: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	media := t.TempDir()

	out := execute(t, "--config-dir", dir, "config")
	if !strings.Contains(out, "[mpd]") || !strings.Contains(out, filepath.Join(dir, config.FileName)) {
		t.Errorf("Unexpected config output:\n%s", out)
	}

	execute(t, "--config-dir", dir, "config", "add-dir", media)
	mgr := config.NewManager(dir)
	if err := mgr.Load(); err != nil {
		t.Fatal(err)
	}
	if dirs := mgr.Get().Local.MediaDirs; len(dirs) != 1 || dirs[0] != media {
		t.Errorf("Expected %s in media dirs, got %v", media, dirs)
	}

	execute(t, "--config-dir", dir, "config", "remove-dir", media)
	mgr = config.NewManager(dir)
	if err := mgr.Load(); err != nil {
		t.Fatal(err)
	}
	if dirs := mgr.Get().Local.MediaDirs; len(dirs) != 0 {
		t.Errorf("Expected no media dirs, got %v", dirs)
	}
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	if !strings.HasPrefix(out, "mpdd "+Version) {
		t.Errorf("Unexpected version output %q", out)
	}
}

func TestDataPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Core.DataDir = "/var/lib/mpdd"
	tests := map[string]string{
		"playlists.db":     "/var/lib/mpdd/playlists.db",
		"/tmp/other.db":    "/tmp/other.db",
		":memory:":         ":memory:",
		"sub/playlists.db": "/var/lib/mpdd/sub/playlists.db",
	}
	for in, want := range tests {
		if got := dataPath(cfg, in); got != filepath.FromSlash(want) {
			t.Errorf("dataPath(%q) = %q, expected %q", in, got, want)
		}
	}
}
