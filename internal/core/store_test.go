package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreLoadSaveRoundtrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tracklist_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)
	do(t, c, func(ctx context.Context) {
		c.Tracklist.SetRepeat(true)
		c.Tracklist.Remove([]int{1})
		c.Playback.Play(ctx, c.Tracklist.At(1))
	})
	c.Mixer.SetVolume(40)

	store := NewStore(tmpDir, c, c.logger)
	if err := store.Save(context.Background()); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "tracklist.json")); os.IsNotExist(err) {
		t.Fatal("Tracklist file was not created")
	}

	c2, _ := newTestCore(t, 3)
	store2 := NewStore(tmpDir, c2, c2.logger)
	if err := store2.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	do(t, c2, func(ctx context.Context) {
		got := uris(c2.Tracklist.TlTracks())
		if !equalStrings(got, []string{"x:2", "x:3"}) {
			t.Errorf("Expected x:2 x:3, got %v", got)
		}
		if !c2.Tracklist.Options().Repeat {
			t.Error("Expected repeat to be restored")
		}
		if cur := c2.Playback.Current(); cur == nil || cur.TLID != 3 {
			t.Errorf("Expected current tlid 3, got %v", cur)
		}
		if c2.Playback.State() != StateStopped {
			t.Errorf("Restored playback should be stopped, got %s", c2.Playback.State())
		}

		// New tracks never reuse a saved tlid
		added, _ := c2.Tracklist.Add(testTracks(1), -1)
		if added[0].TLID != 4 {
			t.Errorf("Expected next tlid 4, got %d", added[0].TLID)
		}
	})
	if v := c2.Mixer.Volume(); v != 40 {
		t.Errorf("Expected volume 40, got %d", v)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	c, _ := newTestCore(t, 0)
	store := NewStore(t.TempDir(), c, c.logger)

	if err := store.Load(context.Background()); err != nil {
		t.Errorf("Missing file should not be an error: %v", err)
	}
}

func TestStoreLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tracklist.json"), []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}

	c, _ := newTestCore(t, 0)
	if err := NewStore(dir, c, c.logger).Load(context.Background()); err == nil {
		t.Error("Expected an error for a corrupt file")
	}
}

func TestStoreAutoSave(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestCore(t, 2)
	store := NewStore(dir, c, c.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.AutoSave(ctx, 10*time.Millisecond)

	// Give AutoSave time to subscribe
	time.Sleep(20 * time.Millisecond)
	addTracks(t, c, 2)

	waitFor(t, "tracklist file", func() bool {
		_, err := os.Stat(store.FilePath())
		return err == nil
	})
}
