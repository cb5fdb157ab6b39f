package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/mpdd/internal/audio"
	"github.com/austinkregel/local-media/mpdd/internal/auth"
	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/backend/local"
	"github.com/austinkregel/local-media/mpdd/internal/backend/stored"
	"github.com/austinkregel/local-media/mpdd/internal/backend/stream"
	"github.com/austinkregel/local-media/mpdd/internal/config"
	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/logging"
	"github.com/austinkregel/local-media/mpdd/internal/media"
	"github.com/austinkregel/local-media/mpdd/internal/mpd"
	"github.com/austinkregel/local-media/mpdd/internal/web"
)

// autoSaveDelay batches tracklist writes
const autoSaveDelay = 2 * time.Second

// renderer is what the backends play into and the mixer turns up and down
type renderer interface {
	backend.Renderer
	core.VolumeSink
	SetOnEndOfStream(fn func(stream uint64))
	CurrentStream() uint64
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(os.Stderr, level)
	if err != nil {
		return err
	}
	logger.Info("mpdd starting", "version", Version, "config", mgr.GetPath())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return serve(ctx, cfg, logger)
}

func newRenderer(cfg *config.Config, logger *log.Logger) (renderer, error) {
	if testMode || cfg.Audio.Output == "null" {
		logger.Info("using silent audio output")
		return audio.NewNullRenderer(logger), nil
	}
	r, err := audio.NewRenderer(cfg.Audio.SampleRate, cfg.Audio.BufferSizeMs, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio output: %w", err)
	}
	return r, nil
}

// dataPath resolves a path relative to the data dir
func dataPath(cfg *config.Config, path string) string {
	if path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.Core.DataDir, path)
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r, err := newRenderer(cfg, logger.WithPrefix("audio"))
	if err != nil {
		return err
	}
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	var backends []backend.Backend
	if cfg.Local.Enabled {
		backends = append(backends, local.New(local.Config{
			MediaDirs:          cfg.Local.MediaDirs,
			ExcludedExtensions: cfg.Local.ExcludedExtensions,
		}, r, logger.WithPrefix("local")))
	}
	if cfg.Stream.Enabled {
		backends = append(backends, stream.New(cfg.Stream.Schemes, r))
	}
	if cfg.Playlists.Enabled {
		playlists, err := stored.Open(dataPath(cfg, cfg.Playlists.Database), logger.WithPrefix("playlists"))
		if err != nil {
			return fmt.Errorf("failed to open playlists: %w", err)
		}
		defer playlists.Close()
		backends = append(backends, playlists)
	}
	registry, err := backend.NewRegistry(backends...)
	if err != nil {
		return err
	}

	c := core.New(registry, core.Config{
		MaxTracklistLength: cfg.Core.MaxTracklistLength,
		Volume:             cfg.Audio.MixerVolume,
		VolumeSink:         r,
	}, logger.WithPrefix("core"))
	r.SetOnEndOfStream(c.EndOfStreamHandler(r.CurrentStream))

	// the executor outlives the servers so the final save can still use it
	coreCtx, stopCore := context.WithCancel(context.Background())
	defer stopCore()
	go c.Run(coreCtx)

	var wg sync.WaitGroup
	run := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Error("component failed", "component", name, "err", err)
			}
		}()
	}

	if cfg.Core.RestoreState {
		store := core.NewStore(cfg.Core.DataDir, c, logger.WithPrefix("store"))
		if err := store.Load(ctx); err != nil {
			logger.Warn("failed to restore tracklist", "err", err)
		}
		run("store", func(ctx context.Context) error {
			store.AutoSave(ctx, autoSaveDelay)
			return nil
		})
		defer func() {
			if err := store.Save(context.Background()); err != nil {
				logger.Warn("failed to save tracklist", "err", err)
			}
		}()
	}

	updates := mpd.NewUpdateJobs()
	if cfg.Local.Enabled && cfg.Local.ScanOnStart {
		updates.Start(func() {
			if err := c.Library.Refresh(ctx, ""); err != nil {
				logger.Warn("initial library scan failed", "err", err)
			}
		})
	}

	timeout := time.Duration(cfg.MPD.ConnectionTimeout) * time.Second
	mpdServer := mpd.NewServer(c, mpd.ServerConfig{
		Options: mpd.Options{
			Auth:                  auth.NewManager(cfg.MPD.Password),
			CommandBlacklist:      cfg.MPD.CommandBlacklist,
			DefaultPlaylistScheme: cfg.MPD.DefaultPlaylistScheme,
			Updates:               updates,
		},
		MaxConnections:    cfg.MPD.MaxConnections,
		ConnectionTimeout: timeout,
	}, logger.WithPrefix("mpd"))
	if err := mpdServer.Listen(net.JoinHostPort(cfg.MPD.Hostname, strconv.Itoa(cfg.MPD.Port))); err != nil {
		return err
	}
	run("mpd", mpdServer.Serve)

	if cfg.HTTP.Enabled {
		webServer := web.NewServer(c, mpdServer, timeout, nil, logger.WithPrefix("http"))
		if err := webServer.Listen(net.JoinHostPort(cfg.HTTP.Hostname, strconv.Itoa(cfg.HTTP.Port))); err != nil {
			cancel()
			wg.Wait()
			return err
		}
		run("http", webServer.Serve)
	}

	if cfg.MPRIS.Enabled && !testMode {
		session, err := media.NewSession("mpdd", registry.URISchemes())
		if err != nil {
			logger.Warn("continuing without desktop media session", "err", err)
		} else {
			defer session.Close()
			bridge := media.NewBridge(c, session, logger.WithPrefix("mpris"))
			run("mpris", bridge.Run)
		}
	}

	<-ctx.Done()
	wg.Wait()

	if err := c.Do(context.Background(), func(ctx context.Context) error {
		c.Playback.Stop(ctx, false)
		return nil
	}); err != nil {
		logger.Warn("failed to stop playback", "err", err)
	}
	logger.Info("mpdd stopped")
	return nil
}
