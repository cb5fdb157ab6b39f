// Package config handles daemon configuration file management.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the config file inside the config directory
const FileName = "mpdd.toml"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the daemon configuration
type Config struct {
	MPD       MPDConfig       `toml:"mpd"`
	Core      CoreConfig      `toml:"core"`
	Audio     AudioConfig     `toml:"audio"`
	Local     LocalConfig     `toml:"local"`
	Stream    StreamConfig    `toml:"stream"`
	Playlists PlaylistsConfig `toml:"playlists"`
	HTTP      HTTPConfig      `toml:"http"`
	MPRIS     MPRISConfig     `toml:"mpris"`
	Logging   LoggingConfig   `toml:"logging"`
}

// MPDConfig controls the protocol server
type MPDConfig struct {
	Hostname string `toml:"hostname"`
	Port     int    `toml:"port"`

	// Password, when set, must be sent before most commands
	Password string `toml:"password"`

	MaxConnections int `toml:"max_connections"`

	// ConnectionTimeout in seconds for idle clients
	ConnectionTimeout int `toml:"connection_timeout"`

	// CommandBlacklist names commands refused with a system error
	CommandBlacklist []string `toml:"command_blacklist"`

	// DefaultPlaylistScheme picks the backend new stored playlists go to
	DefaultPlaylistScheme string `toml:"default_playlist_scheme"`
}

// CoreConfig contains tracklist and state settings
type CoreConfig struct {
	DataDir            string `toml:"data_dir"`
	MaxTracklistLength int    `toml:"max_tracklist_length"`

	// RestoreState reloads the tracklist, options and volume on start
	RestoreState bool `toml:"restore_state"`
}

// AudioConfig contains audio-related settings
type AudioConfig struct {
	// Output is "oto" for the sound card or "null" for a silent clock
	Output string `toml:"output"`

	SampleRate   int `toml:"sample_rate"`
	BufferSizeMs int `toml:"buffer_size_ms"`

	// MixerVolume is the initial volume 0-100, or -1 to leave it unknown
	MixerVolume int `toml:"mixer_volume"`
}

// LocalConfig controls the local files backend
type LocalConfig struct {
	Enabled            bool     `toml:"enabled"`
	MediaDirs          []string `toml:"media_dirs"`
	ExcludedExtensions []string `toml:"excluded_extensions"`
	ScanOnStart        bool     `toml:"scan_on_start"`
}

// StreamConfig controls the internet stream backend
type StreamConfig struct {
	Enabled bool     `toml:"enabled"`
	Schemes []string `toml:"schemes"`
}

// PlaylistsConfig controls the stored playlists backend
type PlaylistsConfig struct {
	Enabled bool `toml:"enabled"`

	// Database path, relative paths are resolved against core.data_dir
	Database string `toml:"database"`
}

// HTTPConfig controls the WebSocket endpoint
type HTTPConfig struct {
	Enabled  bool   `toml:"enabled"`
	Hostname string `toml:"hostname"`
	Port     int    `toml:"port"`
}

// MPRISConfig controls the desktop media session
type MPRISConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig contains log settings
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		MPD: MPDConfig{
			Hostname:              "127.0.0.1",
			Port:                  6600,
			MaxConnections:        20,
			ConnectionTimeout:     60,
			DefaultPlaylistScheme: "stored",
		},
		Core: CoreConfig{
			MaxTracklistLength: 10000,
			RestoreState:       true,
		},
		Audio: AudioConfig{
			Output:       "oto",
			SampleRate:   44100,
			BufferSizeMs: 100,
			MixerVolume:  100,
		},
		Local: LocalConfig{
			Enabled:            true,
			MediaDirs:          []string{},
			ExcludedExtensions: []string{".txt", ".jpg", ".jpeg", ".png", ".nfo", ".log", ".cue"},
			ScanOnStart:        true,
		},
		Stream: StreamConfig{
			Enabled: true,
			Schemes: []string{"http", "https"},
		},
		Playlists: PlaylistsConfig{
			Enabled:  true,
			Database: "playlists.db",
		},
		HTTP: HTTPConfig{
			Enabled:  false,
			Hostname: "127.0.0.1",
			Port:     6680,
		},
		MPRIS: MPRISConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the settings that would otherwise fail late
func (c *Config) Validate() error {
	var problems []string
	checkPort := func(name string, port int) {
		if port < 1 || port > 65535 {
			problems = append(problems, fmt.Sprintf("%s must be 1-65535, got %d", name, port))
		}
	}

	checkPort("mpd.port", c.MPD.Port)
	if c.HTTP.Enabled {
		checkPort("http.port", c.HTTP.Port)
	}
	if c.MPD.MaxConnections < 1 {
		problems = append(problems, "mpd.max_connections must be at least 1")
	}
	if c.MPD.ConnectionTimeout < 0 {
		problems = append(problems, "mpd.connection_timeout can not be negative")
	}
	if c.Audio.Output != "oto" && c.Audio.Output != "null" {
		problems = append(problems, fmt.Sprintf("audio.output must be oto or null, got %q", c.Audio.Output))
	}
	if c.Audio.MixerVolume < -1 || c.Audio.MixerVolume > 100 {
		problems = append(problems, fmt.Sprintf("audio.mixer_volume must be -1 or 0-100, got %d", c.Audio.MixerVolume))
	}
	if c.Core.MaxTracklistLength < 0 {
		problems = append(problems, "core.max_tracklist_length can not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, FileName),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk, writing the defaults on first
// run, then applies MPDD_* environment overrides
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = DefaultConfig()
		if err := m.Save(); err != nil {
			return err
		}
	} else {
		config := DefaultConfig() // Start with defaults
		if _, err := toml.DecodeFile(m.configPath, config); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		m.config = config
	}

	applyEnvOverrides(m.config)
	if m.config.Core.DataDir == "" {
		m.config.Core.DataDir = m.configDir
	}
	return m.config.Validate()
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Encode(m.config)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Encode renders a configuration as TOML
func Encode(c *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// AddMediaDir adds a directory to the local library
func (m *Manager) AddMediaDir(path string) error {
	for _, p := range m.config.Local.MediaDirs {
		if p == path {
			return nil // Already exists
		}
	}
	m.config.Local.MediaDirs = append(m.config.Local.MediaDirs, path)
	return m.Save()
}

// RemoveMediaDir removes a directory from the local library
func (m *Manager) RemoveMediaDir(path string) error {
	dirs := make([]string, 0, len(m.config.Local.MediaDirs))
	for _, p := range m.config.Local.MediaDirs {
		if p != path {
			dirs = append(dirs, p)
		}
	}
	m.config.Local.MediaDirs = dirs
	return m.Save()
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// MPD
	if v := os.Getenv("MPDD_MPD_HOSTNAME"); v != "" {
		cfg.MPD.Hostname = v
	}
	if v := os.Getenv("MPDD_MPD_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MPD.Port = i
		}
	}
	if v := os.Getenv("MPDD_MPD_PASSWORD"); v != "" {
		cfg.MPD.Password = v
	}

	// Core
	if v := os.Getenv("MPDD_DATA_DIR"); v != "" {
		cfg.Core.DataDir = v
	}

	// Audio
	if v := os.Getenv("MPDD_AUDIO_OUTPUT"); v != "" {
		cfg.Audio.Output = v
	}

	// Local
	if v := os.Getenv("MPDD_MEDIA_DIRS"); v != "" {
		cfg.Local.MediaDirs = filepath.SplitList(v)
	}

	// HTTP
	if v := os.Getenv("MPDD_HTTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = i
			cfg.HTTP.Enabled = true
		}
	}

	// Log
	if v := os.Getenv("MPDD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
