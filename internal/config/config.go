package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stillcap/stillcap/internal/logger"
)

// Config holds the engine settings.
type Config struct {
	LogLevel   string `json:"log_level" yaml:"log_level"`
	ServerPort int    `json:"server_port" yaml:"server_port"`

	// Display selects the X display; empty uses $DISPLAY.
	Display string `json:"display" yaml:"display"`

	Capture CaptureConfig `json:"capture" yaml:"capture"`
}

// CaptureConfig controls snapshot behavior. Timeouts are in milliseconds
// so the YAML stays plain integers.
type CaptureConfig struct {
	// MinWindowSize is the shortest side, in pixels, below which a window
	// is not worth capturing.
	MinWindowSize int `json:"min_window_size" yaml:"min_window_size"`

	// IncludeCursor composites the pointer into desktop and window output.
	IncludeCursor bool `json:"include_cursor" yaml:"include_cursor"`

	// Workers bounds the number of concurrent window captures.
	Workers int `json:"workers" yaml:"workers"`

	// WindowTimeoutMS abandons a single window capture that runs longer.
	WindowTimeoutMS int `json:"window_timeout_ms" yaml:"window_timeout_ms"`

	// SessionTimeoutMS is the watchdog ceiling for a whole capture pass.
	SessionTimeoutMS int `json:"session_timeout_ms" yaml:"session_timeout_ms"`
}

// WindowTimeout returns the per-window capture deadline.
func (c CaptureConfig) WindowTimeout() time.Duration {
	return time.Duration(c.WindowTimeoutMS) * time.Millisecond
}

// SessionTimeout returns the watchdog ceiling for a capture pass.
func (c CaptureConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMS) * time.Millisecond
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a configuration manager backed by the given file,
// or by ~/.config/stillcap/config.yaml when empty. A missing file is
// created with defaults.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "stillcap")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = getDefaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// getDefaults returns default configuration
func getDefaults() *Config {
	return &Config{
		LogLevel:   "info",
		ServerPort: 8264,
		Capture: CaptureConfig{
			MinWindowSize:    200,
			IncludeCursor:    true,
			Workers:          4,
			WindowTimeoutMS:  2000,
			SessionTimeoutMS: 5000,
		},
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	normalize(&cfg)

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// normalize fills in values a hand-edited file may have zeroed out.
func normalize(cfg *Config) {
	def := getDefaults()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.ServerPort <= 0 {
		cfg.ServerPort = def.ServerPort
	}
	if cfg.Capture.MinWindowSize < 0 {
		cfg.Capture.MinWindowSize = def.Capture.MinWindowSize
	}
	if cfg.Capture.Workers <= 0 {
		cfg.Capture.Workers = def.Capture.Workers
	}
	if cfg.Capture.WindowTimeoutMS <= 0 {
		cfg.Capture.WindowTimeoutMS = def.Capture.WindowTimeoutMS
	}
	if cfg.Capture.SessionTimeoutMS <= 0 {
		cfg.Capture.SessionTimeoutMS = def.Capture.SessionTimeoutMS
	}
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return getDefaults()
	}

	cfg := *m.config
	return &cfg
}

// Path returns the backing file path.
func (m *Manager) Path() string {
	return m.configPath
}

// Save writes the current configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = getDefaults()
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	return nil
}

// Update replaces the configuration and persists it.
func (m *Manager) Update(cfg *Config) error {
	normalize(cfg)
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}
