package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/teslashibe/go-angler/pkg/tracking"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
}

// Capture selects the screen area to watch.
type Capture struct {
	// Window is the outer game window as [x, y, width, height]. Empty means
	// the whole display.
	Window       []int `toml:"window"`
	Display      int   `toml:"display"`
	Crop         bool  `toml:"crop"`
	IntervalMS   int   `toml:"interval_ms"`
	RetryDelayMS int   `toml:"retry_delay_ms"`
}

// Detection configures the bobber model.
type Detection struct {
	ModelPath     string  `toml:"model_path"`
	MinConfidence float64 `toml:"min_confidence"`
	NMSThreshold  float64 `toml:"nms_threshold"`
	InputSize     int     `toml:"input_size"`
	ClassID       int     `toml:"class_id"`
	QueueSize     int     `toml:"queue_size"`
}

// Bot contains controller timing.
type Bot struct {
	SettleDelayMS       int `toml:"settle_delay_ms"`
	ReadyTimeoutSeconds int `toml:"ready_timeout_seconds"`
	ReadyPollMS         int `toml:"ready_poll_ms"`
	StopTimeoutMS       int `toml:"stop_timeout_ms"`
}

// Tracking selects the strike thresholds. Zero fields take the preset value.
type Tracking struct {
	Preset     string `toml:"preset"`
	StableMax  int    `toml:"stable_max"`
	StrikeMinX int    `toml:"strike_min_x"`
	StrikeMinY int    `toml:"strike_min_y"`
	StrikeMaxX int    `toml:"strike_max_x"`
	StrikeMaxY int    `toml:"strike_max_y"`
}

// Input configures the mouse backend.
type Input struct {
	Button string `toml:"button"`
	HoldMS int    `toml:"hold_ms"`
	DryRun bool   `toml:"dry_run"`
	// Focus moves the pointer to the centre of the capture area before the
	// first cast so clicks land in the game.
	Focus bool `toml:"focus"`
}

// Dashboard configures the debug web UI.
type Dashboard struct {
	Enabled   bool   `toml:"enabled"`
	Bind      string `toml:"bind"`
	CameraFPS int    `toml:"camera_fps"`
	Preview   bool   `toml:"preview"`
}

// Journal configures the catch journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// RecordPoints also stores every tracked bobber position.
	RecordPoints bool `toml:"record_points"`
}

// Logging contains configuration for log output.
type Logging struct {
	// Format is auto, text or json.
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the angler.
//
// Configuration sections by subsystem:
//   - Paths: state directory for the lock file and journal
//   - Capture: screen area and capture pacing
//   - Detection: ONNX model and confidence filtering
//   - Bot: settle delay and readiness handshake
//   - Tracking: stabilization and strike thresholds
//   - Input: mouse button and dry-run mode
//   - Dashboard: debug web UI and preview window
//   - Journal: sqlite catch journal
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Capture   Capture   `toml:"capture"`
	Detection Detection `toml:"detection"`
	Bot       Bot       `toml:"bot"`
	Tracking  Tracking  `toml:"tracking"`
	Input     Input     `toml:"input"`
	Dashboard Dashboard `toml:"dashboard"`
	Journal   Journal   `toml:"journal"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/angler/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("angler.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "angler.lock")
}

// WindowRect returns the configured game window, or an empty rectangle.
func (c *Config) WindowRect() image.Rectangle {
	w := c.Capture.Window
	if len(w) != 4 {
		return image.Rectangle{}
	}
	return image.Rect(w[0], w[1], w[0]+w[2], w[1]+w[3])
}

// Thresholds returns the strike thresholds: the preset with any non-zero
// field overriding it.
func (c *Config) Thresholds() tracking.Config {
	th := tracking.DefaultConfig()
	if strings.EqualFold(c.Tracking.Preset, "sensitive") {
		th = tracking.SensitiveConfig()
	}
	override := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	override(&th.StableMax, c.Tracking.StableMax)
	override(&th.StrikeMinX, c.Tracking.StrikeMinX)
	override(&th.StrikeMinY, c.Tracking.StrikeMinY)
	override(&th.StrikeMaxX, c.Tracking.StrikeMaxX)
	override(&th.StrikeMaxY, c.Tracking.StrikeMaxY)
	return th
}

// Durations converted from the millisecond fields.

func (c *Config) SettleDelay() time.Duration { return ms(c.Bot.SettleDelayMS) }
func (c *Config) ReadyPoll() time.Duration   { return ms(c.Bot.ReadyPollMS) }
func (c *Config) StopTimeout() time.Duration { return ms(c.Bot.StopTimeoutMS) }
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Bot.ReadyTimeoutSeconds) * time.Second
}
func (c *Config) CaptureInterval() time.Duration { return ms(c.Capture.IntervalMS) }
func (c *Config) RetryDelay() time.Duration      { return ms(c.Capture.RetryDelayMS) }
func (c *Config) Hold() time.Duration            { return ms(c.Input.HoldMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
