package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment overrides.
const (
	EnvModel    = "ANGLER_MODEL"
	EnvWindow   = "ANGLER_WINDOW"
	EnvLogLevel = "ANGLER_LOG_LEVEL"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeInput()
	c.normalizeDashboard()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvModel); ok && strings.TrimSpace(v) != "" {
		c.Detection.ModelPath = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvWindow); ok && strings.TrimSpace(v) != "" {
		w, err := ParseWindow(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWindow, err)
		}
		c.Capture.Window = w
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = strings.TrimSpace(v)
	}
	return nil
}

// ParseWindow parses "x,y,width,height".
func ParseWindow(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("window %q: want x,y,width,height", s)
	}
	out := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = ExpandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Detection.ModelPath, err = ExpandPath(strings.TrimSpace(c.Detection.ModelPath)); err != nil {
		return fmt.Errorf("detection.model_path: %w", err)
	}
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = c.Paths.StateDir + "/journal.db"
	}
	if c.Journal.Path, err = ExpandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeInput() {
	c.Input.Button = strings.ToLower(strings.TrimSpace(c.Input.Button))
	if c.Input.Button == "" {
		c.Input.Button = defaultInputButton
	}
}

func (c *Config) normalizeDashboard() {
	c.Dashboard.Bind = strings.TrimSpace(c.Dashboard.Bind)
	if c.Dashboard.Bind == "" {
		c.Dashboard.Bind = defaultDashboardBind
	}
	if c.Dashboard.CameraFPS <= 0 {
		c.Dashboard.CameraFPS = defaultCameraFPS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
