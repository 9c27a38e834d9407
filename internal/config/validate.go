package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateDetection(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateBot(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateTracking(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateInput(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if w := c.Capture.Window; len(w) != 0 {
		if len(w) != 4 {
			return errors.New("capture.window must be [x, y, width, height]")
		}
		if w[2] <= 0 || w[3] <= 0 {
			return errors.New("capture.window width and height must be positive")
		}
	}
	if c.Capture.Display < 0 {
		return errors.New("capture.display must not be negative")
	}
	if c.Capture.IntervalMS < 0 || c.Capture.RetryDelayMS < 0 {
		return errors.New("capture intervals must not be negative")
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.ModelPath == "" {
		return fmt.Errorf("detection.model_path is required (or set %s)", EnvModel)
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return errors.New("detection.min_confidence must be between 0 and 1")
	}
	if c.Detection.NMSThreshold <= 0 || c.Detection.NMSThreshold > 1 {
		return errors.New("detection.nms_threshold must be in (0, 1]")
	}
	if c.Detection.InputSize <= 0 || c.Detection.InputSize%32 != 0 {
		return errors.New("detection.input_size must be a positive multiple of 32")
	}
	if c.Detection.QueueSize < 1 || c.Detection.QueueSize > 2 {
		return errors.New("detection.queue_size must be 1 or 2")
	}
	return nil
}

func (c *Config) validateBot() error {
	if c.Bot.SettleDelayMS < 0 {
		return errors.New("bot.settle_delay_ms must not be negative")
	}
	if c.Bot.ReadyTimeoutSeconds < 0 {
		return errors.New("bot.ready_timeout_seconds must not be negative")
	}
	if c.Bot.ReadyPollMS <= 0 {
		return errors.New("bot.ready_poll_ms must be positive")
	}
	if c.Bot.StopTimeoutMS < 0 {
		return errors.New("bot.stop_timeout_ms must not be negative")
	}
	return nil
}

func (c *Config) validateInput() error {
	switch c.Input.Button {
	case "left", "right", "center":
	default:
		return fmt.Errorf("input.button %q must be left, right or center", c.Input.Button)
	}
	if c.Input.HoldMS < 0 {
		return errors.New("input.hold_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be auto, text or json", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a level", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateTracking() error {
	switch strings.ToLower(c.Tracking.Preset) {
	case "", "default", "sensitive":
	default:
		return fmt.Errorf("tracking.preset %q must be default or sensitive", c.Tracking.Preset)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}
	return nil
}
