package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"subalign/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAligner(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"workers.count":        c.Workers.Count,
		"workers.queue_size":   c.Workers.QueueSize,
		"server.max_upload_mb": c.Server.MaxUploadMB,
	}); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q must be host:port: %w", c.Server.Bind, err)
	}
	return nil
}

func (c *Config) validateAligner() error {
	if len(c.Aligner.Launcher) == 0 {
		return errors.New("aligner.launcher must name at least the python executable")
	}
	switch c.Aligner.Device {
	case deviceCPU, deviceCUDA:
	default:
		return fmt.Errorf("aligner.device must be %q or %q, got %q", deviceCPU, deviceCUDA, c.Aligner.Device)
	}
	if c.Aligner.DefaultModel == "" {
		return errors.New("aligner.default_model must be set")
	}
	if _, err := language.Normalize(c.Aligner.DefaultLanguage); err != nil {
		return fmt.Errorf("aligner.default_language %q is not a valid language tag", c.Aligner.DefaultLanguage)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
