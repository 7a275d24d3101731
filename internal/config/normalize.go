package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeAligner()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.UploadDir, err = c.resolveDataPath(c.Paths.UploadDir, defaultUploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.OutputDir, err = c.resolveDataPath(c.Paths.OutputDir, defaultOutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

// resolveDataPath anchors relative directories under data_dir.
func (c *Config) resolveDataPath(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if strings.HasPrefix(value, "~") || filepath.IsAbs(value) {
		return expandPath(value)
	}
	return expandPath(filepath.Join(c.Paths.DataDir, value))
}

func (c *Config) normalizeServer() {
	if value, ok := os.LookupEnv(envBind); ok && strings.TrimSpace(value) != "" {
		c.Server.Bind = value
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if value, ok := os.LookupEnv(envAPIToken); ok {
		c.Server.APIToken = value
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.BrowserDelayMS < 0 {
		c.Server.BrowserDelayMS = 0
	}
}

func (c *Config) normalizeAligner() {
	launcher := make([]string, 0, len(c.Aligner.Launcher))
	for _, part := range c.Aligner.Launcher {
		if part = strings.TrimSpace(part); part != "" {
			launcher = append(launcher, part)
		}
	}
	c.Aligner.Launcher = launcher

	if value, ok := os.LookupEnv(envDevice); ok && strings.TrimSpace(value) != "" {
		c.Aligner.Device = value
	}
	c.Aligner.Device = strings.ToLower(strings.TrimSpace(c.Aligner.Device))
	if c.Aligner.Device == "" {
		c.Aligner.Device = defaultDevice
	}
	c.Aligner.DefaultModel = strings.ToLower(strings.TrimSpace(c.Aligner.DefaultModel))
	c.Aligner.DefaultLanguage = strings.TrimSpace(c.Aligner.DefaultLanguage)
	if c.Aligner.DefaultLanguage == "" {
		c.Aligner.DefaultLanguage = defaultLanguage
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

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv(envNtfyTopic); ok {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}
