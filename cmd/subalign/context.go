package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"subalign/internal/client"
	"subalign/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiClient builds a client for server, falling back to the configured bind
// address.
func (c *commandContext) apiClient(server string) (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	target := strings.TrimSpace(server)
	if target == "" {
		target = cfg.BaseURL()
	}
	return client.New(target, cfg.Server.APIToken)
}

func wrapAPIError(err error, server string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrAPIUnavailable) {
		if server == "" {
			server = "the configured address"
		}
		return fmt.Errorf("no subalign server answered at %s; start one with `subalign serve`", server)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
