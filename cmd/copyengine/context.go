package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"copyengine/internal/api"
	"copyengine/internal/config"
	"copyengine/internal/logging"
)

type globalFlags struct {
	config string
	server string
	token  string
	json   bool
}

type commandContext struct {
	flags *globalFlags

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if _, err := config.LoadDotEnv("."); err != nil {
			c.configErr = err
			return
		}
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.configPath = path
		c.configExists = exists
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(c.flags.server)
	if base == "" {
		base = cfg.ClientBaseURL()
	}
	token := strings.TrimSpace(c.flags.token)
	if token == "" {
		token = cfg.Server.APIToken
	}
	client, err := api.NewClient(base, api.WithToken(token))
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return client, nil
}

// jsonOutput reports whether results should be printed as JSON: when asked
// for, or when stdout is not a terminal.
func (c *commandContext) jsonOutput(cmd *cobra.Command) bool {
	return c.flags.json || !isTerminal(cmd.OutOrStdout())
}

// localLogger logs to stderr so local runs keep stdout for results.
func (c *commandContext) localLogger(w io.Writer) *slog.Logger {
	cfg := c.configValue()
	level := "warn"
	if cfg != nil && strings.EqualFold(cfg.Logging.Level, "debug") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Format: "console", Level: level, Writer: w})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
