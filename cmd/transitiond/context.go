package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/transitiond/internal/config"
	"github.com/heimdex/transitiond/internal/db"
	"github.com/heimdex/transitiond/internal/logging"
	"github.com/heimdex/transitiond/internal/timeline"
)

type commandContext struct {
	configPath *string
	cfg        *config.FileConfig
}

func (c *commandContext) ensureConfig() (*config.FileConfig, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := os.Getenv(config.EnvConfigFile)
	if c.configPath != nil && *c.configPath != "" {
		path = *c.configPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// openTimeline opens the database and loads the stored timeline for the
// offline commands. Logs go to stderr so stdout stays machine readable.
func (c *commandContext) openTimeline(cmd *cobra.Command, stderr io.Writer) (*timeline.Service, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(cfg.LogLevel(), stderr)

	if _, err := os.Stat(cfg.DBPath()); err != nil {
		return nil, nil, fmt.Errorf("no timeline database at %s: %w", cfg.DBPath(), err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	svc := timeline.NewService(timeline.NewRepository(database.Conn()), logger, nil)
	if err := svc.Load(cmd.Context()); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load timeline: %w", err)
	}

	return svc, func() { database.Close() }, nil
}
