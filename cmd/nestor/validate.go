package main

import (
	"fmt"

	"github.com/nestor-ai/nestor/pkg/config"
)

// ValidateCmd loads and validates a configuration file.
type ValidateCmd struct {
	File string `arg:"" optional:"" help:"Config file to validate (defaults to --config)." type:"path"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	path := c.File
	if path == "" {
		path = cli.Config
	}
	if path == "" {
		return fmt.Errorf("no config file given")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("Configuration valid: server %s, store %s, uploads %s\n",
		cfg.Server.Address(), cfg.Store.Path, cfg.Uploads.Dir)
	return nil
}
