// Command nestor runs the conversational assistant: an HTTP server exposing
// chat, document retrieval, web search, and the approval-gated SQL console,
// plus local commands for indexing, schema inspection, and a terminal chat.
//
// Usage:
//
//	nestor serve --config config.yaml
//	nestor chat --model gemini
//	nestor index --path ./docs
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/nestor-ai/nestor/pkg/config"
	"github.com/nestor-ai/nestor/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Chat     ChatCmd     `cmd:"" help:"Chat with the assistant from the terminal."`
	Index    IndexCmd    `cmd:"" help:"Build the document retrieval index."`
	Schema   SchemaCmd   `cmd:"" help:"Print the configured database schema."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("nestor version %s\n", version)
	return nil
}

// loadConfig reads the config file (defaults when none is given) and applies
// CLI logging overrides on top.
func (cli *CLI) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cli.Config != "" {
		cfg, err = config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}

	if cli.LogLevel != "" {
		cfg.Logger.Level = cli.LogLevel
	}
	if cli.LogFile != "" {
		cfg.Logger.File = cli.LogFile
	}
	if cli.LogFormat != "" {
		cfg.Logger.Format = cli.LogFormat
	}
	return cfg, nil
}

// setupLogging initializes the process logger and returns a cleanup func.
func setupLogging(cfg *config.Config) (func(), error) {
	output := os.Stderr
	cleanup := func() {}
	if cfg.Logger.File != "" {
		file, closeFile, err := logger.OpenLogFile(cfg.Logger.File)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		output, cleanup = file, closeFile
	}
	logger.Init(logger.ParseLevel(cfg.Logger.Level), output, cfg.Logger.Format)
	return cleanup, nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("nestor"),
		kong.Description("Conversational assistant with document retrieval, web search, and SQL inspection."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(cli))
}
