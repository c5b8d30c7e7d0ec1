// Command schemaflow is the CLI for the schemaflow agent toolkit.
//
// Usage:
//
//	schemaflow serve --config config.yaml
//	schemaflow chat --config config.yaml --agent explorer
//	schemaflow validate --config config.yaml
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the web chat server."`
	Chat     ChatCmd     `cmd:"" help:"Chat with an agent in the terminal."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"schemaflow.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
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
	fmt.Printf("schemaflow version %s\n", version)
	return nil
}

// loadDotEnv loads a .env file next to the config file, then the one
// in the working directory. Missing files are fine.
func loadDotEnv(configPath string) {
	if configPath != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))
	}
	_ = godotenv.Load()
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("schemaflow"),
		kong.Description("Config-driven LLM agents for MySQL schema exploration."),
		kong.UsageOnError(),
	)

	loadDotEnv(cli.Config)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
