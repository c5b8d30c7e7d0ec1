package main

import (
	"fmt"
	"os"

	"github.com/schemaflow-ai/schemaflow/pkg/logger"
)

// Environment variable fallbacks for the logging flags.
const (
	logFileEnvVar   = "LOG_FILE"
	logLevelEnvVar  = "LOG_LEVEL"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLogger sets up the process logger. Priority: CLI flags > env
// vars > defaults. Returns a cleanup function when logging to a file.
func initLogger(cliLevel, cliFile, cliFormat string) (func(), error) {
	levelStr := cliLevel
	if levelStr == "" {
		levelStr = os.Getenv(logLevelEnvVar)
	}
	if levelStr == "" {
		levelStr = "info"
	}

	logFile := cliFile
	if logFile == "" {
		logFile = os.Getenv(logFileEnvVar)
	}

	format := cliFormat
	if format == "" {
		format = os.Getenv(logFormatEnvVar)
	}
	if format == "" {
		format = "simple"
	}

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, format)
	return cleanup, nil
}
