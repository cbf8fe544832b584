package main

import "github.com/urfave/cli/v3"

var (
	configPath     string
	checkpointPath string
	vocabPath      string
	seed           int64
	logLevel       string
	logFormat      string
	metricsAddr    string
)

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to model config YAML (defaults apply when empty)",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "checkpoint",
			Aliases:     []string{"m"},
			Usage:       "path to GGUF checkpoint (random init when empty)",
			Destination: &checkpointPath,
		},
		&cli.StringFlag{
			Name:        "vocab",
			Usage:       "path to vocabulary JSON",
			Destination: &vocabPath,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "weight init seed when no checkpoint is given",
			Value:       42,
			Destination: &seed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (console, json)",
			Value:       "console",
			Destination: &logFormat,
		},
		&cli.StringFlag{
			Name:        "metrics",
			Usage:       "prometheus listen address (empty disables)",
			Destination: &metricsAddr,
		},
	}
}
