// Package flags defines the command line flags of the clearinghouse node.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// VerbosityFlag defines the logrus configuration.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	// DataDirFlag defines a path on disk for the contract database.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the contract database",
		Value: DefaultDataDir(),
	}
	// LogFormat specifies the log output format.
	LogFormat = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Specify log formatting. Supports: text, json, fluentd.",
		Value: "text",
	}
	// LogFileName specifies the log output file name.
	LogFileName = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Specify log file name, relative or absolute",
	}
	// ConfigFileFlag specifies the filepath to load flag values.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "The filepath to a yaml file with flag values",
	}
	// ClearDB removes any previously stored data at the data directory.
	ClearDB = &cli.BoolFlag{
		Name:  "clear-db",
		Usage: "Clears any previously stored data at the data directory",
	}
	// MonitoringHostFlag defines the host used by the prometheus service.
	MonitoringHostFlag = &cli.StringFlag{
		Name:  "monitoring-host",
		Usage: "Host used by the prometheus service",
		Value: "127.0.0.1",
	}
	// MonitoringPortFlag defines the port used by the prometheus service.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used by the prometheus service",
		Value: 8081,
	}
	// DisableMonitoringFlag disables the prometheus service.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disables the prometheus metrics service",
	}
	// SimulateFlag runs a full contract lifecycle against the simulated
	// payment adapter and the mock verifier, then exits.
	SimulateFlag = &cli.BoolFlag{
		Name:  "simulate",
		Usage: "Run one simulated contract lifecycle (create, fund, accept, submit, verify, settle) and exit",
	}
	// SimulateFailFlag makes the simulated verification reject the work so the
	// retry and failure paths can be observed.
	SimulateFailFlag = &cli.BoolFlag{
		Name:  "simulate-fail",
		Usage: "Make the simulated verification fail to exercise the retry path",
	}
	// MaxRetriesFlag overrides the default verification retry budget for new
	// contracts.
	MaxRetriesFlag = &cli.IntFlag{
		Name:  "max-retries",
		Usage: "Default maximum verification attempts per contract",
	}
)
