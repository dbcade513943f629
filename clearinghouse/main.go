// Package main defines the clearinghouse server implementation. A
// clearinghouse mediates paid task contracts between buyer and worker agents:
// it escrows the buyer's deposit, verifies submitted work with a pluggable
// strategy, and releases payment only when verification passes.
package main

import (
	"fmt"
	"os"
	"runtime"

	joonix "github.com/joonix/log"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/flags"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/node"
	"github.com/prysmaticlabs/clearinghouse/shared/logutil"
	"github.com/prysmaticlabs/clearinghouse/shared/version"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

func startClearinghouse(cliCtx *cli.Context) error {
	verbosity := cliCtx.String(flags.VerbosityFlag.Name)
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	clearinghouse, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	clearinghouse.Start()
	return nil
}

var appFlags = []cli.Flag{
	flags.VerbosityFlag,
	flags.DataDirFlag,
	flags.LogFormat,
	flags.LogFileName,
	flags.ConfigFileFlag,
	flags.ClearDB,
	flags.MonitoringHostFlag,
	flags.MonitoringPortFlag,
	flags.DisableMonitoringFlag,
	flags.SimulateFlag,
	flags.SimulateFailFlag,
	flags.MaxRetriesFlag,
}

func main() {
	app := cli.App{}
	app.Name = "clearinghouse"
	app.Usage = "launches an escrow and verification clearinghouse that mediates paid task contracts between agents."
	app.Version = version.GetVersion()
	app.Flags = appFlags
	app.Action = startClearinghouse
	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(flags.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					flags.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		format := ctx.String(flags.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as Gibberish in the log files.
			formatter.DisableColors = ctx.String(flags.LogFileName.Name) != ""
			logrus.SetFormatter(formatter)
		case "fluentd":
			logrus.SetFormatter(joonix.NewFormatter())
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		logFileName := ctx.String(flags.LogFileName.Name)
		if logFileName != "" {
			if err := logutil.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}

		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
