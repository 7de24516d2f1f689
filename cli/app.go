// Package cli contains the geomctl command line tool: closed loop simulation, parameter listing,
// flip reference plots and correction table queries.
package cli

import (
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/config"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
)

const (
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	simulateFlagDuration  = "duration"
	simulateFlagFlipAt    = "flip-at"
	simulateFlagFlipKind  = "flip-kind"
	simulateFlagOutput    = "output"
	simulateFlagAltitude  = "altitude"
	simulateFlagSummarize = "summarize"

	paramsFlagSet = "set"

	plotFlagOutput    = "output"
	plotFlagTimescale = "timescale"

	flipKindGeometric   = "geometric"
	flipKindFeedForward = "feedforward"
)

// NewApp returns the geomctl app writing to `out` and `errOut`.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "geomctl",
		Usage:           "fly, tune and inspect the geometric quadrotor controller",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    generalFlagConfig,
				Aliases: []string{"c"},
				Usage:   "load vehicle configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  generalFlagDebug,
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "simulate",
				Usage: "fly the controller against the quadrotor simulator",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  simulateFlagDuration,
						Value: 5,
						Usage: "simulated `SECONDS` to fly",
					},
					&cli.Float64Flag{
						Name:  simulateFlagFlipAt,
						Value: -1,
						Usage: "start a flip after `SECONDS`, negative to never flip",
					},
					&cli.StringFlag{
						Name:  simulateFlagFlipKind,
						Value: flipKindGeometric,
						Usage: "flip with the closed loop geometric reference or the open loop feed-forward schedule",
					},
					&cli.Float64Flag{
						Name:  simulateFlagAltitude,
						Value: 1,
						Usage: "hover altitude in `METRES`",
					},
					&cli.PathFlag{
						Name:  simulateFlagOutput,
						Usage: "write telemetry to `FILE`, overriding the configured path",
					},
					&cli.BoolFlag{
						Name:  simulateFlagSummarize,
						Value: true,
						Usage: "print per channel statistics",
					},
				},
				Action: SimulateAction,
			},
			{
				Name:  "params",
				Usage: "list every tunable parameter",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  paramsFlagSet,
						Usage: "set `GROUP.NAME=VALUE` before listing",
					},
				},
				Action: ParamsAction,
			},
			{
				Name:  "plot",
				Usage: "render the flip reference trajectory",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     plotFlagOutput,
						Required: true,
						Usage:    "write the PNG to `FILE`",
					},
					&cli.Float64Flag{
						Name:  plotFlagTimescale,
						Usage: "override the configured flip timescale",
					},
				},
				Action: PlotAction,
			},
			{
				Name:      "table",
				Usage:     "evaluate a correction table",
				ArgsUsage: "<table.yaml> <x1> [x2 ...]",
				Action:    TableAction,
			},
		},
	}
}

// loadConfig reads the --config file, or the defaults if none was given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.Path(generalFlagConfig)
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns the command's logger writing to the app's error writer.
func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, io.Closer) {
	logger, closer := cfg.NewLogger("geomctl", logging.NewWriterAppender(c.App.ErrWriter))
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	return logger, closer
}

func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() < n {
		return errors.Errorf("%s needs at least %d arguments, got %d", c.Command.Name, n, c.Args().Len())
	}
	return nil
}
