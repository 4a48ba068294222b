// Package cli contains the spiblock command line application.
package cli

import (
	"io"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagConfig        = "config"
	flagDebug         = "debug"
	flagDuration      = "duration"
	flagStatsInterval = "stats-interval"
	flagOrder         = "order"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "spiblock",
		Usage:           "pull checksummed blocks from SPI peripherals",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "bind every configured device and receive blocks until interrupted",
				UsageText: "spiblock run --config FILE [--debug]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagConfig,
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "load configuration from `FILE`",
					},
					&cli.BoolFlag{
						Name:    flagDebug,
						Aliases: []string{"vvv"},
						Usage:   "enable debug logging",
					},
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "stop after `DURATION`, 0 runs until interrupted",
					},
					&cli.DurationFlag{
						Name:  flagStatsInterval,
						Value: 10 * time.Second,
						Usage: "how often to log per device statistics",
					},
				},
				Action: RunAction,
			},
			{
				Name:      "checksum",
				Usage:     "compute the CRC32 conventions of a captured block and compare them to its trailer",
				UsageText: "spiblock checksum [--order native|little|big] FILE",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOrder,
						Value: "native",
						Usage: "byte order of the trailer",
					},
				},
				Action: ChecksumAction,
			},
			{
				Name:            "capture",
				Usage:           "work with capture files",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:      "inspect",
						Usage:     "print the metadata and readings of a capture file",
						ArgsUsage: "FILE",
						Action:    CaptureInspectAction,
					},
				},
			},
		},
	}
}
