// Package cmd provides the commands of the ferry binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
)

// Output flags shared by every command.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the Bubble Tea progress view.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show an interactive progress view (upload only)",
	}
)

// OutputFlags returns the shared output flags.
// Includes --tui so that commands without a progress view can reject it
// explicitly instead of failing with "flag provided but not defined".
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// ConnectionFlags returns the flags shared by commands that talk to the server.
func ConnectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to " + config.FileName + " (default: ./" + config.FileName + " or next to the executable)",
		},
		&cli.BoolFlag{
			Name:    "insecure",
			Aliases: []string{"k"},
			Usage:   "Skip TLS certificate verification (self-signed servers)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout",
			Value: defaultTimeout,
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Retries for idempotent calls (authenticate, finalize) on transport errors",
		},
		&cli.StringFlag{
			Name:    "password-secret",
			Usage:   "Resolve the password from env:NAME or an AWS Secrets Manager id[#field]",
			EnvVars: []string{"FERRY_PASSWORD_SECRET"},
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output and log only warnings and errors",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log debug entries",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Write logs to this file instead of stderr",
		},
	}
}

// UploadFlags returns the flags of the upload (root) action.
func UploadFlags() []cli.Flag {
	flags := ConnectionFlags()
	flags = append(flags,
		&cli.Int64Flag{
			Name:  "part-size",
			Usage: "Transfer part size in bytes",
			Value: config.DefaultPartSize,
		},
		&cli.StringFlag{
			Name:  "store-backend",
			Usage: "Object store client: s3 or minio",
			Value: "s3",
		},
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "Wait for Enter before exiting (default: on when stdin is a terminal)",
		},
		&cli.StringFlag{
			Name:  "webhook-url",
			Usage: "POST an upload_completed event to this URL",
		},
		&cli.StringFlag{
			Name:  "redis-url",
			Usage: "PUBLISH an upload_completed event to this Redis",
		},
	)
	return append(flags, OutputFlags()...)
}
