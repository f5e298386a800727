package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/types"
)

// NewApp builds the ferry application. The root action runs a delivery;
// with no arguments every input comes from ferry.yaml or the defaults.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:      "ferry",
		Usage:     "Deliver a media file to a content server session",
		ArgsUsage: "[server file username password folder-id session-name]",
		Version:   fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:     UploadFlags(),
		Action:    uploadAction,
		Commands: []*cli.Command{
			NotifyCommand(),
			VersionCommand(commit),
		},
	}
}
