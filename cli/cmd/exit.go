package cmd

import (
	"errors"

	"github.com/pithecene-io/ferry/types"
)

// Process exit codes.
const (
	exitSuccess        = 0
	exitUsage          = 1
	exitBeforeTransfer = 2
	exitTransfer       = 3
	exitFinalize       = 4
)

var errUsage = errors.New(usageLine)

// exitCodeFor maps a delivery error to the process exit code.
// Errors that carry no stage are usage or configuration errors.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	stage, ok := types.StageOf(err)
	if !ok {
		return exitUsage
	}
	switch stage {
	case types.StageAuthenticate, types.StageCreateSession, types.StageCreateUpload:
		return exitBeforeTransfer
	case types.StageTransfer:
		return exitTransfer
	case types.StageFinalize:
		return exitFinalize
	default:
		return exitUsage
	}
}
