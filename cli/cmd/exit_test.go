package cmd

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pithecene-io/ferry/cli/tui"
	"github.com/pithecene-io/ferry/types"
	"github.com/pithecene-io/ferry/workflow"
)

func TestExitCodeFor(t *testing.T) {
	cause := fmt.Errorf("%w: boom", types.ErrTransport)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"no stage", errors.New("bad flag"), exitUsage},
		{"authenticate", types.NewStageError(types.StageAuthenticate, nil, cause), exitBeforeTransfer},
		{"create_session", types.NewStageError(types.StageCreateSession, nil, cause), exitBeforeTransfer},
		{"create_upload", types.NewStageError(types.StageCreateUpload, nil, cause), exitBeforeTransfer},
		{"transfer", types.NewStageError(types.StageTransfer, nil, cause), exitTransfer},
		{"finalize", types.NewStageError(types.StageFinalize, nil, cause), exitFinalize},
		{"wrapped", fmt.Errorf("run: %w", types.NewStageError(types.StageFinalize, nil, cause)), exitFinalize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeOrTransfer(t *testing.T) {
	if got := exitCodeOrTransfer(tui.ErrInterrupted); got != exitTransfer {
		t.Errorf("bare interrupt = %d, want %d", got, exitTransfer)
	}
	err := errors.Join(tui.ErrInterrupted, types.NewStageError(types.StageCreateSession, nil, types.ErrTransport))
	if got := exitCodeOrTransfer(err); got != exitBeforeTransfer {
		t.Errorf("interrupt during create_session = %d, want %d", got, exitBeforeTransfer)
	}
}

func TestFailureMessage(t *testing.T) {
	s := uploadSettings{connection: connection{Server: "media.example.com", Username: "alice"}}
	res := &workflow.Result{Ticket: types.UploadTicket{
		ID:        "up-1",
		SessionID: "sess-1",
		Target:    types.NewTarget("https://s3.example.com/b/p"),
	}}

	transferErr := types.NewStageError(types.StageTransfer, nil, types.ErrIO)
	if msg := failureMessage(transferErr, res, s); strings.Contains(msg, "ferry notify") {
		t.Errorf("transfer failure should not suggest notify: %q", msg)
	}

	finalizeErr := types.NewStageError(types.StageFinalize, nil, types.ErrInvalidSession)
	msg := failureMessage(finalizeErr, res, s)
	for _, want := range []string{
		"ferry notify",
		"--server media.example.com",
		"--session-id sess-1",
		"--ticket-id up-1",
		`--target "https://s3.example.com/b/p"`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
