package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/rest"
	"github.com/pithecene-io/ferry/types"
	"github.com/pithecene-io/ferry/workflow"
)

// NotifyResponse is the output of the notify command.
type NotifyResponse struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Server    string `json:"server" yaml:"server"`
	SessionID string `json:"session_id" yaml:"session_id"`
	TicketID  string `json:"ticket_id" yaml:"ticket_id"`
	State     string `json:"state" yaml:"state"`
}

// NotifyCommand returns the notify command. It re-sends the completion
// notice for an upload whose bytes already landed, e.g. after a run
// exited with a finalize failure.
func NotifyCommand() *cli.Command {
	flags := ConnectionFlags()
	flags = append(flags,
		&cli.StringFlag{Name: "server", Usage: "Content server host"},
		&cli.StringFlag{Name: "username", Usage: "Account name"},
		&cli.StringFlag{Name: "password", Usage: "Account password", EnvVars: []string{"FERRY_PASSWORD"}},
		&cli.StringFlag{Name: "session-id", Usage: "Session id of the upload", Required: true},
		&cli.StringFlag{Name: "ticket-id", Usage: "Upload ticket id", Required: true},
		&cli.StringFlag{Name: "target", Usage: "Upload target exactly as issued", Required: true},
	)
	flags = append(flags, OutputFlags()...)

	return &cli.Command{
		Name:   "notify",
		Usage:  "Mark an already transferred upload complete",
		Flags:  flags,
		Action: notifyAction,
	}
}

func notifyAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for notify command", exitUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	conn, err := resolveConnection(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	conn.Server = resolveString(c, "server", conn.Server)
	conn.Username = resolveString(c, "username", conn.Username)
	if c.IsSet("password") {
		conn.Password = c.String("password")
		if !c.IsSet("password-secret") {
			conn.PasswordSecret = ""
		}
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx := context.Background()
	password, err := resolvePassword(ctx, conn)
	if err != nil {
		return cli.Exit("resolve password: "+err.Error(), exitUsage)
	}

	runID := uuid.New().String()
	logger, closeLog, err := newLogger(c, runID)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer closeLog()

	client, err := rest.New(rest.Config{
		Server:             conn.Server,
		APIPath:            conn.APIPath,
		Timeout:            conn.Timeout,
		InsecureSkipVerify: conn.Insecure,
		Retries:            conn.Retries,
		RetryInterval:      conn.RetryInterval,
		AuthCookie:         conn.AuthCookie,
		Logger:             logger,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { _ = client.Close() }()

	ticket := types.UploadTicket{
		ID:        c.String("ticket-id"),
		SessionID: c.String("session-id"),
		Target:    types.NewTarget(c.String("target")),
	}
	wf := workflow.New(client, client, nil,
		workflow.WithRunID(runID),
		workflow.WithServer(conn.Server),
		workflow.WithLogger(logger),
	)
	err = wf.Finalize(ctx, workflow.FinalizeRequest{
		Username: conn.Username,
		Password: password,
		Ticket:   ticket,
	})
	if err != nil {
		return cli.Exit("Error: "+err.Error(), exitCodeFor(err))
	}

	if !c.Bool("quiet") {
		if err := r.Render(NotifyResponse{
			RunID:     runID,
			Server:    conn.Server,
			SessionID: ticket.SessionID,
			TicketID:  ticket.ID,
			State:     types.ProcessingComplete.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}
