package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/ferry/adapter"
	"github.com/pithecene-io/ferry/adapter/redis"
	"github.com/pithecene-io/ferry/adapter/webhook"
	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/cli/tui"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/rest"
	"github.com/pithecene-io/ferry/secrets"
	"github.com/pithecene-io/ferry/store"
	"github.com/pithecene-io/ferry/transfer"
	"github.com/pithecene-io/ferry/types"
	"github.com/pithecene-io/ferry/workflow"
)

// newSecretResolver builds the resolver for non-env password references.
var newSecretResolver = func(ctx context.Context, region string) (*secrets.Resolver, error) {
	return secrets.NewResolver(ctx, region)
}

// uploadAction is the root action: one full delivery.
func uploadAction(c *cli.Context) error {
	if c.Bool("tui") && c.Bool("quiet") {
		return cli.Exit("--tui and --quiet are mutually exclusive", exitUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	s, err := resolveUpload(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	password, err := resolvePassword(ctx, s.connection)
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve password: %v", err), exitUsage)
	}

	runID := uuid.New().String()
	logger, closeLog, err := newLogger(c, runID)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer closeLog()

	d, err := newDelivery(ctx, s, runID, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer d.close()

	req := workflow.Request{
		Username:       s.Username,
		Password:       password,
		ParentFolderID: s.FolderID,
		SessionName:    s.SessionName,
		FilePath:       s.File,
		PartSize:       s.PartSize,
	}

	var res *workflow.Result
	if c.Bool("tui") {
		title := fmt.Sprintf("ferry %s -> %s", s.File, s.Server)
		res, err = tui.Run(ctx, title, func(ctx context.Context, rep *tui.Reporter) (*workflow.Result, error) {
			return d.workflow(rep.Stage, rep.Progress).Run(ctx, req)
		})
	} else {
		res, err = d.workflow(nil, nil).Run(ctx, req)
	}

	if !c.Bool("quiet") && res != nil {
		if rerr := r.Render(res); rerr != nil {
			logger.Warn("render failed", map[string]any{"error": rerr.Error()})
		}
	}
	if err != nil {
		msg := failureMessage(err, res, s)
		waitForEnter(c)
		if errors.Is(err, tui.ErrInterrupted) {
			return cli.Exit(msg, exitCodeOrTransfer(err))
		}
		return cli.Exit(msg, exitCodeFor(err))
	}
	waitForEnter(c)
	return cli.Exit("", exitSuccess)
}

// exitCodeOrTransfer treats an interruption without a stage as a transfer failure.
func exitCodeOrTransfer(err error) int {
	if _, ok := types.StageOf(err); ok {
		return exitCodeFor(err)
	}
	return exitTransfer
}

// failureMessage renders err for stderr. Finalize failures include the
// command that re-sends the completion notice.
func failureMessage(err error, res *workflow.Result, s uploadSettings) string {
	msg := "Error: " + err.Error()
	stage, _ := types.StageOf(err)
	if stage != types.StageFinalize || res == nil {
		return msg
	}
	return fmt.Sprintf("%s\nThe file was transferred. Retry completion with:\n  ferry notify --server %s --username %s --session-id %s --ticket-id %s --target %q",
		msg, s.Server, s.Username, res.Ticket.SessionID, res.Ticket.ID, res.Ticket.Target.String())
}

// resolvePassword applies the password reference, if any.
func resolvePassword(ctx context.Context, conn connection) (string, error) {
	ref := conn.PasswordSecret
	if ref == "" {
		return conn.Password, nil
	}
	if strings.HasPrefix(ref, "env:") {
		return secrets.NewResolverWithClient(nil).Resolve(ctx, ref)
	}
	res, err := newSecretResolver(ctx, conn.SecretRegion)
	if err != nil {
		return "", err
	}
	return res.Resolve(ctx, ref)
}

// newLogger builds the run logger. Under --tui without --log-file logs are
// discarded so they do not tear the view.
func newLogger(c *cli.Context, runID string) (*log.Logger, func(), error) {
	level := zapcore.InfoLevel
	switch {
	case c.Bool("quiet"):
		level = zapcore.WarnLevel
	case c.Bool("verbose"):
		level = zapcore.DebugLevel
	}

	var out io.Writer = c.App.ErrWriter
	closer := func() {}
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = func() { _ = f.Close() }
	} else if c.Bool("tui") {
		return log.Nop(), closer, nil
	}
	if out == nil {
		out = os.Stderr
	}

	logger := log.NewLoggerWithOptions(runID, log.Options{Output: out, Level: level})
	return logger, func() {
		_ = logger.Sync()
		closer()
	}, nil
}

// delivery holds the collaborators shared by one run.
type delivery struct {
	settings  uploadSettings
	runID     string
	logger    *log.Logger
	collector *metrics.Collector
	client    *rest.Client
	store     store.ObjectStore
	adapter   adapter.Adapter
}

func newDelivery(ctx context.Context, s uploadSettings, runID string, logger *log.Logger) (*delivery, error) {
	collector := metrics.NewCollector(s.StoreBackend, s.Server, runID)

	client, err := rest.New(rest.Config{
		Server:             s.Server,
		APIPath:            s.APIPath,
		Timeout:            s.Timeout,
		InsecureSkipVerify: s.Insecure,
		Retries:            s.Retries,
		RetryInterval:      s.RetryInterval,
		AuthCookie:         s.AuthCookie,
		Logger:             logger,
		Collector:          collector,
	})
	if err != nil {
		return nil, err
	}

	objects, err := store.New(ctx, store.Config{
		Backend:    s.StoreBackend,
		Region:     s.StoreRegion,
		AccessKey:  s.AccessKey,
		SecretKey:  s.SecretKey,
		HTTPClient: rest.NewHTTPClient(s.Timeout, s.Insecure),
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create object store: %w", err)
	}

	a, err := buildAdapter(s.Adapter)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &delivery{
		settings:  s,
		runID:     runID,
		logger:    logger,
		collector: collector,
		client:    client,
		store:     objects,
		adapter:   a,
	}, nil
}

// workflow assembles a workflow over the shared collaborators.
// Either hook may be nil.
func (d *delivery) workflow(observer func(workflow.StageEvent), progress func(transfer.Progress)) *workflow.Workflow {
	engineOpts := []transfer.Option{
		transfer.WithLogger(d.logger),
		transfer.WithCollector(d.collector),
	}
	if progress != nil {
		engineOpts = append(engineOpts, transfer.WithProgress(progress))
	}
	opts := []workflow.Option{
		workflow.WithRunID(d.runID),
		workflow.WithServer(d.settings.Server),
		workflow.WithLogger(d.logger),
		workflow.WithCollector(d.collector),
	}
	if d.adapter != nil {
		opts = append(opts, workflow.WithAdapter(d.adapter))
	}
	if observer != nil {
		opts = append(opts, workflow.WithObserver(observer))
	}
	return workflow.New(d.client, d.client, transfer.NewEngine(d.store, engineOpts...), opts...)
}

func (d *delivery) close() {
	if d.adapter != nil {
		if err := d.adapter.Close(); err != nil {
			d.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
		}
	}
	_ = d.client.Close()
}

// buildAdapter returns the configured notification adapter, or nil.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := 0
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		if cfg.Retries == nil {
			retries = webhook.DefaultRetries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Secret:  cfg.Secret,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		if cfg.Retries == nil {
			retries = redis.DefaultRetries
		}
		return redis.New(redis.Config{
			URL:       cfg.URL,
			Channel:   cfg.Channel,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL.Duration,
			Timeout:   cfg.Timeout.Duration,
			Retries:   retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q (want webhook or redis)", cfg.Type)
	}
}

// waitForEnter blocks until a line is read from the app reader when
// --wait is set, or by default when stdin is a terminal.
func waitForEnter(c *cli.Context) {
	wait := c.Bool("wait")
	if !c.IsSet("wait") {
		f, ok := c.App.Reader.(*os.File)
		wait = ok && isatty.IsTerminal(f.Fd())
	}
	if !wait {
		return
	}
	fmt.Fprint(c.App.ErrWriter, "Press Enter to exit...")
	_, _ = bufio.NewReader(c.App.Reader).ReadString('\n')
}
