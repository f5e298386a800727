// Package workflow sequences one delivery: authenticate, create a session,
// obtain an upload ticket, transfer the file, and tell the server to start
// processing.
//
// Stages run strictly in order on the calling goroutine. Each stage feeds
// the identifiers it learns to the next one, and any stage failure stops
// the workflow with a *types.StageError naming the stage and the
// identifiers known at that point.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/ferry/adapter"
	"github.com/pithecene-io/ferry/api"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/transfer"
	"github.com/pithecene-io/ferry/types"
)

// DefaultPublishTimeout bounds the notification publish after a delivery.
const DefaultPublishTimeout = 15 * time.Second

// Authenticator exchanges credentials for a session token.
// *rest.Client implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (types.AuthToken, error)
}

// Request is the input of one delivery.
type Request struct {
	Username       string
	Password       string
	ParentFolderID string
	SessionName    string
	FilePath       string
	// PartSize is the transfer part size. Zero means transfer.DefaultPartSize.
	PartSize int64
}

// Validate checks that every field the stages need is present.
func (r Request) Validate() error {
	switch {
	case r.Username == "":
		return errors.New("username is required")
	case r.ParentFolderID == "":
		return errors.New("parent folder id is required")
	case r.SessionName == "":
		return errors.New("session name is required")
	case r.FilePath == "":
		return errors.New("file path is required")
	case r.PartSize < 0:
		return fmt.Errorf("part size must be positive, got %d", r.PartSize)
	}
	return nil
}

// Result describes a delivery. On failure Run returns the partial result
// alongside the error so callers can report the identifiers reached.
type Result struct {
	RunID     string                `json:"run_id" yaml:"run_id"`
	Server    string                `json:"server" yaml:"server"`
	Session   types.Session         `json:"session" yaml:"session"`
	Ticket    types.UploadTicket    `json:"ticket" yaml:"ticket"`
	Transfer  *types.TransferResult `json:"transfer,omitempty" yaml:"transfer,omitempty"`
	Published bool                  `json:"published" yaml:"published"`
	Metrics   metrics.Snapshot      `json:"metrics" yaml:"metrics"`
	Duration  time.Duration         `json:"duration" yaml:"duration"`
}

// FinalizeRequest re-sends the completion notice for an existing ticket.
type FinalizeRequest struct {
	Username string
	Password string
	Ticket   types.UploadTicket
}

// StageStatus is the lifecycle point reported to an observer.
type StageStatus string

// Stage statuses.
const (
	StageStarted   StageStatus = "started"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// StageEvent reports a stage transition. Err is set for StageFailed.
type StageEvent struct {
	Stage  types.Stage
	Status StageStatus
	Err    error
}

// Workflow runs deliveries against one server.
type Workflow struct {
	auth       Authenticator
	caller     api.Caller
	transferer transfer.Transferer

	runID     string
	server    string
	logger    *log.Logger
	collector *metrics.Collector
	adapter   adapter.Adapter
	observer  func(StageEvent)
	now       func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithRunID fixes the run id. By default a random UUID is used.
func WithRunID(id string) Option {
	return func(w *Workflow) { w.runID = id }
}

// WithServer records the server name in results and events.
func WithServer(server string) Option {
	return func(w *Workflow) { w.server = server }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// WithCollector sets the metrics collector shared with the transport and engine.
func WithCollector(c *metrics.Collector) Option {
	return func(w *Workflow) { w.collector = c }
}

// WithAdapter publishes an upload_completed event after each delivery.
func WithAdapter(a adapter.Adapter) Option {
	return func(w *Workflow) { w.adapter = a }
}

// WithObserver receives every stage transition, on the calling goroutine.
func WithObserver(fn func(StageEvent)) Option {
	return func(w *Workflow) { w.observer = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New creates a Workflow over its three collaborators.
func New(auth Authenticator, caller api.Caller, transferer transfer.Transferer, opts ...Option) *Workflow {
	w := &Workflow{
		auth:       auth,
		caller:     caller,
		transferer: transferer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.runID == "" {
		w.runID = uuid.NewString()
	}
	if w.logger == nil {
		w.logger = log.Nop()
	}
	if w.collector == nil {
		w.collector = metrics.NewCollector("", w.server, w.runID)
	}
	return w
}

// RunID returns the id attached to every log entry and result.
func (w *Workflow) RunID() string { return w.runID }

// Run performs one delivery.
func (w *Workflow) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	partSize := req.PartSize
	if partSize == 0 {
		partSize = transfer.DefaultPartSize
	}

	start := w.now()
	res := &Result{RunID: w.runID, Server: w.server}
	defer func() {
		res.Metrics = w.collector.Snapshot()
		res.Duration = w.now().Sub(start)
	}()

	ids := map[string]string{}
	logger := w.logger

	// The local file is checked before anything is registered server-side.
	if err := preflight(req.FilePath); err != nil {
		return res, w.fail(logger, types.StageTransfer, ids, err)
	}

	var token types.AuthToken
	err := w.stage(logger, types.StageAuthenticate, ids, func() error {
		var err error
		token, err = w.auth.Authenticate(ctx, req.Username, req.Password)
		return err
	})
	if err != nil {
		return res, err
	}

	err = w.stage(logger, types.StageCreateSession, ids, func() error {
		var err error
		res.Session, err = api.CreateSession(ctx, w.caller, token, req.ParentFolderID, req.SessionName)
		return err
	})
	if err != nil {
		return res, err
	}
	ids["session_id"] = res.Session.ID
	logger = logger.With(map[string]string{"session_id": res.Session.ID})

	err = w.stage(logger, types.StageCreateUpload, ids, func() error {
		var err error
		res.Ticket, err = api.CreateUploadTicket(ctx, w.caller, token, res.Session.ID, req.SessionName)
		return err
	})
	if err != nil {
		return res, err
	}
	ids["ticket_id"] = res.Ticket.ID
	logger = logger.With(map[string]string{"ticket_id": res.Ticket.ID})

	err = w.stage(logger, types.StageTransfer, ids, func() error {
		var err error
		res.Transfer, err = w.transferer.Transfer(ctx, res.Ticket.Target, req.FilePath, partSize)
		return err
	})
	if err != nil {
		return res, err
	}
	ids["transfer_id"] = res.Transfer.TransferID
	logger = logger.With(map[string]string{"transfer_id": res.Transfer.TransferID})

	err = w.stage(logger, types.StageFinalize, ids, func() error {
		return api.NotifyComplete(ctx, w.caller, token, res.Ticket)
	})
	if err != nil {
		return res, err
	}

	res.Published = w.publish(ctx, logger, res, start)
	logger.Info("delivery complete", map[string]any{
		"bytes":       res.Transfer.Bytes,
		"parts":       len(res.Transfer.Parts),
		"duration_ms": w.now().Sub(start).Milliseconds(),
	})
	return res, nil
}

// Finalize authenticates and re-sends the idempotent completion notice for
// an upload whose bytes have already landed.
func (w *Workflow) Finalize(ctx context.Context, req FinalizeRequest) error {
	if req.Username == "" {
		return errors.New("username is required")
	}
	if err := req.Ticket.Validate(); err != nil {
		return err
	}

	ids := map[string]string{"session_id": req.Ticket.SessionID, "ticket_id": req.Ticket.ID}
	logger := w.logger.With(ids)

	var token types.AuthToken
	err := w.stage(logger, types.StageAuthenticate, ids, func() error {
		var err error
		token, err = w.auth.Authenticate(ctx, req.Username, req.Password)
		return err
	})
	if err != nil {
		return err
	}
	return w.stage(logger, types.StageFinalize, ids, func() error {
		return api.NotifyComplete(ctx, w.caller, token, req.Ticket)
	})
}

func (w *Workflow) stage(logger *log.Logger, stage types.Stage, ids map[string]string, fn func() error) error {
	w.collector.IncStageStarted(string(stage))
	w.notify(StageEvent{Stage: stage, Status: StageStarted})
	logger.Debug("stage started", map[string]any{"stage": string(stage)})
	t0 := w.now()

	if err := fn(); err != nil {
		return w.fail(logger, stage, ids, err)
	}

	w.collector.IncStageCompleted(string(stage))
	w.notify(StageEvent{Stage: stage, Status: StageCompleted})
	logger.Info("stage completed", map[string]any{
		"stage":       string(stage),
		"duration_ms": w.now().Sub(t0).Milliseconds(),
	})
	return nil
}

func (w *Workflow) fail(logger *log.Logger, stage types.Stage, ids map[string]string, err error) error {
	w.collector.IncStageFailed(string(stage))
	serr := types.NewStageError(stage, maps.Clone(ids), err)
	fields := map[string]any{"stage": string(stage), "error": err.Error()}
	if kind := types.Classify(err); kind != nil {
		fields["kind"] = kind.Error()
	}
	logger.Error("stage failed", fields)
	w.notify(StageEvent{Stage: stage, Status: StageFailed, Err: serr})
	return serr
}

func (w *Workflow) notify(ev StageEvent) {
	if w.observer != nil {
		w.observer(ev)
	}
}

// publish sends the completion event. Failures are logged and never fail
// the delivery: the server has already accepted it.
func (w *Workflow) publish(ctx context.Context, logger *log.Logger, res *Result, start time.Time) bool {
	if w.adapter == nil {
		return false
	}
	at := w.now()
	ev := adapter.NewUploadCompletedEvent(w.runID, w.server, res.Session, res.Ticket, res.Transfer, at, at.Sub(start))

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultPublishTimeout)
	defer cancel()
	if err := w.adapter.Publish(pubCtx, ev); err != nil {
		logger.Warn("publish failed", map[string]any{"error": err.Error()})
		return false
	}
	logger.Debug("published upload event", nil)
	return true
}

func preflight(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrIO, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", types.ErrIO, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", types.ErrIO, path)
	}
	return nil
}
