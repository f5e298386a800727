// Package transfer moves a local file into an object store in fixed-size
// parts.
//
// The engine uploads parts strictly in ascending order, one at a time.
// Any failure after the store has opened the transfer triggers a
// best-effort abort; the abort outcome is logged and counted but the
// caller always sees the error that caused it.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/store"
	"github.com/pithecene-io/ferry/types"
)

// abortTimeout bounds the cleanup call made after a failure. It runs on a
// context detached from the caller's cancellation.
const abortTimeout = 30 * time.Second

// sniffLen is the number of leading bytes used for content type detection.
const sniffLen = 3072

// Transferer runs a chunked transfer to an upload target.
type Transferer interface {
	Transfer(ctx context.Context, target types.Target, filePath string, partSize int64) (*types.TransferResult, error)
}

// Progress reports an acknowledged part.
type Progress struct {
	TransferID string
	Part       int32
	Parts      int32
	BytesSent  int64
	TotalBytes int64
}

// Engine runs chunked transfers against an ObjectStore.
type Engine struct {
	store     store.ObjectStore
	logger    *log.Logger
	collector *metrics.Collector
	progress  func(Progress)
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithProgress registers a callback invoked after each acknowledged part.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over s.
func NewEngine(s store.ObjectStore, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		logger:   log.Nop(),
		progress: func(Progress) {},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Transferer = (*Engine)(nil)

// Transfer uploads filePath to target in parts of partSize bytes.
//
// The file is opened once and closed on every exit path. A missing,
// unreadable, or empty file fails with types.ErrIO before any remote call.
// A failure to open the remote transfer is returned as is, with nothing to
// abort. Every later failure aborts the transfer before returning.
func (e *Engine) Transfer(ctx context.Context, target types.Target, filePath string, partSize int64) (_ *types.TransferResult, err error) {
	start := e.now()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIO, err)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIO, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", types.ErrIO, filePath)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s is empty", types.ErrIO, filePath)
	}

	parts, err := Partition(size, partSize)
	if err != nil {
		return nil, err
	}

	loc, err := store.ParseTarget(target, filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrUnexpectedStatus, err)
	}
	loc.ContentType = detectContentType(f)

	h := NewHandle()
	id, err := e.store.OpenMultipartTransfer(ctx, loc)
	if err != nil {
		return nil, err
	}
	if err := h.Open(id); err != nil {
		return nil, err
	}

	logger := e.logger.With(map[string]string{"transfer_id": id})
	logger.Info("transfer opened", map[string]any{
		"bucket":       loc.Bucket,
		"key":          loc.Key,
		"content_type": loc.ContentType,
		"bytes":        size,
		"parts":        len(parts),
	})

	defer func() {
		if err != nil {
			e.abort(ctx, h, loc, logger, err)
		}
	}()

	total := int32(len(parts))
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: canceled before part %d: %w", types.ErrTransport, p.Number, err)
		}

		buf, err := iox.ReadSection(f, p.Offset, p.Size)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", p.Number, err)
		}

		ack, err := e.store.UploadPart(ctx, loc, id, p.Number, bytes.NewReader(buf), p.Size)
		if err != nil {
			return nil, err
		}
		if err := h.Record(ack); err != nil {
			return nil, err
		}

		e.collector.AddPartUploaded(p.Size)
		logger.Debug("part uploaded", map[string]any{"part": p.Number, "size": p.Size})
		e.progress(Progress{
			TransferID: id,
			Part:       p.Number,
			Parts:      total,
			BytesSent:  h.Bytes(),
			TotalBytes: size,
		})
	}

	obj, err := e.store.CloseMultipartTransfer(ctx, loc, id, h.Parts())
	if err != nil {
		return nil, err
	}
	if err := h.Close(); err != nil {
		return nil, err
	}

	elapsed := e.now().Sub(start)
	logger.Info("transfer closed", map[string]any{
		"etag":     obj.ETag,
		"parts":    len(parts),
		"duration": elapsed.String(),
	})

	return &types.TransferResult{
		TransferID: id,
		Object:     obj,
		Parts:      h.Parts(),
		Bytes:      h.Bytes(),
		Duration:   elapsed,
	}, nil
}

// abort abandons an open transfer. A handle that already reached a
// terminal state is left alone, so a closed transfer is never aborted.
func (e *Engine) abort(ctx context.Context, h *Handle, loc store.Location, logger *log.Logger, cause error) {
	if err := h.Abort(); err != nil {
		return
	}
	e.collector.IncAbort()

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := e.store.AbortMultipartTransfer(actx, loc, h.ID()); err != nil {
		e.collector.IncAbortFailure()
		logger.Error("abort failed, uploaded parts may be orphaned", map[string]any{
			"bucket": loc.Bucket,
			"key":    loc.Key,
			"parts":  len(h.Parts()),
			"cause":  cause.Error(),
			"error":  err.Error(),
		})
		return
	}
	logger.Warn("transfer aborted", map[string]any{
		"parts": len(h.Parts()),
		"cause": cause.Error(),
	})
}

// detectContentType sniffs the leading bytes of f. Detection failures fall
// back to a generic binary type; they never fail the transfer.
func detectContentType(f io.ReaderAt) string {
	buf := make([]byte, sniffLen)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "application/octet-stream"
	}
	return mimetype.Detect(buf[:n]).String()
}
