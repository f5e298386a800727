package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/ferry/transfer"
	"github.com/pithecene-io/ferry/workflow"
)

// ErrInterrupted is returned when the user quits the view mid-delivery.
var ErrInterrupted = errors.New("interrupted")

// Reporter forwards workflow callbacks into a running program.
type Reporter struct {
	p *tea.Program
}

// Stage reports a stage transition. Safe to use as a workflow observer.
func (r *Reporter) Stage(ev workflow.StageEvent) {
	r.p.Send(StageMsg(ev))
}

// Progress reports an uploaded part. Safe to use as a transfer progress hook.
func (r *Reporter) Progress(p transfer.Progress) {
	r.p.Send(ProgressMsg(p))
}

// Work runs a delivery, reporting through r.
type Work func(ctx context.Context, r *Reporter) (*workflow.Result, error)

// Run shows the progress view while work runs on its own goroutine.
//
// When the user quits early the work context is cancelled and Run waits
// for work to return, so an in-flight transfer is aborted before exit.
// The returned error is work's error, or ErrInterrupted joined with it.
func Run(ctx context.Context, title string, work Work, opts ...tea.ProgramOption) (*workflow.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(title), opts...)
	rep := &Reporter{p: p}

	type outcome struct {
		res *workflow.Result
		err error
	}
	finished := make(chan outcome, 1)
	go func() {
		res, err := work(ctx, rep)
		finished <- outcome{res, err}
		p.Send(DoneMsg{Result: res, Err: err})
	}()

	final, runErr := p.Run()
	if m, ok := final.(ProgressModel); ok && m.Interrupted() {
		cancel()
		out := <-finished
		return out.res, errors.Join(ErrInterrupted, out.err)
	}
	if runErr != nil {
		cancel()
		<-finished
		return nil, runErr
	}
	out := <-finished
	return out.res, out.err
}
