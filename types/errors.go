package types //nolint:revive // types is a valid package name

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for delivery failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrAuthentication indicates invalid or expired credentials (401/403).
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound indicates the referenced destination does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrInvalidSession indicates the session is unknown or closed.
	ErrInvalidSession = errors.New("invalid session")

	// ErrTransport indicates a network-level failure or timeout.
	ErrTransport = errors.New("transport error")

	// ErrUnexpectedStatus indicates the server answered with an unanticipated status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrIO indicates the local file is unreadable or truncated.
	ErrIO = errors.New("local file error")

	// ErrStoreRejected indicates the object store refused to close the transfer.
	ErrStoreRejected = errors.New("store rejected transfer")

	// ErrInvalidTransition indicates a transfer handle was used outside its lifecycle.
	ErrInvalidTransition = errors.New("invalid transfer state transition")
)

// Stage names the workflow step an error belongs to.
type Stage string

// Workflow stages in execution order.
const (
	StageAuthenticate  Stage = "authenticate"
	StageCreateSession Stage = "create_session"
	StageCreateUpload  Stage = "create_upload"
	StageTransfer      Stage = "transfer"
	StageFinalize      Stage = "finalize"
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{StageAuthenticate, StageCreateSession, StageCreateUpload, StageTransfer, StageFinalize}
}

// StageError wraps a stage failure with its classification and the
// identifiers involved. It preserves the original error in the chain
// for inspection via errors.As.
type StageError struct {
	// Stage is the workflow step that failed.
	Stage Stage
	// Kind is the sentinel error for classification (e.g., ErrTransport).
	Kind error
	// IDs are the identifiers known when the stage failed (session_id, ticket_id, ...).
	IDs map[string]string
	// Err is the underlying error.
	Err error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	if len(e.IDs) > 0 {
		keys := make([]string, 0, len(e.IDs))
		for k := range e.IDs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%s", k, e.IDs[k])
		}
		b.WriteByte(']')
	}
	if e.Kind != nil && !errors.Is(e.Err, e.Kind) {
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StageError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

// NewStageError wraps err for stage. Kind is taken from the first sentinel
// found in err's chain; ids may be nil. Returns nil if err is nil.
func NewStageError(stage Stage, ids map[string]string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{
		Stage: stage,
		Kind:  Classify(err),
		IDs:   ids,
		Err:   err,
	}
}

// Classify returns the sentinel error found in err's chain, or nil when err
// carries no classification. When several sentinels are present the most
// specific wins: ErrInvalidSession is checked before ErrNotFound.
func Classify(err error) error {
	for _, kind := range []error{
		ErrAuthentication,
		ErrInvalidSession,
		ErrNotFound,
		ErrStoreRejected,
		ErrIO,
		ErrInvalidTransition,
		ErrUnexpectedStatus,
		ErrTransport,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// StageOf extracts the failing stage from err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
