package store

import (
	"fmt"

	"github.com/pithecene-io/ferry/types"
)

// Error is an object store operation failure with the object and transfer
// it concerns. It unwraps to both its classification sentinel and the
// underlying backend error.
type Error struct {
	// Op is the operation that failed (open, upload_part, close, abort).
	Op string
	// Bucket and Key identify the object.
	Bucket string
	Key    string
	// TransferID is set once the transfer is open.
	TransferID string
	// Kind is the types sentinel for classification.
	Kind error
	// Err is the backend error.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("store.%s %s/%s", e.Op, e.Bucket, e.Key)
	if e.TransferID != "" {
		msg += " (transfer " + e.TransferID + ")"
	}
	return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Operation names used in Error.Op.
const (
	opOpen       = "open"
	opUploadPart = "upload_part"
	opClose      = "close"
	opAbort      = "abort"
)

func newError(op string, loc Location, transferID string, kind, err error) *Error {
	return &Error{Op: op, Bucket: loc.Bucket, Key: loc.Key, TransferID: transferID, Kind: kind, Err: err}
}

// classifyCode maps an S3 error code to a sentinel. Rejection codes only
// mean ErrStoreRejected when the store is materializing the object; during
// other operations they are transport failures.
func classifyCode(op, code string) error {
	switch code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return types.ErrAuthentication
	case "InvalidPart", "InvalidPartOrder", "EntityTooSmall", "NoSuchUpload", "MalformedXML":
		if op == opClose {
			return types.ErrStoreRejected
		}
	}
	return types.ErrTransport
}
