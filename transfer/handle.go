package transfer

import (
	"fmt"

	"github.com/pithecene-io/ferry/types"
)

// Handle tracks one multipart transfer through its lifecycle.
// Every method checks the transition table; misuse returns
// types.ErrInvalidTransition and leaves the handle unchanged.
//
// A Handle is not safe for concurrent use.
type Handle struct {
	state types.TransferState
	id    string
	parts []types.PartAck
}

// NewHandle returns an unopened handle.
func NewHandle() *Handle {
	return &Handle{state: types.TransferUnopened}
}

// State returns the current lifecycle state.
func (h *Handle) State() types.TransferState { return h.state }

// ID returns the store-issued transfer id, empty until opened.
func (h *Handle) ID() string { return h.id }

// Parts returns a copy of the recorded acks in ascending part order.
func (h *Handle) Parts() []types.PartAck {
	out := make([]types.PartAck, len(h.parts))
	copy(out, h.parts)
	return out
}

// Bytes returns the total size of the recorded parts.
func (h *Handle) Bytes() int64 {
	var n int64
	for _, p := range h.parts {
		n += p.Size
	}
	return n
}

// Open binds the store-issued transfer id.
func (h *Handle) Open(transferID string) error {
	if transferID == "" {
		return fmt.Errorf("%w: empty transfer id", types.ErrInvalidTransition)
	}
	if h.state != types.TransferUnopened {
		return fmt.Errorf("%w: open on %s transfer", types.ErrInvalidTransition, h.state)
	}
	if err := h.check(types.TransferOpen); err != nil {
		return err
	}
	h.id = transferID
	h.state = types.TransferOpen
	return nil
}

// Record appends a part ack. Acks must arrive in order: the first is
// part 1 and each next one is the previous plus one.
func (h *Handle) Record(ack types.PartAck) error {
	if h.state != types.TransferOpen {
		return fmt.Errorf("%w: record on %s transfer", types.ErrInvalidTransition, h.state)
	}
	want := int32(len(h.parts) + 1)
	if ack.PartNumber != want {
		return fmt.Errorf("%w: ack for part %d, want part %d", types.ErrInvalidTransition, ack.PartNumber, want)
	}
	if ack.ETag == "" {
		return fmt.Errorf("%w: part %d ack has empty etag", types.ErrInvalidTransition, ack.PartNumber)
	}
	h.parts = append(h.parts, ack)
	return nil
}

// Close marks the transfer materialized. At least one part must be recorded.
func (h *Handle) Close() error {
	if err := h.check(types.TransferClosed); err != nil {
		return err
	}
	if len(h.parts) == 0 {
		return fmt.Errorf("%w: close with no parts", types.ErrInvalidTransition)
	}
	h.state = types.TransferClosed
	return nil
}

// Abort marks the transfer abandoned.
func (h *Handle) Abort() error {
	if err := h.check(types.TransferAborted); err != nil {
		return err
	}
	h.state = types.TransferAborted
	return nil
}

func (h *Handle) check(to types.TransferState) error {
	if !types.CanTransition(h.state, to) {
		return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, h.state, to)
	}
	return nil
}
