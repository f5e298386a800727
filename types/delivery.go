// Package types defines the delivery data model shared by every ferry stage.
//
// Values crossing stage boundaries (Session, UploadTicket, Target, PartAck)
// are plain immutable structs passed by value.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"time"
)

// AuthToken is the session credential returned by authentication.
// It is acquired once per workflow and never refreshed.
type AuthToken struct {
	value string
}

// NewAuthToken wraps a raw credential value.
func NewAuthToken(value string) AuthToken {
	return AuthToken{value: value}
}

// Value returns the raw credential for transport use.
func (t AuthToken) Value() string { return t.value }

// IsZero reports whether the token is empty.
func (t AuthToken) IsZero() bool { return t.value == "" }

// String redacts the credential so tokens never reach logs.
func (t AuthToken) String() string {
	if t.value == "" {
		return "<none>"
	}
	return "<redacted>"
}

// Session is a server-side record grouping one upload under a destination folder.
type Session struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	ParentFolderID string `json:"parent_folder_id" yaml:"parent_folder_id"`
}

// Target is the opaque upload descriptor issued by the server.
// The zero value is an empty target. There are no setters: a Target
// handed to the transfer engine is the exact value the server issued.
type Target struct {
	raw string
}

// NewTarget wraps a raw server-issued target descriptor.
func NewTarget(raw string) Target {
	return Target{raw: raw}
}

// String returns the descriptor exactly as issued.
func (t Target) String() string { return t.raw }

// IsZero reports whether the target is empty.
func (t Target) IsZero() bool { return t.raw == "" }

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(b []byte) error {
	t.raw = string(b)
	return nil
}

// UploadTicket tells the client where the file bytes must be written.
type UploadTicket struct {
	ID        string `json:"id" yaml:"id"`
	SessionID string `json:"session_id" yaml:"session_id"`
	Target    Target `json:"target" yaml:"target"`
}

// Validate checks that the ticket carries every identifier the transfer needs.
func (u UploadTicket) Validate() error {
	if u.ID == "" {
		return errors.New("upload ticket id must be non-empty")
	}
	if u.SessionID == "" {
		return errors.New("upload ticket session id must be non-empty")
	}
	if u.Target.IsZero() {
		return errors.New("upload ticket target must be non-empty")
	}
	return nil
}

// PartAck is the store-returned proof of receipt for one uploaded part.
type PartAck struct {
	PartNumber int32  `json:"part_number" yaml:"part_number"`
	ETag       string `json:"etag" yaml:"etag"`
	Size       int64  `json:"size" yaml:"size"`
}

// ValidateAckSequence checks that acks are contiguous from 1 and strictly
// increasing. It is the same check the store performs on close.
func ValidateAckSequence(acks []PartAck) error {
	if len(acks) == 0 {
		return errors.New("ack sequence is empty")
	}
	for i, a := range acks {
		want := int32(i + 1)
		if a.PartNumber != want {
			return fmt.Errorf("ack %d has part number %d, want %d", i, a.PartNumber, want)
		}
		if a.ETag == "" {
			return fmt.Errorf("part %d has empty etag", a.PartNumber)
		}
	}
	return nil
}

// ProcessingState is the server-side processing state of a session upload.
// Values are the integers the server expects on the wire.
type ProcessingState int

const (
	// ProcessingPending means the session is still awaiting upload.
	ProcessingPending ProcessingState = 0
	// ProcessingComplete means the payload has landed and processing may begin.
	ProcessingComplete ProcessingState = 1
)

// String returns the state name.
func (s ProcessingState) String() string {
	switch s {
	case ProcessingPending:
		return "pending"
	case ProcessingComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProcessingRequest transitions a session out of "awaiting upload".
type ProcessingRequest struct {
	ID           string          `json:"ID"`
	SessionID    string          `json:"SessionID"`
	UploadTarget Target          `json:"UploadTarget"`
	State        ProcessingState `json:"State"`
}

// NewProcessingRequest builds the completion request for an upload ticket.
func NewProcessingRequest(ticket UploadTicket) ProcessingRequest {
	return ProcessingRequest{
		ID:           ticket.ID,
		SessionID:    ticket.SessionID,
		UploadTarget: ticket.Target,
		State:        ProcessingComplete,
	}
}

// ObjectRef identifies the object materialized by a closed transfer.
type ObjectRef struct {
	Bucket   string `json:"bucket" yaml:"bucket"`
	Key      string `json:"key" yaml:"key"`
	ETag     string `json:"etag" yaml:"etag"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// TransferResult is returned by a successful chunked transfer.
type TransferResult struct {
	TransferID string        `json:"transfer_id" yaml:"transfer_id"`
	Object     ObjectRef     `json:"object" yaml:"object"`
	Parts      []PartAck     `json:"parts" yaml:"parts"`
	Bytes      int64         `json:"bytes" yaml:"bytes"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}
