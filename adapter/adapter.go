// Package adapter defines the notification boundary for finished deliveries.
//
// Adapters publish an upload_completed event after the server has been told
// to start processing. Publishing is best effort: the workflow logs a
// failed publish but never fails the delivery because of it.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/ferry/types"
)

// EventTypeUploadCompleted is the event_type of every published event.
const EventTypeUploadCompleted = "upload_completed"

// UploadCompletedEvent is the payload published when a delivery finishes.
type UploadCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "upload_completed"
	RunID           string `json:"run_id"`
	Server          string `json:"server"`
	SessionID       string `json:"session_id"`
	SessionName     string `json:"session_name"`
	FolderID        string `json:"folder_id"`
	TicketID        string `json:"ticket_id"`
	TransferID      string `json:"transfer_id"`
	Bucket          string `json:"bucket"`
	Key             string `json:"key"`
	ETag            string `json:"etag"`
	Bytes           int64  `json:"bytes"`
	Parts           int    `json:"parts"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	DurationMs      int64  `json:"duration_ms"`
}

// NewUploadCompletedEvent builds the event for a finished delivery.
func NewUploadCompletedEvent(runID, server string, session types.Session, ticket types.UploadTicket, result *types.TransferResult, at time.Time, elapsed time.Duration) *UploadCompletedEvent {
	ev := &UploadCompletedEvent{
		ContractVersion: types.EventContractVersion,
		EventType:       EventTypeUploadCompleted,
		RunID:           runID,
		Server:          server,
		SessionID:       session.ID,
		SessionName:     session.Name,
		FolderID:        session.ParentFolderID,
		TicketID:        ticket.ID,
		Timestamp:       at.UTC().Format(time.RFC3339),
		DurationMs:      elapsed.Milliseconds(),
	}
	if result != nil {
		ev.TransferID = result.TransferID
		ev.Bucket = result.Object.Bucket
		ev.Key = result.Object.Key
		ev.ETag = result.Object.ETag
		ev.Bytes = result.Bytes
		ev.Parts = len(result.Parts)
	}
	return ev
}

// Adapter publishes delivery events to a downstream system.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *UploadCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
