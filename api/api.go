// Package api implements the three server-side registration calls of a
// delivery: session creation, upload ticket issue, and finalization.
//
// Each call is a single request through a Caller. Session and ticket
// creation are not idempotent and are never retried; finalization is
// idempotent and marked so the Caller may retry it.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pithecene-io/ferry/rest"
	"github.com/pithecene-io/ferry/types"
)

// Resource paths below the API root.
const (
	ResourceSession = "session"
	ResourceUpload  = "upload"
)

// Caller performs one API request. *rest.Client implements it.
type Caller interface {
	Call(ctx context.Context, req rest.Request, out any) error
}

var _ Caller = (*rest.Client)(nil)

type sessionBody struct {
	ID             string `json:"ID,omitempty"`
	Name           string `json:"Name"`
	ParentFolderID string `json:"ParentFolderID"`
}

type uploadBody struct {
	ID           string `json:"ID,omitempty"`
	SessionID    string `json:"SessionID"`
	UploadTarget string `json:"UploadTarget"`
}

// CreateSession registers a new session named name under parentFolderID.
//
// Fails with types.ErrNotFound when the folder does not exist,
// types.ErrAuthentication when the token is rejected, and
// types.ErrTransport on network failure.
func CreateSession(ctx context.Context, c Caller, token types.AuthToken, parentFolderID, name string) (types.Session, error) {
	if parentFolderID == "" {
		return types.Session{}, errors.New("parent folder id must be non-empty")
	}
	if name == "" {
		return types.Session{}, errors.New("session name must be non-empty")
	}

	var out sessionBody
	err := c.Call(ctx, rest.Request{
		Method:   http.MethodPost,
		Resource: ResourceSession,
		Token:    token,
		Body:     sessionBody{Name: name, ParentFolderID: parentFolderID},
		Expect:   http.StatusCreated,
	}, &out)
	if err != nil {
		return types.Session{}, err
	}
	if out.ID == "" {
		return types.Session{}, fmt.Errorf("%w: session response carried no ID", types.ErrUnexpectedStatus)
	}

	s := types.Session{ID: out.ID, Name: out.Name, ParentFolderID: out.ParentFolderID}
	if s.Name == "" {
		s.Name = name
	}
	if s.ParentFolderID == "" {
		s.ParentFolderID = parentFolderID
	}
	return s, nil
}

// CreateUploadTicket requests an upload target for sessionID. displayName
// is sent as the requested target name; the server's returned target is
// wrapped unmodified.
//
// 400 and 404 responses mean the session is unknown or closed and fail with
// types.ErrInvalidSession. A response without a target fails with
// types.ErrUnexpectedStatus.
func CreateUploadTicket(ctx context.Context, c Caller, token types.AuthToken, sessionID, displayName string) (types.UploadTicket, error) {
	if sessionID == "" {
		return types.UploadTicket{}, errors.New("session id must be non-empty")
	}

	var out uploadBody
	err := c.Call(ctx, rest.Request{
		Method:   http.MethodPost,
		Resource: ResourceUpload,
		Token:    token,
		Body:     uploadBody{SessionID: sessionID, UploadTarget: displayName},
		Expect:   http.StatusCreated,
	}, &out)
	if err != nil {
		return types.UploadTicket{}, invalidSession(err)
	}

	ticket := types.UploadTicket{
		ID:        out.ID,
		SessionID: out.SessionID,
		Target:    types.NewTarget(out.UploadTarget),
	}
	if ticket.SessionID == "" {
		ticket.SessionID = sessionID
	}
	if err := ticket.Validate(); err != nil {
		return types.UploadTicket{}, fmt.Errorf("%w: %w", types.ErrUnexpectedStatus, err)
	}
	return ticket, nil
}

// NotifyComplete tells the server the payload for ticket has landed so
// processing may begin. Repeating the call with the same ticket is safe.
//
// A 404 response means the session or upload is unknown and fails with
// types.ErrInvalidSession.
func NotifyComplete(ctx context.Context, c Caller, token types.AuthToken, ticket types.UploadTicket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}

	err := c.Call(ctx, rest.Request{
		Method:     http.MethodPut,
		Resource:   ResourceUpload,
		Token:      token,
		Body:       types.NewProcessingRequest(ticket),
		Expect:     http.StatusOK,
		Idempotent: true,
	}, nil)
	if err != nil {
		return invalidSession(err)
	}
	return nil
}

// invalidSession reclassifies 400/404 answers about an existing session as
// types.ErrInvalidSession. The original error stays in the chain.
func invalidSession(err error) error {
	var se *rest.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusBadRequest) {
		return fmt.Errorf("%w: %w", types.ErrInvalidSession, err)
	}
	return err
}
