package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/pithecene-io/ferry/rest"
	"github.com/pithecene-io/ferry/types"
)

// fakeCaller records requests and answers with a canned response.
type fakeCaller struct {
	requests []rest.Request
	response any
	err      error
}

func (f *fakeCaller) Call(_ context.Context, req rest.Request, out any) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	if out != nil && f.response != nil {
		b, _ := json.Marshal(f.response)
		return json.Unmarshal(b, out)
	}
	return nil
}

var testToken = types.NewAuthToken("tok")

func TestCreateSession(t *testing.T) {
	f := &fakeCaller{response: map[string]string{"ID": "sess-1", "Name": "foobar", "ParentFolderID": "0xDEADBEEF"}}

	s, err := CreateSession(t.Context(), f, testToken, "0xDEADBEEF", "foobar")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID != "sess-1" || s.Name != "foobar" || s.ParentFolderID != "0xDEADBEEF" {
		t.Errorf("session = %+v", s)
	}

	if len(f.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(f.requests))
	}
	req := f.requests[0]
	if req.Method != http.MethodPost || req.Resource != ResourceSession || req.Expect != http.StatusCreated {
		t.Errorf("request = %+v", req)
	}
	if req.Idempotent {
		t.Error("session creation must not be marked idempotent")
	}
	if req.Token.Value() != "tok" {
		t.Error("token not forwarded")
	}
}

func TestCreateSession_FillsMissingEcho(t *testing.T) {
	f := &fakeCaller{response: map[string]string{"ID": "sess-1"}}

	s, err := CreateSession(t.Context(), f, testToken, "folder", "name")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.Name != "name" || s.ParentFolderID != "folder" {
		t.Errorf("session = %+v", s)
	}
}

func TestCreateSession_Errors(t *testing.T) {
	tests := []struct {
		name    string
		folder  string
		session string
		caller  *fakeCaller
		want    error
		calls   int
	}{
		{name: "empty folder", folder: "", session: "s", caller: &fakeCaller{}, calls: 0},
		{name: "empty name", folder: "f", session: "", caller: &fakeCaller{}, calls: 0},
		{
			name: "folder not found", folder: "f", session: "s",
			caller: &fakeCaller{err: &rest.StatusError{Code: http.StatusNotFound}},
			want:   types.ErrNotFound, calls: 1,
		},
		{
			name: "transport", folder: "f", session: "s",
			caller: &fakeCaller{err: types.ErrTransport},
			want:   types.ErrTransport, calls: 1,
		},
		{
			name: "missing id", folder: "f", session: "s",
			caller: &fakeCaller{response: map[string]string{}},
			want:   types.ErrUnexpectedStatus, calls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateSession(t.Context(), tt.caller, testToken, tt.folder, tt.session)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if len(tt.caller.requests) != tt.calls {
				t.Errorf("calls = %d, want %d", len(tt.caller.requests), tt.calls)
			}
		})
	}
}

func TestCreateUploadTicket(t *testing.T) {
	const target = "https://s3.example.com/bucket/prefix-123"
	f := &fakeCaller{response: map[string]string{"ID": "up-1", "SessionID": "sess-1", "UploadTarget": target}}

	ticket, err := CreateUploadTicket(t.Context(), f, testToken, "sess-1", "foobar")
	if err != nil {
		t.Fatalf("CreateUploadTicket: %v", err)
	}
	if ticket.ID != "up-1" || ticket.SessionID != "sess-1" {
		t.Errorf("ticket = %+v", ticket)
	}
	if ticket.Target.String() != target {
		t.Errorf("target = %q, want %q (must be passed through unmodified)", ticket.Target, target)
	}

	body, ok := f.requests[0].Body.(uploadBody)
	if !ok {
		t.Fatalf("body type = %T", f.requests[0].Body)
	}
	if body.SessionID != "sess-1" || body.UploadTarget != "foobar" {
		t.Errorf("body = %+v", body)
	}
	if f.requests[0].Idempotent {
		t.Error("upload creation must not be marked idempotent")
	}
}

func TestCreateUploadTicket_Errors(t *testing.T) {
	tests := []struct {
		name   string
		caller *fakeCaller
		want   error
	}{
		{"session not found", &fakeCaller{err: &rest.StatusError{Code: http.StatusNotFound}}, types.ErrInvalidSession},
		{"session closed", &fakeCaller{err: &rest.StatusError{Code: http.StatusBadRequest}}, types.ErrInvalidSession},
		{"forbidden", &fakeCaller{err: &rest.StatusError{Code: http.StatusForbidden}}, types.ErrAuthentication},
		{"empty target", &fakeCaller{response: map[string]string{"ID": "up-1", "SessionID": "sess-1"}}, types.ErrUnexpectedStatus},
		{"empty id", &fakeCaller{response: map[string]string{"UploadTarget": "https://h/b/p"}}, types.ErrUnexpectedStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateUploadTicket(t.Context(), tt.caller, testToken, "sess-1", "foobar")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNotifyComplete(t *testing.T) {
	ticket := types.UploadTicket{ID: "up-1", SessionID: "sess-1", Target: types.NewTarget("https://h/b/p")}
	f := &fakeCaller{}

	if err := NotifyComplete(t.Context(), f, testToken, ticket); err != nil {
		t.Fatalf("NotifyComplete: %v", err)
	}

	req := f.requests[0]
	if req.Method != http.MethodPut || req.Resource != ResourceUpload || req.Expect != http.StatusOK {
		t.Errorf("request = %+v", req)
	}
	if !req.Idempotent {
		t.Error("finalization must be marked idempotent")
	}
	pr, ok := req.Body.(types.ProcessingRequest)
	if !ok {
		t.Fatalf("body type = %T", req.Body)
	}
	if pr.State != types.ProcessingComplete || pr.ID != "up-1" || pr.SessionID != "sess-1" {
		t.Errorf("processing request = %+v", pr)
	}
}

func TestNotifyComplete_RepeatSendsSameRequest(t *testing.T) {
	ticket := types.UploadTicket{ID: "up-1", SessionID: "sess-1", Target: types.NewTarget("https://h/b/p")}
	f := &fakeCaller{}

	for i := range 2 {
		if err := NotifyComplete(t.Context(), f, testToken, ticket); err != nil {
			t.Fatalf("NotifyComplete #%d: %v", i+1, err)
		}
	}

	if len(f.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(f.requests))
	}
	if !reflect.DeepEqual(f.requests[0], f.requests[1]) {
		t.Errorf("repeat request differs:\n%+v\n%+v", f.requests[0], f.requests[1])
	}
	for i, req := range f.requests {
		if !req.Idempotent {
			t.Errorf("request %d not marked idempotent", i+1)
		}
	}
}

func TestNotifyComplete_Errors(t *testing.T) {
	valid := types.UploadTicket{ID: "up-1", SessionID: "sess-1", Target: types.NewTarget("https://h/b/p")}

	t.Run("invalid ticket", func(t *testing.T) {
		f := &fakeCaller{}
		if err := NotifyComplete(t.Context(), f, testToken, types.UploadTicket{}); err == nil {
			t.Fatal("expected error")
		}
		if len(f.requests) != 0 {
			t.Error("no request should be sent for an invalid ticket")
		}
	})

	t.Run("unknown upload", func(t *testing.T) {
		f := &fakeCaller{err: &rest.StatusError{Code: http.StatusNotFound}}
		if err := NotifyComplete(t.Context(), f, testToken, valid); !errors.Is(err, types.ErrInvalidSession) {
			t.Errorf("error = %v, want ErrInvalidSession", err)
		}
	})
}

// TestWorkflowCalls_OverHTTP drives the three calls through a real
// rest.Client to check the wire format the server sees.
func TestWorkflowCalls_OverHTTP(t *testing.T) {
	var notified map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /Panopto/PublicAPI/4.6/session", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["Name"] != "foobar" || in["ParentFolderID"] != "0xDEADBEEF" {
			t.Errorf("session body = %v", in)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"ID": "sess-1", "Name": in["Name"], "ParentFolderID": in["ParentFolderID"]})
	})
	mux.HandleFunc("POST /Panopto/PublicAPI/4.6/upload", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ID":           "up-1",
			"SessionID":    in["SessionID"],
			"UploadTarget": "https://s3.example.com/bucket/prefix",
		})
	})
	mux.HandleFunc("PUT /Panopto/PublicAPI/4.6/upload", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&notified)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := rest.New(rest.Config{Server: srv.URL})
	if err != nil {
		t.Fatalf("rest.New: %v", err)
	}

	s, err := CreateSession(t.Context(), c, testToken, "0xDEADBEEF", "foobar")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ticket, err := CreateUploadTicket(t.Context(), c, testToken, s.ID, "foobar")
	if err != nil {
		t.Fatalf("CreateUploadTicket: %v", err)
	}
	if err := NotifyComplete(t.Context(), c, testToken, ticket); err != nil {
		t.Fatalf("NotifyComplete: %v", err)
	}

	if notified["ID"] != "up-1" || notified["SessionID"] != "sess-1" {
		t.Errorf("processing body = %v", notified)
	}
	if notified["UploadTarget"] != "https://s3.example.com/bucket/prefix" {
		t.Errorf("UploadTarget = %v", notified["UploadTarget"])
	}
	if state, _ := notified["State"].(float64); state != 1 {
		t.Errorf("State = %v, want 1", notified["State"])
	}
}
