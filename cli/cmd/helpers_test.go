package cmd

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"
)

const apiRoot = "/Panopto/PublicAPI/4.6/"

type appRun struct {
	code   int
	err    error
	stdout string
	stderr string
}

// isolate keeps config discovery and the exe-dir fallback inside a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	prev := exeDir
	exeDir = func() string { return dir }
	t.Cleanup(func() { exeDir = prev })
	return dir
}

func runApp(t *testing.T, stdin string, args ...string) appRun {
	t.Helper()
	app := NewApp("test")
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"ferry"}, args...))
	code := 0
	var ec cli.ExitCoder
	switch {
	case errors.As(err, &ec):
		code = ec.ExitCode()
	case err != nil:
		code = 1
	}
	return appRun{code: code, err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeServer is a content server answering the four API calls.
type fakeServer struct {
	mu             sync.Mutex
	authStatus     int
	sessionStatus  int
	finalizeStatus int
	target         string
	calls          []string
	processing     map[string]any
}

func newFakeServer(t *testing.T, target string) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{
		authStatus:     http.StatusOK,
		sessionStatus:  http.StatusCreated,
		finalizeStatus: http.StatusOK,
		target:         target,
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resource := strings.TrimPrefix(r.URL.Path, apiRoot)
	f.calls = append(f.calls, r.Method+" "+resource)

	switch r.Method + " " + resource {
	case "POST Auth/LogOn":
		if f.authStatus != http.StatusOK {
			w.WriteHeader(f.authStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: ".ASPXAUTH", Value: "token-1"})
		w.WriteHeader(http.StatusOK)
	case "POST session":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, f.sessionStatus, map[string]string{"ID": "sess-1", "Name": in["Name"], "ParentFolderID": in["ParentFolderID"]})
	case "POST upload":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusCreated, map[string]string{"ID": "up-1", "SessionID": in["SessionID"], "UploadTarget": f.target})
	case "PUT upload":
		_ = json.NewDecoder(r.Body).Decode(&f.processing)
		w.WriteHeader(f.finalizeStatus)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeServer) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newFakeS3 serves S3 multipart calls. With deny set every call is refused.
func newFakeS3(t *testing.T, deny bool) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		if deny {
			writeS3Error(w, http.StatusForbidden, "AccessDenied")
			return
		}
		q := r.URL.Query()
		switch {
		case r.Method == http.MethodPost && q.Has("uploads"):
			writeXML(w, struct {
				XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
				UploadID string   `xml:"UploadId"`
			}{UploadID: "transfer-1"})
		case r.Method == http.MethodPut && q.Get("uploadId") != "":
			w.Header().Set("ETag", fmt.Sprintf(`"etag-%s"`, q.Get("partNumber")))
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && q.Get("uploadId") != "":
			bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
			writeXML(w, struct {
				XMLName xml.Name `xml:"CompleteMultipartUploadResult"`
				Bucket  string   `xml:"Bucket"`
				Key     string   `xml:"Key"`
				ETag    string   `xml:"ETag"`
			}{Bucket: bucket, Key: key, ETag: `"final"`})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeS3Error(w, http.StatusBadRequest, "NotImplemented")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeXML(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(v)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(struct {
		XMLName xml.Name `xml:"Error"`
		Code    string   `xml:"Code"`
		Message string   `xml:"Message"`
	}{Code: code, Message: code})
}
