package store

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeS3 is a minimal S3 multipart server. It records part sizes and
// can be told to reject completion with an error code.
type fakeS3 struct {
	mu           sync.Mutex
	nextID       int
	uploads      map[string]*fakeUpload
	completed    []string
	aborted      []string
	rejectClose  string
	contentTypes map[string]string
}

type fakeUpload struct {
	bucket, key string
	partSizes   map[int]int64
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{uploads: make(map[string]*fakeUpload), contentTypes: make(map[string]string)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	q := r.URL.Query()
	uploadID := q.Get("uploadId")

	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		f.nextID++
		id := fmt.Sprintf("upload-%d", f.nextID)
		f.uploads[id] = &fakeUpload{bucket: bucket, key: key, partSizes: make(map[int]int64)}
		f.contentTypes[id] = r.Header.Get("Content-Type")
		writeXML(w, http.StatusOK, struct {
			XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
			Bucket   string   `xml:"Bucket"`
			Key      string   `xml:"Key"`
			UploadID string   `xml:"UploadId"`
		}{Bucket: bucket, Key: key, UploadID: id})

	case r.Method == http.MethodPut && uploadID != "":
		up, ok := f.uploads[uploadID]
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		n, _ := strconv.Atoi(q.Get("partNumber"))
		body, _ := io.ReadAll(r.Body)
		size := int64(len(body))
		// Streaming-signed bodies carry the payload length separately.
		if decoded := r.Header.Get("X-Amz-Decoded-Content-Length"); decoded != "" {
			size, _ = strconv.ParseInt(decoded, 10, 64)
		}
		up.partSizes[n] = size
		w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, n))
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && uploadID != "":
		if f.rejectClose != "" {
			writeError(w, http.StatusBadRequest, f.rejectClose)
			return
		}
		if _, ok := f.uploads[uploadID]; !ok {
			writeError(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		f.completed = append(f.completed, uploadID)
		writeXML(w, http.StatusOK, struct {
			XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
			Location string   `xml:"Location"`
			Bucket   string   `xml:"Bucket"`
			Key      string   `xml:"Key"`
			ETag     string   `xml:"ETag"`
		}{Location: "http://" + r.Host + r.URL.Path, Bucket: bucket, Key: key, ETag: `"final-etag"`})

	case r.Method == http.MethodDelete && uploadID != "":
		f.aborted = append(f.aborted, uploadID)
		delete(f.uploads, uploadID)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusBadRequest, "NotImplemented")
	}
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeXML(w, status, struct {
		XMLName   xml.Name `xml:"Error"`
		Code      string   `xml:"Code"`
		Message   string   `xml:"Message"`
		RequestID string   `xml:"RequestId"`
	}{Code: code, Message: code, RequestID: "req-1"})
}

func (f *fakeS3) partSizes(id string) map[int]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if up, ok := f.uploads[id]; ok {
		out := make(map[int]int64, len(up.partSizes))
		for k, v := range up.partSizes {
			out[k] = v
		}
		return out
	}
	return nil
}
