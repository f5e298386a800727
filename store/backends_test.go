package store

import (
	"bytes"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/ferry/types"
)

func backends(t *testing.T, srv *httptest.Server) map[string]ObjectStore {
	t.Helper()
	cfg := Config{HTTPClient: srv.Client()}

	s3Store, err := NewS3Store(t.Context(), cfg)
	require.NoError(t, err)
	minioStore, err := NewMinioStore(cfg)
	require.NoError(t, err)

	return map[string]ObjectStore{
		BackendS3:    s3Store,
		BackendMinio: minioStore,
	}
}

func TestS3Store_CABundleEnvKeepsHTTPClient(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(nil)
	defer tlsSrv.Close()
	bundle := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: tlsSrv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, pemBytes, 0o600))
	t.Setenv("AWS_CA_BUNDLE", bundle)

	fake, srv := newFakeS3(t)
	s, err := NewS3Store(t.Context(), Config{HTTPClient: srv.Client()})
	require.NoError(t, err)

	id, err := s.OpenMultipartTransfer(t.Context(), Location{Endpoint: srv.URL, Bucket: "media", Key: "abc/a.mp4"})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.uploads, id)
}

func TestBackends_FullTransfer(t *testing.T) {
	fake, srv := newFakeS3(t)

	for name, s := range backends(t, srv) {
		t.Run(name, func(t *testing.T) {
			loc := Location{Endpoint: srv.URL, Bucket: "media", Key: "abc/" + name + ".mp4", ContentType: "video/mp4"}

			id, err := s.OpenMultipartTransfer(t.Context(), loc)
			require.NoError(t, err)
			require.NotEmpty(t, id)

			payloads := [][]byte{[]byte("hello"), []byte("abc")}
			var acks []types.PartAck
			for i, p := range payloads {
				ack, err := s.UploadPart(t.Context(), loc, id, int32(i+1), bytes.NewReader(p), int64(len(p)))
				require.NoError(t, err)
				assert.Equal(t, int32(i+1), ack.PartNumber)
				assert.Contains(t, ack.ETag, "etag-")
				assert.Equal(t, int64(len(p)), ack.Size)
				acks = append(acks, ack)
			}

			assert.Equal(t, map[int]int64{1: 5, 2: 3}, fake.partSizes(id))

			ref, err := s.CloseMultipartTransfer(t.Context(), loc, id, acks)
			require.NoError(t, err)
			assert.Equal(t, "media", ref.Bucket)
			assert.Equal(t, loc.Key, ref.Key)
			assert.Contains(t, ref.ETag, "final-etag")

			fake.mu.Lock()
			defer fake.mu.Unlock()
			assert.Contains(t, fake.completed, id)
			assert.Equal(t, "video/mp4", fake.contentTypes[id])
		})
	}
}

func TestBackends_CloseRejected(t *testing.T) {
	fake, srv := newFakeS3(t)
	fake.rejectClose = "InvalidPart"

	for name, s := range backends(t, srv) {
		t.Run(name, func(t *testing.T) {
			loc := Location{Endpoint: srv.URL, Bucket: "media", Key: "abc/rejected.mp4"}

			id, err := s.OpenMultipartTransfer(t.Context(), loc)
			require.NoError(t, err)
			ack, err := s.UploadPart(t.Context(), loc, id, 1, bytes.NewReader([]byte("x")), 1)
			require.NoError(t, err)

			_, err = s.CloseMultipartTransfer(t.Context(), loc, id, []types.PartAck{ack})
			assert.ErrorIs(t, err, types.ErrStoreRejected)
		})
	}
}

func TestBackends_Abort(t *testing.T) {
	fake, srv := newFakeS3(t)

	for name, s := range backends(t, srv) {
		t.Run(name, func(t *testing.T) {
			loc := Location{Endpoint: srv.URL, Bucket: "media", Key: "abc/aborted.mp4"}

			id, err := s.OpenMultipartTransfer(t.Context(), loc)
			require.NoError(t, err)
			require.NoError(t, s.AbortMultipartTransfer(t.Context(), loc, id))

			fake.mu.Lock()
			defer fake.mu.Unlock()
			assert.Contains(t, fake.aborted, id)
		})
	}
}

func TestMinioStore_RejectsEndpointPath(t *testing.T) {
	m, err := NewMinioStore(Config{})
	require.NoError(t, err)

	loc := Location{Endpoint: "https://video.example.com/Panopto/Upload", Bucket: "b", Key: "p/f"}
	_, err = m.OpenMultipartTransfer(t.Context(), loc)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestMinioStore_ReusesClientPerHost(t *testing.T) {
	m, err := NewMinioStore(Config{})
	require.NoError(t, err)

	a, err := m.core(Location{Endpoint: "http://127.0.0.1:9000"})
	require.NoError(t, err)
	b, err := m.core(Location{Endpoint: "http://127.0.0.1:9000/"})
	require.NoError(t, err)
	assert.Same(t, a, b)
}
