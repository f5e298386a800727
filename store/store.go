// Package store is the object store client for chunked transfers.
//
// An upload target issued by the content server names an S3-compatible
// endpoint, a bucket, and a key prefix. ParseTarget turns it into a
// Location; an ObjectStore runs the four multipart operations against it.
// Two backends are provided: S3Store (aws-sdk-go-v2) and MinioStore
// (minio-go Core).
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/ferry/types"
)

// Backend names accepted by New.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// DefaultRegion is used when no region is configured. S3-compatible
// targets ignore it but request signing requires one.
const DefaultRegion = "us-east-1"

// DefaultCredential is the static access key and secret used when none are
// configured. Upload targets are pre-authorized; the store accepts any
// well-formed signature.
const DefaultCredential = "dummy"

// ErrInvalidTarget indicates an upload target that cannot be resolved to
// an endpoint, bucket, and key.
var ErrInvalidTarget = errors.New("invalid upload target")

// Location is the resolved destination of one object.
type Location struct {
	// Endpoint is the store base URL including any path prefix.
	Endpoint string
	// Bucket is the destination bucket.
	Bucket string
	// Key is the full object key.
	Key string
	// ContentType is sent when the transfer is opened. Optional.
	ContentType string
}

func (l Location) String() string {
	return fmt.Sprintf("%s/%s/%s", l.Endpoint, l.Bucket, l.Key)
}

// ObjectStore runs the multipart transfer protocol against a Location.
type ObjectStore interface {
	// OpenMultipartTransfer starts a transfer and returns its id.
	OpenMultipartTransfer(ctx context.Context, loc Location) (string, error)
	// UploadPart sends one part. body must yield exactly size bytes.
	UploadPart(ctx context.Context, loc Location, transferID string, partNumber int32, body io.ReadSeeker, size int64) (types.PartAck, error)
	// CloseMultipartTransfer materializes the object from parts, which must
	// be contiguous from 1 in ascending order.
	CloseMultipartTransfer(ctx context.Context, loc Location, transferID string, parts []types.PartAck) (types.ObjectRef, error)
	// AbortMultipartTransfer abandons the transfer and releases its parts.
	AbortMultipartTransfer(ctx context.Context, loc Location, transferID string) error
}

// ParseTarget resolves an upload target of the form
//
//	scheme://host[/path...]/<bucket>/<prefix>
//
// into a Location whose key is prefix + "/" + the base name of fileName.
// Everything before the last two path segments is the endpoint.
func ParseTarget(target types.Target, fileName string) (Location, error) {
	raw := target.String()
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w %q: %w", ErrInvalidTarget, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Location{}, fmt.Errorf("%w %q: missing scheme or host", ErrInvalidTarget, raw)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return Location{}, fmt.Errorf("%w %q: need bucket and prefix path segments", ErrInvalidTarget, raw)
	}

	name := filepath.Base(fileName)
	if fileName == "" || name == "." || name == string(filepath.Separator) {
		return Location{}, fmt.Errorf("%w: empty file name", ErrInvalidTarget)
	}

	n := len(segments)
	endpoint := u.Scheme + "://" + u.Host
	if n > 2 {
		endpoint += "/" + strings.Join(segments[:n-2], "/")
	}

	return Location{
		Endpoint: endpoint,
		Bucket:   segments[n-2],
		Key:      segments[n-1] + "/" + name,
	}, nil
}

// Config configures the object store backend.
type Config struct {
	// Backend is BackendS3 (default) or BackendMinio.
	Backend string
	// Region used for request signing (default DefaultRegion).
	Region string
	// AccessKey and SecretKey are static credentials (default DefaultCredential).
	AccessKey string
	SecretKey string
	// HTTPClient carries timeouts and the TLS trust policy. Required.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendS3
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.AccessKey == "" {
		c.AccessKey = DefaultCredential
	}
	if c.SecretKey == "" {
		c.SecretKey = DefaultCredential
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

// New creates the ObjectStore selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	cfg = cfg.withDefaults()
	switch cfg.Backend {
	case BackendS3:
		return NewS3Store(ctx, cfg)
	case BackendMinio:
		return NewMinioStore(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", cfg.Backend, BackendS3, BackendMinio)
	}
}
