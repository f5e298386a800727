package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pithecene-io/ferry/types"
)

// MinioStore is an ObjectStore backed by minio-go Core.
//
// minio-go addresses a store by host only, so endpoints carrying a path
// prefix are rejected. Clients are created lazily, one per endpoint.
type MinioStore struct {
	cfg Config

	mu      sync.Mutex
	clients map[string]*minio.Core
}

// NewMinioStore creates a MinioStore. No connection is made until the
// first operation.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	return &MinioStore{
		cfg:     cfg.withDefaults(),
		clients: make(map[string]*minio.Core),
	}, nil
}

func (m *MinioStore) core(loc Location) (*minio.Core, error) {
	u, err := url.Parse(loc.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %w", ErrInvalidTarget, loc.Endpoint, err)
	}
	if strings.Trim(u.Path, "/") != "" {
		return nil, fmt.Errorf("%w: endpoint %q has a path prefix; use the s3 backend", ErrInvalidTarget, loc.Endpoint)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[u.Host]; ok {
		return c, nil
	}

	c, err := minio.NewCore(u.Host, &minio.Options{
		Creds:        miniocreds.NewStaticV4(m.cfg.AccessKey, m.cfg.SecretKey, ""),
		Secure:       u.Scheme == "https",
		Region:       m.cfg.Region,
		Transport:    m.cfg.HTTPClient.Transport,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", u.Host, err)
	}
	m.clients[u.Host] = c
	return c, nil
}

// OpenMultipartTransfer implements ObjectStore.
func (m *MinioStore) OpenMultipartTransfer(ctx context.Context, loc Location) (string, error) {
	c, err := m.core(loc)
	if err != nil {
		return "", newError(opOpen, loc, "", types.ErrTransport, err)
	}
	id, err := c.NewMultipartUpload(ctx, loc.Bucket, loc.Key, minio.PutObjectOptions{ContentType: loc.ContentType})
	if err != nil {
		return "", minioError(opOpen, loc, "", err)
	}
	if id == "" {
		return "", newError(opOpen, loc, "", types.ErrTransport, errors.New("store returned no upload id"))
	}
	return id, nil
}

// UploadPart implements ObjectStore.
func (m *MinioStore) UploadPart(ctx context.Context, loc Location, transferID string, partNumber int32, body io.ReadSeeker, size int64) (types.PartAck, error) {
	c, err := m.core(loc)
	if err != nil {
		return types.PartAck{}, newError(opUploadPart, loc, transferID, types.ErrTransport, err)
	}
	part, err := c.PutObjectPart(ctx, loc.Bucket, loc.Key, transferID, int(partNumber), body, size, minio.PutObjectPartOptions{})
	if err != nil {
		return types.PartAck{}, newError(opUploadPart, loc, transferID, minioKind(opUploadPart, err), fmt.Errorf("part %d: %w", partNumber, err))
	}
	if part.ETag == "" {
		return types.PartAck{}, newError(opUploadPart, loc, transferID, types.ErrTransport,
			fmt.Errorf("part %d: store returned no etag", partNumber))
	}
	return types.PartAck{PartNumber: partNumber, ETag: part.ETag, Size: size}, nil
}

// CloseMultipartTransfer implements ObjectStore.
func (m *MinioStore) CloseMultipartTransfer(ctx context.Context, loc Location, transferID string, parts []types.PartAck) (types.ObjectRef, error) {
	if err := types.ValidateAckSequence(parts); err != nil {
		return types.ObjectRef{}, newError(opClose, loc, transferID, types.ErrStoreRejected, err)
	}
	c, err := m.core(loc)
	if err != nil {
		return types.ObjectRef{}, newError(opClose, loc, transferID, types.ErrTransport, err)
	}

	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{PartNumber: int(p.PartNumber), ETag: p.ETag}
	}

	info, err := c.CompleteMultipartUpload(ctx, loc.Bucket, loc.Key, transferID, completed, minio.PutObjectOptions{})
	if err != nil {
		return types.ObjectRef{}, minioError(opClose, loc, transferID, err)
	}
	return types.ObjectRef{
		Bucket:   loc.Bucket,
		Key:      loc.Key,
		ETag:     info.ETag,
		Location: info.Location,
	}, nil
}

// AbortMultipartTransfer implements ObjectStore.
func (m *MinioStore) AbortMultipartTransfer(ctx context.Context, loc Location, transferID string) error {
	c, err := m.core(loc)
	if err != nil {
		return newError(opAbort, loc, transferID, types.ErrTransport, err)
	}
	if err := c.AbortMultipartUpload(ctx, loc.Bucket, loc.Key, transferID); err != nil {
		return minioError(opAbort, loc, transferID, err)
	}
	return nil
}

func minioError(op string, loc Location, transferID string, err error) error {
	return newError(op, loc, transferID, minioKind(op, err), err)
}

// minioKind classifies a minio-go error by its S3 error code. err must be
// the error minio-go returned, not a wrapped copy.
func minioKind(op string, err error) error {
	if code := minio.ToErrorResponse(err).Code; code != "" {
		return classifyCode(op, code)
	}
	return types.ErrTransport
}

var _ ObjectStore = (*MinioStore)(nil)
