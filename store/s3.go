package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pithecene-io/ferry/types"
)

// S3API is the subset of the S3 client used by S3Store.
// It exists so tests can substitute a mock.
type S3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store is an ObjectStore backed by aws-sdk-go-v2.
//
// One client serves every Location: the endpoint is applied per call, so
// targets on different hosts share connection pools and credentials.
type S3Store struct {
	client S3API
}

// NewS3Store builds an S3 client with static credentials, path-style
// addressing, and checksums computed only when the operation requires them.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	cfg = cfg.withDefaults()
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
		config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// The HTTP client is set on the service options, not the loaded config:
	// LoadDefaultConfig rejects a plain *http.Client when AWS_CA_BUNDLE is set.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.HTTPClient = cfg.HTTPClient
	})
	return NewS3StoreWithClient(client), nil
}

// NewS3StoreWithClient wraps an existing S3API implementation.
func NewS3StoreWithClient(client S3API) *S3Store {
	return &S3Store{client: client}
}

func endpointFor(loc Location) func(*s3.Options) {
	return func(o *s3.Options) {
		o.BaseEndpoint = aws.String(loc.Endpoint)
	}
}

// OpenMultipartTransfer implements ObjectStore.
func (s *S3Store) OpenMultipartTransfer(ctx context.Context, loc Location) (string, error) {
	in := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}
	if loc.ContentType != "" {
		in.ContentType = aws.String(loc.ContentType)
	}

	out, err := s.client.CreateMultipartUpload(ctx, in, endpointFor(loc))
	if err != nil {
		return "", s3Error(opOpen, loc, "", err)
	}
	id := aws.ToString(out.UploadId)
	if id == "" {
		return "", newError(opOpen, loc, "", types.ErrTransport, errors.New("store returned no upload id"))
	}
	return id, nil
}

// UploadPart implements ObjectStore.
func (s *S3Store) UploadPart(ctx context.Context, loc Location, transferID string, partNumber int32, body io.ReadSeeker, size int64) (types.PartAck, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		UploadId:      aws.String(transferID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	}, endpointFor(loc))
	if err != nil {
		return types.PartAck{}, s3Error(opUploadPart, loc, transferID, fmt.Errorf("part %d: %w", partNumber, err))
	}
	etag := aws.ToString(out.ETag)
	if etag == "" {
		return types.PartAck{}, newError(opUploadPart, loc, transferID, types.ErrTransport,
			fmt.Errorf("part %d: store returned no etag", partNumber))
	}
	return types.PartAck{PartNumber: partNumber, ETag: etag, Size: size}, nil
}

// CloseMultipartTransfer implements ObjectStore.
func (s *S3Store) CloseMultipartTransfer(ctx context.Context, loc Location, transferID string, parts []types.PartAck) (types.ObjectRef, error) {
	if err := types.ValidateAckSequence(parts); err != nil {
		return types.ObjectRef{}, newError(opClose, loc, transferID, types.ErrStoreRejected, err)
	}

	completed := make([]s3types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = s3types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	out, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(loc.Bucket),
		Key:             aws.String(loc.Key),
		UploadId:        aws.String(transferID),
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	}, endpointFor(loc))
	if err != nil {
		return types.ObjectRef{}, s3Error(opClose, loc, transferID, err)
	}

	return types.ObjectRef{
		Bucket:   loc.Bucket,
		Key:      loc.Key,
		ETag:     aws.ToString(out.ETag),
		Location: aws.ToString(out.Location),
	}, nil
}

// AbortMultipartTransfer implements ObjectStore.
func (s *S3Store) AbortMultipartTransfer(ctx context.Context, loc Location, transferID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(loc.Bucket),
		Key:      aws.String(loc.Key),
		UploadId: aws.String(transferID),
	}, endpointFor(loc))
	if err != nil {
		return s3Error(opAbort, loc, transferID, err)
	}
	return nil
}

// s3Error classifies an aws-sdk error by its API error code.
func s3Error(op string, loc Location, transferID string, err error) error {
	kind := types.ErrTransport
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		kind = classifyCode(op, apiErr.ErrorCode())
	}
	return newError(op, loc, transferID, kind, err)
}

var _ ObjectStore = (*S3Store)(nil)
