// Package redis publishes upload_completed events to a Redis channel.
//
// Each event is sent with PUBLISH. When a key prefix is configured the
// payload is also stored under prefix+session_id so late consumers can
// look up the outcome of a delivery.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/ferry/adapter"
	"github.com/pithecene-io/ferry/types"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "ferry:upload_completed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultRetryInterval is the first backoff interval.
const DefaultRetryInterval = 500 * time.Millisecond

// DefaultTTL bounds how long a stored event is kept.
const DefaultTTL = 24 * time.Hour

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: ferry:upload_completed).
	Channel string
	// KeyPrefix enables storing each event under KeyPrefix+session_id.
	KeyPrefix string
	// TTL is the expiry of stored events (default 24h).
	TTL time.Duration
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts after the first failure.
	Retries int
	// RetryInterval is the first backoff interval (default 500ms).
	RetryInterval time.Duration
}

// Adapter publishes upload events via Redis.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish stores (when configured) and publishes the event as JSON.
func (a *Adapter) Publish(ctx context.Context, event *adapter.UploadCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts := 0
	op := func() error {
		attempts++
		opCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		if a.config.KeyPrefix != "" {
			if err := a.client.Set(opCtx, a.config.KeyPrefix+event.SessionID, body, a.config.TTL).Err(); err != nil {
				return classify(err)
			}
		}
		return classify(a.client.Publish(opCtx, a.config.Channel, body).Err())
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.config.RetryInterval
	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(a.config.Retries))
	b = backoff.WithContext(b, ctx)

	if err := backoff.Retry(op, b); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("redis: context canceled: %w", ctxErr)
		}
		return fmt.Errorf("redis: failed after %d attempts: %w", attempts, err)
	}
	return nil
}

// classify stops retrying once the client is closed.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.ErrClosed):
		return backoff.Permanent(err)
	default:
		return fmt.Errorf("%w: %w", types.ErrTransport, err)
	}
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
