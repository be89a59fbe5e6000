// Package redis is a storage.Provider backed by Redis. Each device owns a key
// prefix and a pub/sub channel on which every write is announced.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const keyPrefix = "storefront:"

// Provider hands out Redis-backed devices sharing one client.
type Provider struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ storage.Provider = (*Provider)(nil)

// NewProvider creates a provider. A zero ttl stores records without expiry.
func NewProvider(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Provider {
	return &Provider{client: client, ttl: ttl, logger: logger}
}

func (p *Provider) Device(id string) (storage.Device, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("device id is required")
	}
	return &Device{
		client:  p.client,
		ttl:     p.ttl,
		logger:  p.logger.With(slog.String("device_id", id)),
		id:      id,
		prefix:  keyPrefix + id + ":",
		channel: keyPrefix + id + ":changes",
	}, nil
}

func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Provider) Close() error {
	return p.client.Close()
}

// Device stores keys under storefront:{device}: and publishes each change on
// storefront:{device}:changes.
type Device struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	id      string
	prefix  string
	channel string
}

var _ storage.Device = (*Device)(nil)

func (d *Device) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := d.client.Get(ctx, d.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("key", key)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (d *Device) Set(ctx context.Context, key string, value []byte) error {
	msg, err := d.changeMessage(ctx, key)
	if err != nil {
		return err
	}

	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, d.prefix+key, value, d.ttl)
		pipe.Publish(ctx, d.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (d *Device) Delete(ctx context.Context, key string) error {
	msg, err := d.changeMessage(ctx, key)
	if err != nil {
		return err
	}

	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, d.prefix+key)
		pipe.Publish(ctx, d.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (d *Device) changeMessage(ctx context.Context, key string) ([]byte, error) {
	msg, err := json.Marshal(storage.Change{Key: key, Origin: storage.OriginFromContext(ctx)})
	if err != nil {
		return nil, fmt.Errorf("marshal change: %w", err)
	}
	return msg, nil
}

// Subscribe listens on the device channel. It returns once Redis confirms the
// subscription; fn is then called in publish order on a single goroutine.
func (d *Device) Subscribe(ctx context.Context, fn func(storage.Change)) (func(), error) {
	pubsub := d.client.Subscribe(ctx, d.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", d.channel, err)
	}

	done := make(chan struct{})
	messages := pubsub.Channel()
	go func() {
		defer close(done)
		for msg := range messages {
			var change storage.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				d.logger.Warn("dropping malformed change notification",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			fn(change)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				d.logger.Warn("close subscription", slog.String("error", err.Error()))
			}
			<-done
		})
	}, nil
}
