// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/placy/placy/internal/auth"
)

// DefaultQueue is the list reset jobs are pushed onto.
const DefaultQueue = "placy:notifications"

// pingTimeout bounds the connectivity check in NewRedisClient.
const pingTimeout = 3 * time.Second

var _ auth.Notifier = (*RedisNotifier)(nil)

// Job is the queue payload a mail worker consumes.
type Job struct {
	Kind     string                `json:"kind"`
	Payload  auth.CodeNotification `json:"payload"`
	Enqueued time.Time             `json:"enqueued_at"`
}

// JobKindResetCode marks password reset code jobs.
const JobKindResetCode = "reset_code"

// NewRedisClient parses url (redis://host:port/db), connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, oops.Code("REDIS_URL_EMPTY").Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_URL_INVALID").Wrap(err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("REDIS_UNREACHABLE").With("addr", opts.Addr).Wrap(err)
	}
	return client, nil
}

// RedisNotifier enqueues reset codes with LPUSH.
type RedisNotifier struct {
	client redis.Cmdable
	queue  string
	now    func() time.Time
}

// NewRedisNotifier creates a RedisNotifier. An empty queue means DefaultQueue.
func NewRedisNotifier(client redis.Cmdable, queue string) *RedisNotifier {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisNotifier{client: client, queue: queue, now: time.Now}
}

// Queue returns the list key jobs are pushed onto.
func (n *RedisNotifier) Queue() string {
	return n.queue
}

// SendCode implements auth.Notifier.
func (n *RedisNotifier) SendCode(ctx context.Context, msg auth.CodeNotification) error {
	body, err := json.Marshal(Job{Kind: JobKindResetCode, Payload: msg, Enqueued: n.now().UTC()})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}
	if err := n.client.LPush(ctx, n.queue, body).Err(); err != nil {
		return oops.Code("NOTIFY_ENQUEUE_FAILED").
			With("queue", n.queue).
			With("email", msg.Email).
			Wrap(err)
	}
	return nil
}
