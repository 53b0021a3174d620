// SPDX-License-Identifier: AGPL-3.0-or-later
// mesytec-mvlc-collator - Parse Mesytec MVLC readout streams into collated events
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package transport gives spec.md's deliberately-abstract source
// message-bus client and output destination collaborators a concrete,
// runnable implementation backed by Redis pub/sub — the same client
// library the teacher repo uses for its own pub/sub hub
// (internal/pubsub/redis.go). Neither RedisSource nor RedisSink is part
// of THE CORE; both exist only to give the core's buffer-source and
// reader.Sink contracts a working end-to-end example.
package transport

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connsPerCPU = 10
	maxIdleTime = 10 * time.Minute
)

// RedisSource subscribes to a channel carrying length-delimited raw MVLC
// buffers and yields each payload in turn, satisfying the "source
// message-bus client" collaborator spec.md §1 keeps outside THE CORE.
type RedisSource struct {
	client  *redis.Client
	sub     *redis.PubSub
	channel string
}

// NewRedisSource connects to addr and subscribes to channel.
func NewRedisSource(ctx context.Context, addr, password, channel string) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		PoolFIFO:        true,
		PoolSize:        runtime.GOMAXPROCS(0) * connsPerCPU,
		MinIdleConns:    runtime.GOMAXPROCS(0),
		ConnMaxIdleTime: maxIdleTime,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("transport: failed to connect to redis: %w", err)
	}
	return &RedisSource{
		client:  client,
		sub:     client.Subscribe(ctx, channel),
		channel: channel,
	}, nil
}

// Next blocks until the next raw buffer arrives, ctx is cancelled, or the
// subscription is closed.
func (s *RedisSource) Next(ctx context.Context) ([]byte, error) {
	msg, err := s.sub.ReceiveMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: redis source receive failed: %w", err)
	}
	return []byte(msg.Payload), nil
}

// Close tears down the subscription and the underlying client.
func (s *RedisSource) Close() error {
	if err := s.sub.Close(); err != nil {
		return fmt.Errorf("transport: failed to close redis subscription: %w", err)
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("transport: failed to close redis client: %w", err)
	}
	return nil
}

// RedisSink republishes an already-framed byte payload (an MFM frame, or a
// msgp-encoded event) to a Redis channel, satisfying the "output
// destination" collaborator spec.md §1 keeps outside THE CORE. It never
// signals backpressure — Redis pub/sub has no bounded-buffer concept the
// reader's suspension protocol needs to respect — so every Publish call
// that does not error is treated as Accepted by the caller wiring it into
// a reader.Sink.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to addr for publishing frames on channel.
func NewRedisSink(ctx context.Context, addr, password, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("transport: failed to connect to redis: %w", err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

// Publish republishes frame on the sink's channel.
func (s *RedisSink) Publish(ctx context.Context, frame []byte) error {
	if err := s.client.Publish(ctx, s.channel, frame).Err(); err != nil {
		return fmt.Errorf("transport: failed to publish frame: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSink) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("transport: failed to close redis client: %w", err)
	}
	return nil
}
