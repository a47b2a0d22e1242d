// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// ContentType is the header value attached to every shipped frame.
const ContentType = "application/vnd.someip2val.frame+cbor"

// ErrBusUnavailable is returned by the NATS shipper while the
// connection is down. The client's own reconnect buffer is bypassed so
// that ordering and drop policy stay with Buffer.
var ErrBusUnavailable = errors.New("publisher: bus unavailable")

const (
	reconnectWait = 2 * time.Second
	connectWait   = 5 * time.Second
	flushTimeout  = 5 * time.Second
)

type natsShipper struct {
	conn *nats.Conn
}

// NewNATSShipper connects to the NATS server at url. The connection
// retries in the background when the server is not up yet, so this
// only fails on a malformed URL or option.
func NewNATSShipper(url, name string, logger *slog.Logger) (Shipper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(connectWait),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.ReconnectBufSize(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("bus reconnected", "url", c.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("bus error", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher: connecting to %s: %w", url, err)
	}
	return &natsShipper{conn: conn}, nil
}

// Ship publishes the frame and waits for the server to acknowledge the
// flush, so a success means the frame left this process.
func (s *natsShipper) Ship(ctx context.Context, entry Entry) error {
	if !s.conn.IsConnected() {
		return ErrBusUnavailable
	}
	msg := &nats.Msg{
		Subject: entry.Subject,
		Data:    entry.Data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Content-Type", ContentType)
	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publisher: publishing to %s: %w", entry.Subject, err)
	}

	flushContext, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := s.conn.FlushWithContext(flushContext); err != nil {
		return fmt.Errorf("publisher: flushing %s: %w", entry.Subject, err)
	}
	return nil
}

func (s *natsShipper) Close() error {
	s.conn.Close()
	return nil
}
