// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package someip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/netutil"
)

// AnyInstance is reported for messages whose service is not listed in
// the transport configuration.
const AnyInstance uint16 = 0xFFFF

// maxDatagramSize covers the largest possible UDP payload.
const maxDatagramSize = 64 << 10

// EventID is the (service, instance, event) triple identifying one
// event stream.
type EventID struct {
	Service  uint16
	Instance uint16
	Event    uint16
}

// String renders the triple as "60d0.0001.8001".
func (id EventID) String() string {
	return fmt.Sprintf("%04x.%04x.%04x", id.Service, id.Instance, id.Event)
}

// Event is one inbound notification.
type Event struct {
	Service          uint16
	Instance         uint16
	Method           uint16
	Client           uint16
	Session          uint16
	InterfaceVersion uint8
	Type             MessageType
	// Payload aliases the receive buffer; copy it to retain it.
	Payload []byte
}

// ID returns the event's identifying triple.
func (e Event) ID() EventID {
	return EventID{Service: e.Service, Instance: e.Instance, Event: e.Method}
}

// Listener consumes inbound events. The returned error is diagnostic:
// the client logs it and keeps receiving.
type Listener interface {
	HandleEvent(ctx context.Context, event Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event Event) error

// HandleEvent calls f.
func (f ListenerFunc) HandleEvent(ctx context.Context, event Event) error { return f(ctx, event) }

// Config configures a Client.
type Config struct {
	// Application is the vsomeip application name.
	Application string

	// UseTCP selects the reliable port of each service instead of
	// the unreliable one.
	UseTCP bool

	// Debug raises per-message logging: 1 logs listener rejections,
	// 2 and above also logs every received header.
	Debug int

	Transport TransportConfig
}

// Client receives SOME/IP notifications and forwards them to a
// Listener. Run blocks; Shutdown ends it.
type Client struct {
	config   Config
	listener Listener
	logger   *slog.Logger

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	ready    chan struct{}

	mu       sync.Mutex
	stopping bool
	closers  map[io.Closer]struct{}
	addrs    []net.Addr
}

// NewClient validates config and returns a Client that will deliver
// events to listener. A nil logger means slog.Default().
func NewClient(config Config, listener Listener, logger *slog.Logger) (*Client, error) {
	if listener == nil {
		return nil, errors.New("someip: listener is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Transport.Services) == 0 {
		return nil, errors.New("someip: transport configuration lists no services")
	}
	offered := false
	for _, service := range config.Transport.Services {
		if port := servicePort(service, config.UseTCP); port != 0 {
			offered = true
		}
	}
	if !offered {
		return nil, fmt.Errorf("someip: no service offers a %s port", transportName(config.UseTCP))
	}
	if config.Application != "" && !config.Transport.HasApplication(config.Application) {
		logger.Warn("application not declared in transport configuration",
			"application", config.Application,
		)
	}

	return &Client{
		config:   config,
		listener: listener,
		logger:   logger.With("component", "someip", "application", config.Application),
		stop:     make(chan struct{}),
		ready:    make(chan struct{}),
		closers:  make(map[io.Closer]struct{}),
	}, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.config }

// Ready is closed once every configured port is bound.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Addrs returns the bound local addresses. Valid after Ready.
func (c *Client) Addrs() []net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]net.Addr(nil), c.addrs...)
}

// Run binds the configured ports and receives until ctx is cancelled
// or Shutdown is called, returning nil in both cases. ctx is passed to
// every Listener call. Run may be called once.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("someip: client already running")
	}
	select {
	case <-c.stop:
		return nil
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	servers, err := c.bind(ctx)
	if err != nil {
		c.closeAll()
		return err
	}
	close(c.ready)
	c.logger.Info("someip client running",
		"transport", transportName(c.config.UseTCP),
		"addresses", c.Addrs(),
	)

	go func() {
		select {
		case <-c.stop:
		case <-ctx.Done():
		}
		c.closeAll()
	}()

	errs := make(chan error, len(servers))
	var group sync.WaitGroup
	for _, serve := range servers {
		group.Add(1)
		go func() {
			defer group.Done()
			if err := serve(ctx); err != nil {
				errs <- err
				cancel()
			}
		}()
	}
	group.Wait()
	close(errs)
	return <-errs
}

// Shutdown asks Run to return. It does not wait. Safe to call more
// than once, concurrently, and from inside a Listener.
func (c *Client) Shutdown() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// bind opens one socket per configured service and returns the serve
// loops for them.
func (c *Client) bind(ctx context.Context) ([]func(context.Context) error, error) {
	listenConfig := net.ListenConfig{Control: reuseAddress}
	var servers []func(context.Context) error

	for _, service := range c.config.Transport.Services {
		port := servicePort(service, c.config.UseTCP)
		if port == 0 {
			continue
		}
		address := net.JoinHostPort(c.config.Transport.Unicast, strconv.Itoa(int(port)))

		if c.config.UseTCP {
			listener, err := listenConfig.Listen(ctx, "tcp", address)
			if err != nil {
				return nil, fmt.Errorf("someip: listening on tcp %s: %w", address, err)
			}
			c.track(listener, listener.Addr())
			servers = append(servers, func(ctx context.Context) error {
				return c.serveStream(ctx, listener)
			})
			continue
		}

		connection, err := listenConfig.ListenPacket(ctx, "udp", address)
		if err != nil {
			return nil, fmt.Errorf("someip: listening on udp %s: %w", address, err)
		}
		c.track(connection, connection.LocalAddr())
		servers = append(servers, func(ctx context.Context) error {
			return c.serveDatagrams(ctx, connection)
		})
	}
	return servers, nil
}

// serveDatagrams reads UDP datagrams, each carrying one or more
// messages. A malformed message discards the rest of its datagram.
func (c *Client) serveDatagrams(ctx context.Context, connection net.PacketConn) error {
	buffer := make([]byte, maxDatagramSize)
	for {
		n, source, err := connection.ReadFrom(buffer)
		if err != nil {
			if c.isStopping() {
				return nil
			}
			return fmt.Errorf("someip: udp receive: %w", err)
		}

		data := buffer[:n]
		for len(data) > 0 {
			message, rest, err := ParseMessage(data)
			if err != nil {
				c.logger.Warn("dropping malformed datagram",
					"source", source,
					"bytes", len(data),
					"error", err,
				)
				break
			}
			c.dispatch(ctx, message)
			data = rest
		}
	}
}

// serveStream accepts TCP connections. Each connection is read on its
// own goroutine, so ordering holds per connection.
func (c *Client) serveStream(ctx context.Context, listener net.Listener) error {
	var connections sync.WaitGroup
	defer connections.Wait()

	for {
		connection, err := listener.Accept()
		if err != nil {
			if c.isStopping() {
				return nil
			}
			return fmt.Errorf("someip: tcp accept: %w", err)
		}
		if !c.track(connection, nil) {
			return nil
		}

		connections.Add(1)
		go func() {
			defer connections.Done()
			defer c.untrack(connection)
			c.readConnection(ctx, connection)
		}()
	}
}

func (c *Client) readConnection(ctx context.Context, connection net.Conn) {
	logger := c.logger.With("remote_addr", connection.RemoteAddr())
	logger.Debug("connection accepted")
	for {
		message, err := ReadMessage(connection)
		if err != nil {
			switch {
			case c.isStopping(), netutil.IsExpectedCloseError(err):
				logger.Debug("connection closed")
			default:
				// A framing error loses stream synchronization.
				logger.Warn("closing connection after read error", "error", err)
			}
			return
		}
		c.dispatch(ctx, message)
	}
}

func (c *Client) dispatch(ctx context.Context, message Message) {
	header := message.Header
	if c.config.Debug > 1 {
		c.logger.Debug("message received",
			"service", fmt.Sprintf("0x%04x", header.Service),
			"method", fmt.Sprintf("0x%04x", header.Method),
			"type", header.Type,
			"session", header.Session,
			"payload_bytes", len(message.Payload),
		)
	}
	if header.Type != TypeNotification {
		c.logger.Debug("ignoring non-notification message",
			"service", fmt.Sprintf("0x%04x", header.Service),
			"type", header.Type,
		)
		return
	}

	instance, ok := c.config.Transport.Instance(header.Service)
	if !ok {
		instance = AnyInstance
	}
	event := Event{
		Service:          header.Service,
		Instance:         instance,
		Method:           header.Method,
		Client:           header.Client,
		Session:          header.Session,
		InterfaceVersion: header.InterfaceVersion,
		Type:             header.Type,
		Payload:          message.Payload,
	}
	if err := c.listener.HandleEvent(ctx, event); err != nil && c.config.Debug > 0 {
		c.logger.Debug("listener rejected event", "event", event.ID(), "error", err)
	}
}

// track registers a socket to be closed by Shutdown. If shutdown has
// already begun the socket is closed immediately and track returns
// false.
func (c *Client) track(closer io.Closer, addr net.Addr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		closer.Close()
		return false
	}
	c.closers[closer] = struct{}{}
	if addr != nil {
		c.addrs = append(c.addrs, addr)
	}
	return true
}

func (c *Client) untrack(closer io.Closer) {
	c.mu.Lock()
	delete(c.closers, closer)
	c.mu.Unlock()
	closer.Close()
}

func (c *Client) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopping = true
	for closer := range c.closers {
		closer.Close()
	}
	clear(c.closers)
}

func (c *Client) isStopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func servicePort(service ServiceSpec, useTCP bool) uint16 {
	if useTCP {
		return uint16(service.Reliable.Port)
	}
	return uint16(service.Unreliable)
}

func transportName(useTCP bool) string {
	if useTCP {
		return "tcp"
	}
	return "udp"
}

// reuseAddress lets a restarted bridge rebind its ports while the
// previous socket lingers in TIME_WAIT.
func reuseAddress(network, address string, conn syscall.RawConn) error {
	var optionErr error
	err := conn.Control(func(fd uintptr) {
		optionErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return optionErr
}
