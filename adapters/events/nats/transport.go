// Package nats implements events.Broker on a NATS server. Transient queues
// are core subjects consumed through a queue group; durable queues are
// JetStream work-queue streams with explicit acknowledgement.
//
// The client library's automatic reconnect is switched off. A Transport moves
// through Disconnected, Connecting, Connected and Draining only through its
// own methods, and a lost connection is reported through the OnDisconnect
// hook so the owner decides when to Reconnect.
package nats

import (
	"context"
	"sync"
	"time"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/nats-io/nats.go"
)

// Transport is a NATS backed events.Broker.
type Transport struct {
	url          string
	name         string
	attempts     int
	retryDelay   time.Duration
	drainTimeout time.Duration
	storage      nats.StorageType
	natsOpts     []nats.Option
	middlewares  []events.Middleware
	onDisconnect func(err error)
	logger       *log.Log

	mu       sync.Mutex
	state    State
	nc       *nats.Conn
	js       nats.JetStreamContext
	closed   chan struct{}
	declared map[string]bool
	subs     map[string]*subscription
}

var _ events.Broker = (*Transport)(nil)

// NewTransport returns a disconnected Transport for url.
func NewTransport(url string, opts ...Option) *Transport {
	if url == "" {
		url = DefaultURL
	}
	t := &Transport{
		url:          url,
		attempts:     DefaultConnectAttempts,
		retryDelay:   DefaultRetryDelay,
		drainTimeout: DefaultDrainTimeout,
		storage:      nats.FileStorage,
		logger:       log.NewNopLogger(),
		state:        Disconnected,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// setState must be called with mu held.
func (t *Transport) setState(to State) error {
	if !CanTransition(t.state, to) {
		return blame.InvalidTransition(t.state.String(), to.String())
	}
	t.state = to
	return nil
}

// Connect dials the server, retrying up to the configured number of
// attempts with a fixed delay. Connect on a connected Transport is a no-op.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == Connected {
		t.mu.Unlock()
		return nil
	}
	if err := t.setState(Connecting); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.logger.Info(constant.TransportConnecting, log.String("url", t.url), log.Int("attempts", t.attempts))
	nc, closed, err := t.dial(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		_ = t.setState(Disconnected)
		return err
	}

	js, jsErr := nc.JetStream()
	if jsErr != nil {
		t.logger.Warn(constant.TransportConnected, log.String("url", t.url), log.Err(jsErr))
		js = nil
	}
	t.nc, t.js, t.closed = nc, js, closed
	t.declared = map[string]bool{}
	t.subs = map[string]*subscription{}
	_ = t.setState(Connected)
	t.logger.Info(constant.TransportConnected, log.String("url", nc.ConnectedUrlRedacted()), log.Bool("jetstream", js != nil))
	return nil
}

func (t *Transport) dial(ctx context.Context) (*nats.Conn, chan struct{}, error) {
	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		closed := make(chan struct{})
		nc, err := nats.Connect(t.url, t.connectOptions(closed)...)
		if err == nil {
			return nc, closed, nil
		}
		lastErr = err
		if attempt == t.attempts {
			break
		}

		t.logger.Warn(constant.TransportRetrying,
			log.String("url", t.url),
			log.Int("attempt", attempt),
			log.Duration("delay", t.retryDelay),
			log.Err(err))

		timer := time.NewTimer(t.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, blame.ConnectionFailed(t.url, attempt, ctx.Err()).WithCause(lastErr)
		case <-timer.C:
		}
	}
	return nil, nil, blame.ConnectionFailed(t.url, t.attempts, lastErr)
}

func (t *Transport) connectOptions(closed chan struct{}) []nats.Option {
	opts := []nats.Option{nats.Timeout(DefaultConnectTimeout)}
	if t.name != "" {
		opts = append(opts, nats.Name(t.name))
	}
	opts = append(opts, t.natsOpts...)
	return append(opts,
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				t.logger.Warn(constant.TransportDisconnected, log.Err(err))
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			close(closed)
			t.connectionClosed(nc)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			t.logger.Error(constant.ProcessingFailed, log.String("queue", subject), log.Err(err))
		}),
	)
}

// connectionClosed handles a connection that went away on its own.
// A close caused by Disconnect finds the Transport already Draining.
func (t *Transport) connectionClosed(nc *nats.Conn) {
	t.mu.Lock()
	if t.nc != nc || t.state != Connected {
		t.mu.Unlock()
		return
	}
	for _, s := range t.subs {
		s.cancel()
	}
	t.nc, t.js = nil, nil
	t.declared, t.subs = nil, nil
	_ = t.setState(Disconnected)
	hook := t.onDisconnect
	t.mu.Unlock()

	err := nc.LastError()
	t.logger.Warn(constant.ConnectionClosed, log.Err(err))
	if hook != nil {
		hook(err)
	}
}

// Disconnect drains consumers and closes the connection. Durable queues
// and their pending messages stay on the server.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	if t.state == Disconnected {
		t.mu.Unlock()
		return nil
	}
	if err := t.setState(Draining); err != nil {
		t.mu.Unlock()
		return err
	}
	nc, closed, subs := t.nc, t.closed, t.subs
	t.mu.Unlock()

	t.logger.Info(constant.TransportDraining, log.Int("consumers", len(subs)))
	if err := nc.Drain(); err != nil {
		nc.Close()
	}
	select {
	case <-closed:
	case <-time.After(t.drainTimeout):
		nc.Close()
	}
	for _, s := range subs {
		s.cancel()
	}

	t.mu.Lock()
	t.nc, t.js, t.closed = nil, nil, nil
	t.declared, t.subs = nil, nil
	_ = t.setState(Disconnected)
	t.mu.Unlock()

	t.logger.Info(constant.TransportDisconnected, log.String("url", t.url))
	return nil
}

// Reconnect tears down any current connection and connects again.
// Queues and consumers must be declared again afterwards.
func (t *Transport) Reconnect(ctx context.Context) error {
	if err := t.Disconnect(); err != nil {
		return err
	}
	return t.Connect(ctx)
}

// Ping round-trips to the server.
func (t *Transport) Ping(ctx context.Context) error {
	nc, _, err := t.conn()
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConnectTimeout)
		defer cancel()
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		return blame.NotConnected(Connected.String()).WithCause(err)
	}
	return nil
}

// Close implements events.Broker.
func (t *Transport) Close() error {
	return t.Disconnect()
}

func (t *Transport) conn() (*nats.Conn, nats.JetStreamContext, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Connected {
		return nil, nil, blame.NotConnected(t.state.String())
	}
	return t.nc, t.js, nil
}
