package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	eventQueueSize     = 64
	defaultDialTimeout = 10 * time.Second
	defaultSendTimeout = 10 * time.Second
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithIdentity sets the initial identity.
func WithIdentity(name string) Option {
	return func(d *Dispatcher) {
		if clean := SanitizeIdentity(name); clean != "" {
			d.state.identity = clean
		}
	}
}

// WithAutoConnect makes Run issue a Connect before consuming events.
func WithAutoConnect(on bool) Option {
	return func(d *Dispatcher) { d.autoConnect = on }
}

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.dialTimeout = t }
}

// WithSendTimeout bounds a single send operation.
func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.sendTimeout = t }
}

// WithRegisterer registers the dispatcher metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) { d.metrics = NewMetrics(reg) }
}

// Dispatcher is the single serialization point of the client. Intents from
// the UI and events from background units are queued and applied to the
// client state one at a time by the goroutine running Run.
type Dispatcher struct {
	addr   string
	opener Opener
	log    zerolog.Logger

	autoConnect bool
	dialTimeout time.Duration
	sendTimeout time.Duration
	metrics     *Metrics

	events  chan event
	done    chan struct{}
	running atomic.Bool
	stop    sync.Once
	baseCtx context.Context
	units   sync.WaitGroup

	// owned by the goroutine applying events
	state clientState
	life  lifecycle

	snap   atomic.Pointer[Snapshot]
	subMu  sync.Mutex
	subs   map[chan Snapshot]struct{}
	closed bool
}

// NewDispatcher creates a dispatcher for the server at addr.
func NewDispatcher(addr string, opener Opener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		addr:        addr,
		opener:      opener,
		log:         log.Logger,
		dialTimeout: defaultDialTimeout,
		sendTimeout: defaultSendTimeout,
		events:      make(chan event, eventQueueSize),
		done:        make(chan struct{}),
		baseCtx:     context.Background(),
		subs:        make(map[chan Snapshot]struct{}),
		state: clientState{
			identity: DefaultIdentity,
			log:      make([]ChatMessage, 0, 64),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}
	d.publish()
	return d
}

// Run applies events until ctx is cancelled. On return the live connection
// is closed and all background units have finished. A dispatcher runs once.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.running.Swap(true) {
		return ErrDispatcherRunning
	}
	d.baseCtx = ctx
	defer d.shutdown()

	d.log.Info().Str("addr", d.addr).Msg("[chat] dispatcher started")
	if d.autoConnect {
		d.apply(connectIntent{})
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			d.apply(ev)
		}
	}
}

func (d *Dispatcher) shutdown() {
	d.stop.Do(func() {
		close(d.done)
		d.life.lost()
		d.units.Wait()
		d.drain()
		d.publish()

		d.subMu.Lock()
		d.closed = true
		for ch := range d.subs {
			close(ch)
			delete(d.subs, ch)
		}
		d.subMu.Unlock()
		d.log.Info().Msg("[chat] dispatcher stopped")
	})
}

// drain discards queued events, closing connections nobody will install.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.events:
			if res, ok := ev.(connectResult); ok && res.conn != nil {
				_ = res.conn.Close()
			}
		default:
			return
		}
	}
}

// Connect requests a connection attempt.
func (d *Dispatcher) Connect() { d.post(connectIntent{}) }

// SetIdentity changes the name used for outgoing messages.
func (d *Dispatcher) SetIdentity(name string) { d.post(identityIntent{name: name}) }

// UpdateComposedText replaces the pending input.
func (d *Dispatcher) UpdateComposedText(text string) { d.post(draftIntent{text: text}) }

// Send requests that the pending input be sent.
func (d *Dispatcher) Send() { d.post(sendIntent{}) }

// Snapshot returns the latest published state.
func (d *Dispatcher) Snapshot() Snapshot { return *d.snap.Load() }

// Subscribe returns a channel receiving the latest snapshot after every
// applied event. Slow readers only see the newest snapshot. The channel is
// closed by cancel or when Run returns.
func (d *Dispatcher) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if d.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- *d.snap.Load()
	d.subs[ch] = struct{}{}
	return ch, func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		if _, ok := d.subs[ch]; ok {
			delete(d.subs, ch)
			close(ch)
		}
	}
}

// post queues ev. It reports false once the dispatcher has stopped.
func (d *Dispatcher) post(ev event) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.events <- ev:
		return true
	case <-d.done:
		return false
	}
}

// spawn runs fn as a background unit tracked for shutdown.
func (d *Dispatcher) spawn(fn func()) {
	d.units.Add(1)
	go func() {
		defer d.units.Done()
		fn()
	}()
}

func (d *Dispatcher) publish() {
	snap := d.buildSnapshot()
	d.snap.Store(snap)
	d.metrics.observeStatus(snap.Status)

	d.subMu.Lock()
	defer d.subMu.Unlock()
	for ch := range d.subs {
		select {
		case ch <- *snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- *snap
		}
	}
}

// apply mutates the client state for one event and publishes the result.
func (d *Dispatcher) apply(ev event) {
	d.metrics.eventsApplied.WithLabelValues(ev.kind()).Inc()
	switch ev := ev.(type) {
	case connectIntent:
		d.handleConnect()
	case connectResult:
		d.handleConnectResult(ev)
	case connectionLost:
		d.handleConnectionLost(ev)
	case messageReceived:
		if !d.life.current(ev.gen) {
			d.log.Debug().Uint64("gen", ev.gen).Msg("[chat] drop message from stale connection")
			return
		}
		d.state.log = append(d.state.log, ev.msg)
		d.metrics.messagesRecv.Inc()
	case sendResult:
		if ev.err != nil {
			d.setError(ev.err)
			d.metrics.messagesSent.WithLabelValues("error").Inc()
		} else {
			d.log.Info().Str("text", ev.text).Msg("[chat] message sent")
			d.metrics.messagesSent.WithLabelValues("ok").Inc()
		}
	case identityIntent:
		clean := SanitizeIdentity(ev.name)
		if clean == "" {
			d.log.Debug().Str("name", ev.name).Msg("[chat] ignore empty identity")
			return
		}
		d.state.identity = clean
	case draftIntent:
		d.state.draft = ev.text
	case sendIntent:
		d.handleSend()
	case errorOccurred:
		if !d.life.current(ev.gen) {
			d.log.Debug().Err(ev.err).Uint64("gen", ev.gen).Msg("[chat] drop error from stale connection")
			return
		}
		d.setError(ev.err)
	}
	if !d.life.consistent() {
		d.log.Error().Str("status", d.life.status.String()).Msg("[chat] status and send capability disagree")
	}
	d.publish()
}

func (d *Dispatcher) setError(err error) {
	d.state.lastErr = err
	d.metrics.errors.WithLabelValues(errorKind(err)).Inc()
	d.log.Warn().Err(err).Msg("[chat] error")
}

func (d *Dispatcher) handleConnect() {
	gen, ok := d.life.beginConnect()
	if !ok {
		d.log.Debug().Str("status", d.life.status.String()).Msg("[chat] connect ignored")
		return
	}
	d.log.Info().Str("addr", d.addr).Uint64("gen", gen).Msg("[chat] connecting")

	ctx, addr, opener, timeout := d.baseCtx, d.addr, d.opener, d.dialTimeout
	d.spawn(func() {
		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		conn, err := open(dctx, opener, addr, gen)
		if !d.post(connectResult{gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	})
}

func (d *Dispatcher) handleConnectResult(ev connectResult) {
	if !d.life.current(ev.gen) || d.life.status != StatusConnecting {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}
	if ev.err != nil {
		d.metrics.connectAttempts.WithLabelValues("error").Inc()
		d.life.failed()
		d.setError(ev.err)
		return
	}

	tx, rx, err := ev.conn.Split()
	if err != nil {
		d.metrics.connectAttempts.WithLabelValues("error").Inc()
		_ = ev.conn.Close()
		d.life.failed()
		d.setError(&ConnectError{Addr: d.addr, Err: err})
		return
	}
	d.metrics.connectAttempts.WithLabelValues("ok").Inc()
	d.life.connected(tx)
	d.state.lastErr = nil
	d.spawn(func() {
		if err := readLoop(rx, d.post); err != nil {
			d.log.Error().Err(err).Uint64("gen", rx.gen).Msg("[chat] read loop not started")
		}
	})
	d.log.Info().Str("addr", d.addr).Uint64("gen", ev.gen).Msg("[chat] connected")
}

func (d *Dispatcher) handleConnectionLost(ev connectionLost) {
	if !d.life.current(ev.gen) || d.life.status != StatusConnected {
		return
	}
	d.life.lost()
	d.log.Info().Uint64("gen", ev.gen).Msg("[chat] connection lost")
}

func (d *Dispatcher) handleSend() {
	tx := d.life.sender
	if d.life.status != StatusConnected || tx == nil {
		d.setError(ErrNotConnected)
		return
	}
	if d.state.draft == "" {
		return
	}
	msg := NewMessage(d.state.identity, d.state.draft)
	payload, err := Encode(msg)
	if err != nil {
		d.setError(err)
		return
	}
	d.state.draft = ""

	ctx, timeout, text := d.baseCtx, d.sendTimeout, msg.Text
	d.spawn(func() {
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := tx.Send(sctx, payload)
		d.post(sendResult{gen: tx.gen, text: text, err: err})
	})
}
