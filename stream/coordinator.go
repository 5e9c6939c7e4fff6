// Package stream delivers a live sequence of meter frames from a device to a subscriber, either by polling the device
// or by subscribing to a push channel served next to it.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cepro/dspcontrol/client"
	"github.com/cepro/dspcontrol/telemetry"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultPollInterval is the cadence of the polling strategy (10 Hz).
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultPushInterval is the cadence the push server writes frames at (~30 Hz).
	DefaultPushInterval = 33 * time.Millisecond

	// DefaultPushPath is where the push channel is served relative to the device API.
	DefaultPushPath = "/meters/stream"
)

// ErrAlreadyStreaming is returned by Start when a stream is already running.
var ErrAlreadyStreaming = errors.New("already streaming")

type State int

const (
	Idle State = iota
	Streaming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	}
	return "unknown"
}

// Source produces meter frames until the context is cancelled, `emit` returns false, or the source fails.
type Source interface {
	Stream(ctx context.Context, emit func(telemetry.MeterFrame) bool) error
}

// Coordinator runs one Source at a time and hands its frames to the subscriber. It moves between Idle and Streaming
// and can be started again after every stop or failure.
type Coordinator struct {
	source  Source
	metrics *Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

type options struct {
	source   Source
	clock    clockwork.Clock
	interval time.Duration
	pushPath string
	metrics  *Metrics
	logger   *slog.Logger
}

type Option func(*options)

// WithSource replaces the strategy that would be picked for the client.
func WithSource(source Source) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithClock sets the clock the polling strategy ticks on.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithPollInterval sets the cadence of the polling strategy.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.interval = interval
	}
}

// WithPushPath sets the path of the push channel on a real device's host.
func WithPushPath(path string) Option {
	return func(o *options) {
		o.pushPath = path
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewCoordinator returns a coordinator for the given client. The simulated device is polled; a real device is
// expected to serve a push channel at the push path of its host.
func NewCoordinator(c client.Client, opts ...Option) *Coordinator {
	o := options{
		clock:    clockwork.NewRealClock(),
		interval: DefaultPollInterval,
		pushPath: DefaultPushPath,
		logger:   slog.Default().With("component", "stream"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	source := o.source
	if source == nil {
		source = pickSource(c, o)
	}

	return &Coordinator{
		source:  source,
		metrics: o.metrics,
		logger:  o.logger,
	}
}

func pickSource(c client.Client, o options) Source {
	located, ok := c.(interface{ BaseURL() *url.URL })
	if c.Kind() == client.KindReal && ok {
		return &PushSource{
			URL:    PushURL(located.BaseURL(), o.pushPath),
			Logger: o.logger,
		}
	}
	return &PollSource{
		Client:   c,
		Interval: o.interval,
		Clock:    o.clock,
		Metrics:  o.metrics,
		Logger:   o.logger,
	}
}

// PushURL returns the websocket URL of the push channel on the host of `base`.
func PushURL(base *url.URL, path string) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path
	u.RawQuery = ""
	return u.String()
}

// Source returns the strategy the coordinator runs.
func (c *Coordinator) Source() Source {
	return c.source
}

// Start begins streaming and returns the channel the frames are delivered on. The channel is closed when the stream
// ends, whether by Stop, by cancellation of `ctx` or by a failure of the source (see Err).
func (c *Coordinator) Start(ctx context.Context) (<-chan telemetry.MeterFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Streaming {
		return nil, ErrAlreadyStreaming
	}

	ctx, cancel := context.WithCancel(ctx)
	frames := make(chan telemetry.MeterFrame)
	done := make(chan struct{})

	c.state = Streaming
	c.cancel = cancel
	c.done = done
	c.err = nil

	c.metrics.SessionsActive.Inc()
	c.logger.Info("Streaming started")

	go c.run(ctx, cancel, frames, done)

	return frames, nil
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, frames chan<- telemetry.MeterFrame, done chan struct{}) {
	defer close(done)
	defer close(frames)
	defer cancel()

	emit := func(frame telemetry.MeterFrame) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case frames <- frame:
			c.metrics.FramesDelivered.Inc()
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := c.source.Stream(ctx, emit)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Idle
	c.cancel = nil
	c.err = err
	c.metrics.SessionsActive.Dec()

	if err != nil {
		c.metrics.Errors.Inc()
		c.logger.Error("Streaming failed", "error", err)
	} else {
		c.logger.Info("Streaming stopped")
	}
}

// Stop ends the stream and waits for the source to wind down. It is a no-op when the coordinator is idle.
//
// A frame whose send was already racing the cancellation may still reach a subscriber that is receiving while Stop
// runs. By the time Stop returns the frame channel is closed, so nothing is delivered after that.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State reports whether a stream is running.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that ended the last stream, or nil if it was stopped or is still running.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
