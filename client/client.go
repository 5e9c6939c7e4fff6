// Package client provides a single API onto a miniDSP 2x4 HD, whether it is the in-process simulator or a real device
// reachable over the network.
package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/mockdsp"
	"github.com/cepro/dspcontrol/telemetry"
)

// MockTarget is the target identifier that selects the simulated device.
const MockTarget = "mock"

// Kind identifies the transport behind a Client.
type Kind int

const (
	KindMock Kind = iota
	KindReal
)

func (k Kind) String() string {
	switch k {
	case KindMock:
		return "mock"
	case KindReal:
		return "real"
	}
	return "unknown"
}

// Client is the capability set every transport offers. Every command returns the full device state after the
// command was applied, which callers should treat as the single source of truth.
type Client interface {
	Kind() Kind

	Devices(ctx context.Context) ([]device.Device, error)
	// Status returns the state as it is now. The mock hands out a snapshot rather than its live state, so a caller
	// holding on to one sees it age; call Status again for the current state.
	Status(ctx context.Context) (*device.DeviceStatus, error)
	UpdateConfig(ctx context.Context, patch device.ConfigPatch) (*device.DeviceStatus, error)

	// MeterLevels returns one sample per channel, inputs first, each group in index order.
	MeterLevels(ctx context.Context) ([]telemetry.MeterSample, error)

	SetMasterVolume(ctx context.Context, volume float64) (*device.DeviceStatus, error)
	SetMasterMute(ctx context.Context, mute bool) (*device.DeviceStatus, error)
	SetInputSource(ctx context.Context, source device.Source) (*device.DeviceStatus, error)
	SetPreset(ctx context.Context, preset int) (*device.DeviceStatus, error)
	SetDirac(ctx context.Context, enabled bool) (*device.DeviceStatus, error)
	SetInputGain(ctx context.Context, index int, gain float64) (*device.DeviceStatus, error)
	SetInputMute(ctx context.Context, index int, mute bool) (*device.DeviceStatus, error)
	SetOutputGain(ctx context.Context, index int, gain float64) (*device.DeviceStatus, error)
	SetOutputGains(ctx context.Context, gains []device.GainSetting) (*device.DeviceStatus, error)
	SetOutputMute(ctx context.Context, index int, mute bool) (*device.DeviceStatus, error)
	SetOutputInverted(ctx context.Context, index int, inverted bool) (*device.DeviceStatus, error)
	SetOutputDelay(ctx context.Context, index int, delay float64) (*device.DeviceStatus, error)
}

var (
	_ Client = (*MockClient)(nil)
	_ Client = (*RealClient)(nil)
)

type options struct {
	engine     *mockdsp.Engine
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the client returned by New.
type Option func(*options)

// WithEngine binds a mock client to an existing engine, so that several clients see the same simulated device.
func WithEngine(engine *mockdsp.Engine) Option {
	return func(o *options) {
		o.engine = engine
	}
}

// WithHTTPClient sets the HTTP client a real client uses.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithLogger sets the logger of the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New returns the client for the given target: MockTarget selects the simulator, anything else is taken as the
// host (and optionally port or base URL) of a real device.
func New(target string, opts ...Option) Client {
	o := options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if target == MockTarget {
		engine := o.engine
		if engine == nil {
			engine = mockdsp.New()
		}
		return NewMock(engine)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return NewReal(httpClient, target, o.logger)
}
