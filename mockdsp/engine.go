package mockdsp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/telemetry"
)

// DeviceName is the name the simulated device reports in the device listing.
const DeviceName = "Mock MiniDSP 2x4 HD"

// Engine simulates a single miniDSP 2x4 HD in memory. It applies config patches exactly the way the device does and
// produces synthetic level meter readings.
//
// An Engine is safe for concurrent use. Concurrent updates are last-writer-wins per field, there is no transaction
// across fields or channels. Every client that should see the same "device" must share the same Engine.
type Engine struct {
	mu        sync.Mutex
	status    *device.DeviceStatus
	generator *telemetry.Generator
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStatus starts the engine from the given state instead of the power-on defaults.
func WithStatus(status *device.DeviceStatus) Option {
	return func(e *Engine) {
		e.status = status.Clone()
	}
}

// WithGenerator replaces the meter generator, e.g. with a deterministic one for tests.
func WithGenerator(generator *telemetry.Generator) Option {
	return func(e *Engine) {
		e.generator = generator
	}
}

// WithLogger sets the logger that state changes are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		status: device.DefaultStatus(),
		logger: slog.Default().With("component", "mockdsp"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.generator == nil {
		e.generator = telemetry.NewGenerator(len(e.status.Inputs) + len(e.status.Outputs))
	}
	return e
}

// Devices returns the device listing, which always holds the single simulated device.
func (e *Engine) Devices(ctx context.Context) []device.Device {
	return []device.Device{{ID: 0, Name: DeviceName}}
}

// Status returns the current state of the device. The result is a snapshot taken at the time of the call; it does
// not follow later updates.
func (e *Engine) Status(ctx context.Context) *device.DeviceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.status.Clone()
}

// UpdateConfig merges the patch into the device state and returns the full updated state.
//
// Patch entries that address a channel the device doesn't have are ignored (and logged), the rest of the patch is
// still applied. This matches the behaviour of the real device.
func (e *Engine) UpdateConfig(ctx context.Context, patch device.ConfigPatch) *device.DeviceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.status.Clone()

	err := e.status.Apply(patch)
	if err != nil {
		e.logger.Warn("Ignored part of config patch", "error", err)
	}

	e.logChanges(before, e.status)

	return e.status.Clone()
}

// MeterLevels advances the synthetic signal by one tick and returns a sample for every channel, inputs first.
func (e *Engine) MeterLevels(ctx context.Context) []telemetry.MeterSample {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.generator.Next()
}

// logChanges writes a debug line for every section of the state that differs between `before` and `after`.
func (e *Engine) logChanges(before, after *device.DeviceStatus) {
	if before.Master != after.Master {
		e.logger.Debug("Master changed", "before", before.Master, "after", after.Master)
	}
	for i := range after.Inputs {
		if before.Inputs[i] != after.Inputs[i] {
			e.logger.Debug("Input changed", "index", after.Inputs[i].Index, "before", before.Inputs[i], "after", after.Inputs[i])
		}
	}
	for i := range after.Outputs {
		if before.Outputs[i] != after.Outputs[i] {
			e.logger.Debug("Output changed", "index", after.Outputs[i].Index, "before", before.Outputs[i], "after", after.Outputs[i])
		}
	}
}
