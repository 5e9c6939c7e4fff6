package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cepro/dspcontrol/device"
	"github.com/google/uuid"
)

// Session tracks the connection to the device behind a Client and keeps the last known device state.
//
// Commands issued through the session replace LastStatus with the state the device returned, so the session always
// holds the device's own view rather than a locally merged one.
type Session struct {
	client Client
	target string
	logger *slog.Logger

	mu          sync.Mutex
	id          uuid.UUID
	connected   bool
	lastStatus  *device.DeviceStatus
	linkOutputs bool
}

func NewSession(client Client, target string) *Session {
	return &Session{
		client: client,
		target: target,
		logger: slog.Default().With("component", "session", "target", target),
	}
}

// Client returns the client the session issues its commands through.
func (s *Session) Client() Client {
	return s.client
}

// Connect checks that the target has a device and fetches its state. On failure the session stays disconnected and
// a *ConnectionError is returned.
func (s *Session) Connect(ctx context.Context) error {
	devices, err := s.client.Devices(ctx)
	if err != nil {
		return &ConnectionError{Target: s.target, Err: err}
	}
	if len(devices) == 0 {
		return &ConnectionError{Target: s.target, Err: ErrNoDevices}
	}

	status, err := s.client.Status(ctx)
	if err != nil {
		return &ConnectionError{Target: s.target, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = uuid.New()
	s.connected = true
	s.lastStatus = status

	s.logger.Info("Connected", "session", s.id, "device", devices[0].Name)

	return nil
}

// Disconnect forgets the session state. The device itself is left as it is.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		s.logger.Info("Disconnected", "session", s.id)
	}
	s.id = uuid.Nil
	s.connected = false
	s.lastStatus = nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ID returns the ID of the current session, or uuid.Nil when disconnected.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// LastStatus returns a copy of the most recent device state, or nil when disconnected.
func (s *Session) LastStatus() *device.DeviceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastStatus == nil {
		return nil
	}
	return s.lastStatus.Clone()
}

// SetLinkOutputs links the gains of the first output pair (left and right).
func (s *Session) SetLinkOutputs(linked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkOutputs = linked
}

func (s *Session) LinkOutputs() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkOutputs
}

// Refresh fetches the device state again.
func (s *Session) Refresh(ctx context.Context) (*device.DeviceStatus, error) {
	return s.track(s.client.Status(ctx))
}

// Apply sends a raw patch to the device.
func (s *Session) Apply(ctx context.Context, patch device.ConfigPatch) (*device.DeviceStatus, error) {
	return s.track(s.client.UpdateConfig(ctx, patch))
}

func (s *Session) SetMasterVolume(ctx context.Context, volume float64) (*device.DeviceStatus, error) {
	return s.track(s.client.SetMasterVolume(ctx, volume))
}

func (s *Session) SetMasterMute(ctx context.Context, mute bool) (*device.DeviceStatus, error) {
	return s.track(s.client.SetMasterMute(ctx, mute))
}

func (s *Session) SetInputSource(ctx context.Context, source device.Source) (*device.DeviceStatus, error) {
	return s.track(s.client.SetInputSource(ctx, source))
}

func (s *Session) SetPreset(ctx context.Context, preset int) (*device.DeviceStatus, error) {
	return s.track(s.client.SetPreset(ctx, preset))
}

func (s *Session) SetDirac(ctx context.Context, enabled bool) (*device.DeviceStatus, error) {
	return s.track(s.client.SetDirac(ctx, enabled))
}

func (s *Session) SetInputGain(ctx context.Context, index int, gain float64) (*device.DeviceStatus, error) {
	return s.track(s.client.SetInputGain(ctx, index, gain))
}

func (s *Session) SetInputMute(ctx context.Context, index int, mute bool) (*device.DeviceStatus, error) {
	return s.track(s.client.SetInputMute(ctx, index, mute))
}

// SetOutputGain sets the gain of one output. When the outputs are linked, a change on either output of the first pair
// is sent as a single update for both.
func (s *Session) SetOutputGain(ctx context.Context, index int, gain float64) (*device.DeviceStatus, error) {
	if s.LinkOutputs() && (index == 0 || index == 1) {
		return s.track(s.client.SetOutputGains(ctx, []device.GainSetting{
			{Index: 0, Gain: gain},
			{Index: 1, Gain: gain},
		}))
	}
	return s.track(s.client.SetOutputGain(ctx, index, gain))
}

func (s *Session) SetOutputMute(ctx context.Context, index int, mute bool) (*device.DeviceStatus, error) {
	return s.track(s.client.SetOutputMute(ctx, index, mute))
}

func (s *Session) SetOutputInverted(ctx context.Context, index int, inverted bool) (*device.DeviceStatus, error) {
	return s.track(s.client.SetOutputInverted(ctx, index, inverted))
}

func (s *Session) SetOutputDelay(ctx context.Context, index int, delay float64) (*device.DeviceStatus, error) {
	return s.track(s.client.SetOutputDelay(ctx, index, delay))
}

// track records the state returned by a command.
func (s *Session) track(status *device.DeviceStatus, err error) (*device.DeviceStatus, error) {
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.target, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		s.lastStatus = status.Clone()
	}
	return status, nil
}
