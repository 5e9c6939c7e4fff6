package client

import (
	"context"

	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/mockdsp"
	"github.com/cepro/dspcontrol/telemetry"
)

// MockClient talks to an in-process simulated device.
type MockClient struct {
	commands
	engine *mockdsp.Engine
}

// NewMock returns a client bound to the given engine.
func NewMock(engine *mockdsp.Engine) *MockClient {
	m := &MockClient{engine: engine}
	m.commands = commands{update: m.UpdateConfig}
	return m
}

func (m *MockClient) Kind() Kind {
	return KindMock
}

// Engine returns the simulated device the client is bound to.
func (m *MockClient) Engine() *mockdsp.Engine {
	return m.engine
}

func (m *MockClient) Devices(ctx context.Context) ([]device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.engine.Devices(ctx), nil
}

func (m *MockClient) Status(ctx context.Context) (*device.DeviceStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.engine.Status(ctx), nil
}

func (m *MockClient) UpdateConfig(ctx context.Context, patch device.ConfigPatch) (*device.DeviceStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.engine.UpdateConfig(ctx, patch), nil
}

func (m *MockClient) MeterLevels(ctx context.Context) ([]telemetry.MeterSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.engine.MeterLevels(ctx), nil
}
