package client

import (
	"context"

	"github.com/cepro/dspcontrol/device"
)

// updateFunc applies a patch on a device and returns the resulting state.
type updateFunc func(ctx context.Context, patch device.ConfigPatch) (*device.DeviceStatus, error)

// commands implements the convenience commands of Client on top of a single UpdateConfig call each. Values are clamped
// to the device ranges before they are sent.
type commands struct {
	update updateFunc
}

func (c commands) SetMasterVolume(ctx context.Context, volume float64) (*device.DeviceStatus, error) {
	return c.updateMaster(ctx, device.MasterPatch{Volume: device.Ptr(device.ClampVolume(volume))})
}

func (c commands) SetMasterMute(ctx context.Context, mute bool) (*device.DeviceStatus, error) {
	return c.updateMaster(ctx, device.MasterPatch{Mute: device.Ptr(mute)})
}

// SetInputSource selects the active input. Unsupported sources are rejected before anything is sent.
func (c commands) SetInputSource(ctx context.Context, source device.Source) (*device.DeviceStatus, error) {
	if !source.Valid() {
		return nil, &device.InvalidSourceError{Source: source}
	}
	return c.updateMaster(ctx, device.MasterPatch{Source: device.Ptr(source)})
}

func (c commands) SetPreset(ctx context.Context, preset int) (*device.DeviceStatus, error) {
	return c.updateMaster(ctx, device.MasterPatch{Preset: device.Ptr(device.ClampPreset(preset))})
}

func (c commands) SetDirac(ctx context.Context, enabled bool) (*device.DeviceStatus, error) {
	return c.updateMaster(ctx, device.MasterPatch{Dirac: device.Ptr(enabled)})
}

func (c commands) SetInputGain(ctx context.Context, index int, gain float64) (*device.DeviceStatus, error) {
	return c.updateInput(ctx, device.InputPatch{Index: index, Gain: device.Ptr(device.ClampGain(gain))})
}

func (c commands) SetInputMute(ctx context.Context, index int, mute bool) (*device.DeviceStatus, error) {
	return c.updateInput(ctx, device.InputPatch{Index: index, Mute: device.Ptr(mute)})
}

func (c commands) SetOutputGain(ctx context.Context, index int, gain float64) (*device.DeviceStatus, error) {
	return c.SetOutputGains(ctx, []device.GainSetting{{Index: index, Gain: gain}})
}

// SetOutputGains sets the gain of several outputs in one update.
func (c commands) SetOutputGains(ctx context.Context, gains []device.GainSetting) (*device.DeviceStatus, error) {
	outputs := make([]device.OutputPatch, 0, len(gains))
	for _, g := range gains {
		outputs = append(outputs, device.OutputPatch{Index: g.Index, Gain: device.Ptr(device.ClampGain(g.Gain))})
	}
	return c.update(ctx, device.ConfigPatch{Outputs: outputs})
}

func (c commands) SetOutputMute(ctx context.Context, index int, mute bool) (*device.DeviceStatus, error) {
	return c.updateOutput(ctx, device.OutputPatch{Index: index, Mute: device.Ptr(mute)})
}

func (c commands) SetOutputInverted(ctx context.Context, index int, inverted bool) (*device.DeviceStatus, error) {
	return c.updateOutput(ctx, device.OutputPatch{Index: index, Inverted: device.Ptr(inverted)})
}

func (c commands) SetOutputDelay(ctx context.Context, index int, delay float64) (*device.DeviceStatus, error) {
	return c.updateOutput(ctx, device.OutputPatch{Index: index, Delay: device.Ptr(device.ClampDelay(delay))})
}

func (c commands) updateMaster(ctx context.Context, patch device.MasterPatch) (*device.DeviceStatus, error) {
	return c.update(ctx, device.ConfigPatch{Master: &patch})
}

func (c commands) updateInput(ctx context.Context, patch device.InputPatch) (*device.DeviceStatus, error) {
	return c.update(ctx, device.ConfigPatch{Inputs: []device.InputPatch{patch}})
}

func (c commands) updateOutput(ctx context.Context, patch device.OutputPatch) (*device.DeviceStatus, error) {
	return c.update(ctx, device.ConfigPatch{Outputs: []device.OutputPatch{patch}})
}
