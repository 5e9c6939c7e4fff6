package device

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {

	tests := []struct {
		name     string
		patch    ConfigPatch
		expected func(s *DeviceStatus) // mutates a default status into the expected result
	}{
		{
			name:     "Empty patch",
			patch:    ConfigPatch{},
			expected: func(s *DeviceStatus) {},
		},
		{
			name:     "Master volume only",
			patch:    ConfigPatch{Master: &MasterPatch{Volume: Ptr(-20.0)}},
			expected: func(s *DeviceStatus) { s.Master.Volume = -20 },
		},
		{
			name: "Master source and dirac",
			patch: ConfigPatch{Master: &MasterPatch{
				Source: Ptr(SourceToslink),
				Dirac:  Ptr(true),
			}},
			expected: func(s *DeviceStatus) {
				s.Master.Source = SourceToslink
				s.Master.Dirac = true
			},
		},
		{
			name: "Two output gains",
			patch: ConfigPatch{Outputs: []OutputPatch{
				{Index: 0, Gain: Ptr(-3.0)},
				{Index: 1, Gain: Ptr(-4.0)},
			}},
			expected: func(s *DeviceStatus) {
				s.Outputs[0].Gain = -3
				s.Outputs[1].Gain = -4
			},
		},
		{
			name: "Output fields other than gain",
			patch: ConfigPatch{Outputs: []OutputPatch{
				{Index: 3, Delay: Ptr(12.5), Inverted: Ptr(true), Mute: Ptr(true), Label: Ptr("Sub")},
			}},
			expected: func(s *DeviceStatus) {
				s.Outputs[3].Delay = 12.5
				s.Outputs[3].Inverted = true
				s.Outputs[3].Mute = true
				s.Outputs[3].Label = "Sub"
			},
		},
		{
			name:     "Input mute",
			patch:    ConfigPatch{Inputs: []InputPatch{{Index: 1, Mute: Ptr(true)}}},
			expected: func(s *DeviceStatus) { s.Inputs[1].Mute = true },
		},
		{
			name: "Values outside the device ranges are clamped",
			patch: ConfigPatch{
				Master:  &MasterPatch{Volume: Ptr(10.0), Preset: Ptr(7)},
				Inputs:  []InputPatch{{Index: 0, Gain: Ptr(-300.0)}},
				Outputs: []OutputPatch{{Index: 2, Delay: Ptr(100.0)}},
			},
			expected: func(s *DeviceStatus) {
				s.Master.Volume = 0
				s.Master.Preset = 3
				s.Inputs[0].Gain = -127
				s.Outputs[2].Delay = 80
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status := DefaultStatus()
			err := status.Apply(tc.patch)
			assert.NoError(t, err)

			expected := DefaultStatus()
			tc.expected(expected)
			assert.Equal(t, expected, status)
		})
	}
}

func TestApplyUnknownChannelIndex(t *testing.T) {
	status := DefaultStatus()

	err := status.Apply(ConfigPatch{
		Outputs: []OutputPatch{
			{Index: 9, Gain: Ptr(-1.0)},
			{Index: 2, Gain: Ptr(-2.0)},
		},
		Inputs: []InputPatch{{Index: -1, Mute: Ptr(true)}},
	})

	require.Error(t, err)
	var unknown *UnknownChannelError
	assert.True(t, errors.As(err, &unknown))

	// the valid entry is still applied and nothing else moved
	expected := DefaultStatus()
	expected.Outputs[2].Gain = -2
	assert.Equal(t, expected, status)
	assert.Len(t, status.Outputs, OutputCount)
	assert.Len(t, status.Inputs, InputCount)
}

func TestApplyInvalidSource(t *testing.T) {
	status := DefaultStatus()

	err := status.Apply(ConfigPatch{Master: &MasterPatch{Source: Ptr(Source("HDMI")), Mute: Ptr(true)}})

	var invalid *InvalidSourceError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, SourceUSB, status.Master.Source)
	assert.True(t, status.Master.Mute)
}

// TestApplyFromWireJSON checks that fields absent from the JSON body of a config request are left unchanged.
func TestApplyFromWireJSON(t *testing.T) {
	body := `{"master_status":{"mute":true},"outputs":[{"index":1,"inverted":true}]}`

	var patch ConfigPatch
	require.NoError(t, json.Unmarshal([]byte(body), &patch))

	status := DefaultStatus()
	require.NoError(t, status.Apply(patch))

	assert.True(t, status.Master.Mute)
	assert.Equal(t, -10.0, status.Master.Volume)
	assert.Equal(t, SourceUSB, status.Master.Source)
	assert.True(t, status.Outputs[1].Inverted)
	assert.Equal(t, -10.0, status.Outputs[1].Gain)
	assert.Equal(t, "Output 2", status.Outputs[1].Label)
	assert.Nil(t, patch.Inputs)
}

func TestPatchRequiresIndex(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "output without index", body: `{"outputs":[{"gain":-55}]}`},
		{name: "input without index", body: `{"inputs":[{"mute":true}]}`},
		{name: "null index", body: `{"outputs":[{"index":null,"mute":true}]}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var patch ConfigPatch
			err := json.Unmarshal([]byte(test.body), &patch)
			assert.ErrorIs(t, err, ErrMissingIndex)
		})
	}

	var patch ConfigPatch
	require.NoError(t, json.Unmarshal([]byte(`{"inputs":[{"index":1,"label":"Turntable","gain":-3}]}`), &patch))
	assert.Equal(t, []InputPatch{{Index: 1, Label: Ptr("Turntable"), Gain: Ptr(-3.0)}}, patch.Inputs)
}

func TestPatchJSONOmitsAbsentFields(t *testing.T) {
	patch := ConfigPatch{Outputs: []OutputPatch{{Index: 0, Gain: Ptr(-10.0)}}}

	data, err := json.Marshal(patch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"outputs":[{"index":0,"gain":-10}]}`, string(data))
}

func TestClone(t *testing.T) {
	status := DefaultStatus()
	clone := status.Clone()

	clone.Outputs[0].Gain = -50
	clone.Master.Volume = -50

	assert.Equal(t, -10.0, status.Outputs[0].Gain)
	assert.Equal(t, -10.0, status.Master.Volume)
}
