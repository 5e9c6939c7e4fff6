package device

import (
	"fmt"
	"strings"
)

// Channel counts of the 2x4 HD. The channel sets are index addressed and are never resized.
const (
	InputCount  = 2
	OutputCount = 4
)

// Ranges accepted by the device.
const (
	MinGain   = -127.0
	MaxGain   = 0.0
	MinDelay  = 0.0
	MaxDelay  = 80.0
	MinPreset = 0
	MaxPreset = 3
)

// Source is the active input source of the device.
type Source string

const (
	SourceAnalog  Source = "ANALOG"
	SourceToslink Source = "TOSLINK"
	SourceUSB     Source = "USB"
)

// Valid returns true if s is one of the sources the device supports.
func (s Source) Valid() bool {
	switch s {
	case SourceAnalog, SourceToslink, SourceUSB:
		return true
	}
	return false
}

// ParseSource returns the Source named by str, ignoring case.
func ParseSource(str string) (Source, error) {
	source := Source(strings.ToUpper(strings.TrimSpace(str)))
	if !source.Valid() {
		return "", fmt.Errorf("unknown input source '%s'", str)
	}
	return source, nil
}

// Device is an entry of the device listing.
type Device struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MasterState holds the device wide controls.
type MasterState struct {
	Volume float64 `json:"volume"` // dB, -127 to 0
	Mute   bool    `json:"mute"`
	Source Source  `json:"source"`
	Preset int     `json:"preset"` // 0 to 3
	Dirac  bool    `json:"dirac"`  // room correction
}

// InputChannel is one of the input lanes.
type InputChannel struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Gain  float64 `json:"gain"`
	Mute  bool    `json:"mute"`
}

// OutputChannel is one of the output lanes, which additionally carry delay and polarity inversion.
type OutputChannel struct {
	Index    int     `json:"index"`
	Label    string  `json:"label"`
	Gain     float64 `json:"gain"`
	Delay    float64 `json:"delay"` // ms, 0 to 80
	Inverted bool    `json:"inverted"`
	Mute     bool    `json:"mute"`
}

// DeviceStatus is the full state of a device and the unit every status query and config update returns.
type DeviceStatus struct {
	Master  MasterState     `json:"master"`
	Inputs  []InputChannel  `json:"inputs"`
	Outputs []OutputChannel `json:"outputs"`
}

// DefaultStatus returns the state of a freshly powered device.
func DefaultStatus() *DeviceStatus {
	status := &DeviceStatus{
		Master: MasterState{
			Volume: -10,
			Mute:   false,
			Source: SourceUSB,
			Preset: 0,
			Dirac:  false,
		},
		Inputs:  make([]InputChannel, InputCount),
		Outputs: make([]OutputChannel, OutputCount),
	}
	for i := range status.Inputs {
		status.Inputs[i] = InputChannel{Index: i, Label: fmt.Sprintf("Input %d", i+1)}
	}
	for i := range status.Outputs {
		status.Outputs[i] = OutputChannel{Index: i, Label: fmt.Sprintf("Output %d", i+1), Gain: -10}
	}
	return status
}

// Clone returns a deep copy of the status that shares no memory with s.
func (s *DeviceStatus) Clone() *DeviceStatus {
	if s == nil {
		return nil
	}
	clone := &DeviceStatus{
		Master:  s.Master,
		Inputs:  make([]InputChannel, len(s.Inputs)),
		Outputs: make([]OutputChannel, len(s.Outputs)),
	}
	copy(clone.Inputs, s.Inputs)
	copy(clone.Outputs, s.Outputs)
	return clone
}

// input returns the input channel with the given index, or nil.
func (s *DeviceStatus) input(index int) *InputChannel {
	for i := range s.Inputs {
		if s.Inputs[i].Index == index {
			return &s.Inputs[i]
		}
	}
	return nil
}

// output returns the output channel with the given index, or nil.
func (s *DeviceStatus) output(index int) *OutputChannel {
	for i := range s.Outputs {
		if s.Outputs[i].Index == index {
			return &s.Outputs[i]
		}
	}
	return nil
}
