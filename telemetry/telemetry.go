package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Level meter range in dB.
const (
	MinDB = -60.0
	MaxDB = 0.0
)

// MeterSample is one level meter reading of a single channel.
type MeterSample struct {
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"` // always >= RMS
}

// SilentSample is what a meter shows when there is no signal or no connection.
var SilentSample = MeterSample{RMS: MinDB, Peak: MinDB}

// MeterFrame holds one meter reading of every channel of a device, inputs first then outputs, in index order.
type MeterFrame struct {
	ID      uuid.UUID
	Time    time.Time
	Samples []MeterSample
}

// NewMeterFrame stamps the given samples as a frame taken at time t.
func NewMeterFrame(t time.Time, samples []MeterSample) MeterFrame {
	return MeterFrame{
		ID:      uuid.New(),
		Time:    t,
		Samples: samples,
	}
}

// Inputs returns the input channel samples of the frame given the number of input channels.
func (f MeterFrame) Inputs(inputCount int) []MeterSample {
	if inputCount > len(f.Samples) {
		inputCount = len(f.Samples)
	}
	return f.Samples[:inputCount]
}

// Outputs returns the output channel samples of the frame given the number of input channels.
func (f MeterFrame) Outputs(inputCount int) []MeterSample {
	if inputCount > len(f.Samples) {
		inputCount = len(f.Samples)
	}
	return f.Samples[inputCount:]
}
