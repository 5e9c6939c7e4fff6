package telemetry

import (
	"math"
	"math/rand"
	"time"
)

// Shape of the synthetic signal.
const (
	BaseLevel      = -30.0 // dB, centre of the oscillation
	LevelVariation = 20.0  // dB, so the target swings between -50 and -10
	MaxRMSStep     = 3.0   // dB, the most the RMS may move in one tick
	PeakDecay      = 0.5   // dB per tick
	PeakChance     = 0.05  // probability of a peak spike per channel per tick
	PeakVariation  = 6.0   // dB, largest spike above the RMS

	DefaultPhaseStep = 0.1 // radians per tick
	initialLevel     = -20.0
)

// channelState is the signal state of a single channel.
type channelState struct {
	phase       float64
	phaseOffset float64
	rms         float64
	peak        float64
}

// Generator produces plausible looking level meter readings for a set of channels. Each call to Next advances the
// signal by one tick.
//
// A Generator is not safe for concurrent use and shares no state with any other Generator.
type Generator struct {
	channels  []channelState
	phaseStep float64
	variation float64
	rand      *rand.Rand
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithInitialPhase starts every channel at the given phase (radians) instead of 0.
func WithInitialPhase(phase float64) GeneratorOption {
	return func(g *Generator) {
		for i := range g.channels {
			g.channels[i].phase = wrapPhase(phase)
		}
	}
}

// WithPhaseStep sets how far the phase advances each tick.
func WithPhaseStep(step float64) GeneratorOption {
	return func(g *Generator) {
		g.phaseStep = step
	}
}

// WithVariation scales the random peak spikes. Zero disables all randomness, which makes the output deterministic.
func WithVariation(variation float64) GeneratorOption {
	return func(g *Generator) {
		g.variation = variation
	}
}

// WithRand sets the random source used for peak spikes.
func WithRand(r *rand.Rand) GeneratorOption {
	return func(g *Generator) {
		g.rand = r
	}
}

// NewGenerator returns a generator for `channelCount` channels. The channels are spread evenly out of phase so that
// they don't move in lockstep.
func NewGenerator(channelCount int, opts ...GeneratorOption) *Generator {
	g := &Generator{
		channels:  make([]channelState, channelCount),
		phaseStep: DefaultPhaseStep,
		variation: 1,
	}
	for i := range g.channels {
		g.channels[i] = channelState{
			phaseOffset: float64(i) * 2 * math.Pi / float64(channelCount),
			rms:         initialLevel,
			peak:        initialLevel,
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rand == nil {
		g.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

// ChannelCount returns the number of channels the generator produces samples for.
func (g *Generator) ChannelCount() int {
	return len(g.channels)
}

// Next advances every channel by one tick and returns the new samples in channel order.
func (g *Generator) Next() []MeterSample {
	samples := make([]MeterSample, len(g.channels))
	for i := range g.channels {
		samples[i] = g.step(&g.channels[i])
	}
	return samples
}

// step advances a single channel by one tick.
func (g *Generator) step(c *channelState) MeterSample {
	c.phase = wrapPhase(c.phase + g.phaseStep)

	// the RMS chases the target but is rate limited so the meter never jumps
	target := BaseLevel + math.Sin(c.phase+c.phaseOffset)*LevelVariation
	delta := target - c.rms
	c.rms += math.Copysign(math.Min(MaxRMSStep, math.Abs(delta)), delta)

	// peak hold: never below the RMS, decays slowly towards it
	c.peak = math.Max(c.peak, c.rms)
	c.peak = math.Max(c.rms, c.peak-PeakDecay)

	if g.variation > 0 && g.rand.Float64() < PeakChance {
		c.peak = c.rms + g.rand.Float64()*PeakVariation*g.variation
	}

	c.rms = clampLevel(c.rms)
	c.peak = math.Max(c.rms, clampLevel(c.peak))

	return MeterSample{RMS: c.rms, Peak: c.peak}
}

func clampLevel(level float64) float64 {
	return math.Min(MaxDB, math.Max(MinDB, level))
}

func wrapPhase(phase float64) float64 {
	phase = math.Mod(phase, 2*math.Pi)
	if phase < 0 {
		phase += 2 * math.Pi
	}
	return phase
}
