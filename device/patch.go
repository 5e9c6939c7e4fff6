package device

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingIndex is returned when decoding a channel entry that does not say which channel it addresses.
var ErrMissingIndex = errors.New("channel entry without index")

// ConfigPatch is a sparse update of a DeviceStatus. Only the sections and fields that are present are changed,
// everything that is absent is left as it was.
type ConfigPatch struct {
	Master  *MasterPatch  `json:"master_status,omitempty"`
	Inputs  []InputPatch  `json:"inputs,omitempty"`
	Outputs []OutputPatch `json:"outputs,omitempty"`
}

// MasterPatch is merged into MasterState. Nil fields are not changed.
type MasterPatch struct {
	Volume *float64 `json:"volume,omitempty"`
	Mute   *bool    `json:"mute,omitempty"`
	Source *Source  `json:"source,omitempty"`
	Preset *int     `json:"preset,omitempty"`
	Dirac  *bool    `json:"dirac,omitempty"`
}

// InputPatch is merged into the input channel with the same Index.
type InputPatch struct {
	Index int      `json:"index"`
	Label *string  `json:"label,omitempty"`
	Gain  *float64 `json:"gain,omitempty"`
	Mute  *bool    `json:"mute,omitempty"`
}

// OutputPatch is merged into the output channel with the same Index.
type OutputPatch struct {
	Index    int      `json:"index"`
	Label    *string  `json:"label,omitempty"`
	Gain     *float64 `json:"gain,omitempty"`
	Delay    *float64 `json:"delay,omitempty"`
	Inverted *bool    `json:"inverted,omitempty"`
	Mute     *bool    `json:"mute,omitempty"`
}

// UnmarshalJSON rejects an entry without an index, which would otherwise address input 0.
func (p *InputPatch) UnmarshalJSON(data []byte) error {
	type plain InputPatch
	var entry struct {
		plain
		Index *int `json:"index"`
	}
	err := json.Unmarshal(data, &entry)
	if err != nil {
		return err
	}
	if entry.Index == nil {
		return fmt.Errorf("input: %w", ErrMissingIndex)
	}
	*p = InputPatch(entry.plain)
	p.Index = *entry.Index
	return nil
}

// UnmarshalJSON rejects an entry without an index, which would otherwise address output 0.
func (p *OutputPatch) UnmarshalJSON(data []byte) error {
	type plain OutputPatch
	var entry struct {
		plain
		Index *int `json:"index"`
	}
	err := json.Unmarshal(data, &entry)
	if err != nil {
		return err
	}
	if entry.Index == nil {
		return fmt.Errorf("output: %w", ErrMissingIndex)
	}
	*p = OutputPatch(entry.plain)
	p.Index = *entry.Index
	return nil
}

// GainSetting is one entry of a bulk output gain update.
type GainSetting struct {
	Index int     `json:"index"`
	Gain  float64 `json:"gain"`
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// UnknownChannelError reports a patch entry that addressed a channel the device does not have.
// The entry is skipped and the rest of the patch is still applied.
type UnknownChannelError struct {
	Kind  string // "input" or "output"
	Index int
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown %s channel index %d", e.Kind, e.Index)
}

// InvalidSourceError reports a patch that named an input source the device does not support.
// The source field is skipped and the rest of the patch is still applied.
type InvalidSourceError struct {
	Source Source
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid input source '%s'", e.Source)
}

// Apply merges the patch into s in place. Numeric values are clamped to the ranges the device accepts.
//
// Entries that cannot be applied (unknown channel index, unsupported source) are skipped and returned as a joined
// error; every other entry is applied regardless. The returned error is informational, s is always left in a
// consistent state.
func (s *DeviceStatus) Apply(patch ConfigPatch) error {
	var skipped []error

	if m := patch.Master; m != nil {
		if m.Volume != nil {
			s.Master.Volume = ClampVolume(*m.Volume)
		}
		if m.Mute != nil {
			s.Master.Mute = *m.Mute
		}
		if m.Source != nil {
			if m.Source.Valid() {
				s.Master.Source = *m.Source
			} else {
				skipped = append(skipped, &InvalidSourceError{Source: *m.Source})
			}
		}
		if m.Preset != nil {
			s.Master.Preset = ClampPreset(*m.Preset)
		}
		if m.Dirac != nil {
			s.Master.Dirac = *m.Dirac
		}
	}

	for _, p := range patch.Inputs {
		target := s.input(p.Index)
		if target == nil {
			skipped = append(skipped, &UnknownChannelError{Kind: "input", Index: p.Index})
			continue
		}
		if p.Label != nil {
			target.Label = *p.Label
		}
		if p.Gain != nil {
			target.Gain = ClampGain(*p.Gain)
		}
		if p.Mute != nil {
			target.Mute = *p.Mute
		}
	}

	for _, p := range patch.Outputs {
		target := s.output(p.Index)
		if target == nil {
			skipped = append(skipped, &UnknownChannelError{Kind: "output", Index: p.Index})
			continue
		}
		if p.Label != nil {
			target.Label = *p.Label
		}
		if p.Gain != nil {
			target.Gain = ClampGain(*p.Gain)
		}
		if p.Delay != nil {
			target.Delay = ClampDelay(*p.Delay)
		}
		if p.Inverted != nil {
			target.Inverted = *p.Inverted
		}
		if p.Mute != nil {
			target.Mute = *p.Mute
		}
	}

	return errors.Join(skipped...)
}
