package device

import (
	"fmt"
	"math"
)

// clamp limits value to the range [min, max].
func clamp(value, min, max float64) float64 {
	return math.Min(max, math.Max(min, value))
}

// ClampGain limits a channel gain to the -127 to 0 dB range of the device.
func ClampGain(gain float64) float64 {
	return clamp(gain, MinGain, MaxGain)
}

// ClampVolume limits the master volume. It shares the gain range.
func ClampVolume(volume float64) float64 {
	return ClampGain(volume)
}

// ClampDelay limits an output delay to the 0 to 80 ms range of the device.
func ClampDelay(delay float64) float64 {
	return clamp(delay, MinDelay, MaxDelay)
}

// ClampPreset limits a preset number to the four presets of the device.
func ClampPreset(preset int) int {
	return int(clamp(float64(preset), MinPreset, MaxPreset))
}

// FormatGain renders a gain for display, e.g. "-10.0 dB".
func FormatGain(gain float64, precision int) string {
	return fmt.Sprintf("%.*f dB", precision, gain)
}

// FormatDelay renders a delay for display, e.g. "10.00 ms".
func FormatDelay(delay float64, precision int) string {
	return fmt.Sprintf("%.*f ms", precision, delay)
}

// FormatPreset renders a zero based preset number the way the device labels it, e.g. "Preset 1".
func FormatPreset(preset int) string {
	return fmt.Sprintf("Preset %d", preset+1)
}

// FormatMeterLevel renders a meter level for display, e.g. "-60.0 dB".
func FormatMeterLevel(level float64, precision int) string {
	return fmt.Sprintf("%.*f dB", precision, level)
}
