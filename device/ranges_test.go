package device

import (
	"testing"
)

func TestClamps(t *testing.T) {

	type subTest struct {
		name     string
		actual   float64
		expected float64
	}

	subTests := []subTest{
		{"gain in range", ClampGain(-50), -50},
		{"gain below range", ClampGain(-150), -127},
		{"gain above range", ClampGain(10), 0},
		{"volume in range", ClampVolume(-20), -20},
		{"volume below range", ClampVolume(-200), -127},
		{"volume above range", ClampVolume(3), 0},
		{"delay in range", ClampDelay(40), 40},
		{"delay below range", ClampDelay(-10), 0},
		{"delay above range", ClampDelay(100), 80},
		{"preset in range", float64(ClampPreset(2)), 2},
		{"preset below range", float64(ClampPreset(-1)), 0},
		{"preset above range", float64(ClampPreset(5)), 3},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			if subTest.actual != subTest.expected {
				t.Errorf("Got %v, expected %v", subTest.actual, subTest.expected)
			}
		})
	}
}

func TestFormatting(t *testing.T) {

	type subTest struct {
		name     string
		actual   string
		expected string
	}

	subTests := []subTest{
		{"gain", FormatGain(-10, 1), "-10.0 dB"},
		{"gain precision", FormatGain(-10.123, 2), "-10.12 dB"},
		{"delay", FormatDelay(10, 2), "10.00 ms"},
		{"delay precision", FormatDelay(80.456, 3), "80.456 ms"},
		{"first preset", FormatPreset(0), "Preset 1"},
		{"last preset", FormatPreset(3), "Preset 4"},
		{"meter level", FormatMeterLevel(-60, 1), "-60.0 dB"},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			if subTest.actual != subTest.expected {
				t.Errorf("Got %q, expected %q", subTest.actual, subTest.expected)
			}
		})
	}
}

func TestParseSource(t *testing.T) {
	source, err := ParseSource("toslink")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if source != SourceToslink {
		t.Errorf("Got %v, expected %v", source, SourceToslink)
	}

	_, err = ParseSource("spdif")
	if err == nil {
		t.Errorf("Expected an error for an unsupported source")
	}
}
