package cli

import (
	"fmt"
	"strings"

	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/stream"
	"github.com/cepro/dspcontrol/telemetry"
	"github.com/spf13/cobra"
)

var metersFrames int

var metersCmd = &cobra.Command{
	Use:   "meters",
	Short: "Stream the level meters",
	Long: `Stream the level meters of every channel until interrupted or --frames
frames were printed. The simulated device is polled; a real device is
read through the push channel of its host.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, session, err := connect(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		coordinator := stream.NewCoordinator(session.Client(),
			stream.WithPollInterval(e.settings.PollInterval()),
			stream.WithPushPath(e.settings.Stream.PushPath),
		)

		frames, err := coordinator.Start(ctx)
		if err != nil {
			return err
		}
		defer coordinator.Stop()

		count := 0
		for frame := range frames {
			printf(cmd, "%s", formatFrame(frame))
			count++
			if metersFrames > 0 && count >= metersFrames {
				return nil
			}
		}
		return coordinator.Err()
	},
}

func init() {
	metersCmd.Flags().IntVarP(&metersFrames, "frames", "n", 0, "stop after this many frames (0 streams until interrupted)")
	rootCmd.AddCommand(metersCmd)
}

// formatFrame renders a frame as one line, inputs then outputs.
func formatFrame(frame telemetry.MeterFrame) string {
	var b strings.Builder
	b.WriteString(frame.Time.Format("15:04:05.000"))
	write := func(prefix string, samples []telemetry.MeterSample) {
		for i, sample := range samples {
			fmt.Fprintf(&b, "  %s%d %s/%s", prefix, i+1, device.FormatMeterLevel(sample.RMS, 1), device.FormatMeterLevel(sample.Peak, 1))
		}
	}
	write("in", frame.Inputs(device.InputCount))
	write("out", frame.Outputs(device.InputCount))
	return b.String()
}
