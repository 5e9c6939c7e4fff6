package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cepro/dspcontrol/client"
	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/repository"
	"github.com/spf13/cobra"
)

// linkOutputsKey is the override key that remembers whether the first output pair is linked.
const linkOutputsKey = "link-outputs"

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices at the target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		devices, err := e.client.Devices(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, devices)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the full device state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, session, err := connect(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		return printJSON(cmd, session.LastStatus())
	},
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a device setting",
	Long: `Change a device setting. Values outside the device ranges are clamped.
Channels and presets are numbered from 1, as on the device.

Examples:
  dspcontrol set volume -20
  dspcontrol set source toslink
  dspcontrol set output-gain 1 -6
  dspcontrol set link on`,
}

// connect opens the environment and connects a session to the target.
func connect(ctx context.Context) (*env, *client.Session, error) {
	e, err := newEnv(ctx)
	if err != nil {
		return nil, nil, err
	}

	session := client.NewSession(e.client, e.target)
	err = session.Connect(ctx)
	if err != nil {
		e.Close()
		return nil, nil, err
	}

	var linked bool
	_, err = repository.GetJSON(ctx, e.store, linkOutputsKey, &linked)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	session.SetLinkOutputs(linked)

	return e, session, nil
}

type setFunc func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error)

// newSetCmd returns a `set` subcommand that connects, runs `run` and prints the resulting state.
//
// Flag parsing is done by parseSetArgs so that negative values like -20 reach `run` as arguments.
func newSetCmd(use, short string, nargs int, run setFunc) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, err := parseSetArgs(cmd, args)
			if err != nil {
				return err
			}
			if help, _ := cmd.Flags().GetBool("help"); help {
				return cmd.Help()
			}
			err = cobra.ExactArgs(nargs)(cmd, args)
			if err != nil {
				return err
			}
			err = setupLogging(logLevelFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, session, err := connect(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			status, err := run(ctx, session, args)
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}
}

// parseSetArgs separates flags from arguments. Anything that parses as a number is an argument, even with a leading
// minus; the rest is handed to the regular flag parser, including the flags inherited from the root command.
func parseSetArgs(cmd *cobra.Command, args []string) ([]string, error) {
	var flagArgs, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" || isNumber(arg) {
			positional = append(positional, arg)
			continue
		}
		flagArgs = append(flagArgs, arg)
		if takesValue(cmd, arg) && i+1 < len(args) {
			i++
			flagArgs = append(flagArgs, args[i])
		}
	}

	// ParseFlags is a no-op for commands that disable flag parsing
	flags := cmd.Flags()
	flags.AddFlagSet(cmd.InheritedFlags())
	err := flags.Parse(flagArgs)
	if err != nil {
		return nil, err
	}
	return positional, nil
}

func isNumber(str string) bool {
	_, err := strconv.ParseFloat(str, 64)
	return err == nil
}

// takesValue reports whether `arg` is a flag whose value is the next argument.
func takesValue(cmd *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	name := strings.TrimLeft(arg, "-")
	flags := cmd.Flags()
	flags.AddFlagSet(cmd.InheritedFlags())
	flag := flags.Lookup(name)
	if flag == nil && !strings.HasPrefix(arg, "--") && len(name) == 1 {
		flag = flags.ShorthandLookup(name)
	}
	return flag != nil && flag.NoOptDefVal == ""
}

func parseFloat(str string) (float64, error) {
	v, err := strconv.ParseFloat(str, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number '%s'", str)
	}
	return v, nil
}

func parseInt(str string) (int, error) {
	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer '%s'", str)
	}
	return v, nil
}

// parseSwitch accepts on/off as well as the usual boolean spellings.
func parseSwitch(str string) (bool, error) {
	switch str {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("invalid switch '%s', expected on or off", str)
	}
	return v, nil
}

// parseChannel parses a channel number as shown on the device (1 for "Input 1") and returns its 0-based index.
func parseChannel(str string, count int) (int, error) {
	channel, err := parseInt(str)
	if err != nil {
		return 0, err
	}
	if channel < 1 || channel > count {
		return 0, fmt.Errorf("channel %d out of range 1-%d", channel, count)
	}
	return channel - 1, nil
}

func init() {
	setCmd.AddCommand(
		newSetCmd("volume <dB>", "Set the master volume", 1, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			volume, err := parseFloat(args[0])
			if err != nil {
				return nil, err
			}
			return s.SetMasterVolume(ctx, volume)
		}),
		newSetCmd("mute <on|off>", "Mute or unmute the master", 1, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			mute, err := parseSwitch(args[0])
			if err != nil {
				return nil, err
			}
			return s.SetMasterMute(ctx, mute)
		}),
		newSetCmd("source <analog|toslink|usb>", "Select the input source", 1, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			source, err := device.ParseSource(args[0])
			if err != nil {
				return nil, err
			}
			return s.SetInputSource(ctx, source)
		}),
		newSetCmd("preset <1-4>", "Load a preset", 1, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			preset, err := parseInt(args[0])
			if err != nil {
				return nil, err
			}
			// presets are shown as 1 to 4 but addressed as 0 to 3
			return s.SetPreset(ctx, preset-1)
		}),
		newSetCmd("dirac <on|off>", "Enable or disable room correction", 1, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return nil, err
			}
			return s.SetDirac(ctx, enabled)
		}),
		newSetCmd("input-gain <channel> <dB>", "Set the gain of an input", 2, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			index, err := parseChannel(args[0], device.InputCount)
			if err != nil {
				return nil, err
			}
			gain, err := parseFloat(args[1])
			if err != nil {
				return nil, err
			}
			return s.SetInputGain(ctx, index, gain)
		}),
		newSetCmd("input-mute <channel> <on|off>", "Mute or unmute an input", 2, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			index, err := parseChannel(args[0], device.InputCount)
			if err != nil {
				return nil, err
			}
			mute, err := parseSwitch(args[1])
			if err != nil {
				return nil, err
			}
			return s.SetInputMute(ctx, index, mute)
		}),
		newSetCmd("output-gain <channel> <dB>", "Set the gain of an output", 2, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			index, err := parseChannel(args[0], device.OutputCount)
			if err != nil {
				return nil, err
			}
			gain, err := parseFloat(args[1])
			if err != nil {
				return nil, err
			}
			return s.SetOutputGain(ctx, index, gain)
		}),
		newSetCmd("output-mute <channel> <on|off>", "Mute or unmute an output", 2, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			index, err := parseChannel(args[0], device.OutputCount)
			if err != nil {
				return nil, err
			}
			mute, err := parseSwitch(args[1])
			if err != nil {
				return nil, err
			}
			return s.SetOutputMute(ctx, index, mute)
		}),
		newSetCmd("output-invert <channel> <on|off>", "Invert the polarity of an output", 2, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			index, err := parseChannel(args[0], device.OutputCount)
			if err != nil {
				return nil, err
			}
			inverted, err := parseSwitch(args[1])
			if err != nil {
				return nil, err
			}
			return s.SetOutputInverted(ctx, index, inverted)
		}),
		newSetCmd("output-delay <channel> <ms>", "Set the delay of an output", 2, func(ctx context.Context, s *client.Session, args []string) (*device.DeviceStatus, error) {
			index, err := parseChannel(args[0], device.OutputCount)
			if err != nil {
				return nil, err
			}
			delay, err := parseFloat(args[1])
			if err != nil {
				return nil, err
			}
			return s.SetOutputDelay(ctx, index, delay)
		}),
		setLinkCmd,
	)

	rootCmd.AddCommand(devicesCmd, statusCmd, setCmd)
}

var setLinkCmd = &cobra.Command{
	Use:   "link <on|off>",
	Short: "Link the gains of outputs 1 and 2 (left and right)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		linked, err := parseSwitch(args[0])
		if err != nil {
			return err
		}

		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		err = repository.SetJSON(ctx, e.store, linkOutputsKey, linked)
		if err != nil {
			return err
		}
		printf(cmd, "Outputs 1 and 2 linked: %t", linked)
		return nil
	},
}
