package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var configGetKey string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect settings and manage stored overrides",
}

var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Resolve a setting and show where it came from",
	Long: `Resolve a setting by dot path, e.g. minidsp.api_url. With --key the
override store is consulted first under that key.

Examples:
  dspcontrol config get minidsp.api_url --key minidsp-host
  dspcontrol config get stream.poll_interval_ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		value := e.resolver.Get(ctx, args[0], configGetKey)
		if !value.Exists() {
			printf(cmd, "%s is not set", args[0])
			return nil
		}
		printf(cmd, "%s = %s (%s)", args[0], value.String(), value.Source())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store an override",
	Long: `Store an override. Values that are valid JSON are stored as is, anything
else is stored as a JSON string.

Examples:
  dspcontrol config set minidsp-host 10.0.0.2:5380
  dspcontrol config set minidsp-mock true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		value := args[1]
		if !json.Valid([]byte(value)) {
			encoded, _ := json.Marshal(value)
			value = string(encoded)
		}
		return e.store.Set(ctx, args[0], value)
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove an override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		return e.store.Delete(ctx, args[0])
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		overrides, err := e.store.List(ctx)
		if err != nil {
			return err
		}
		for _, override := range overrides {
			printf(cmd, "%s = %s", override.Key, override.Value)
		}
		return nil
	},
}

func init() {
	configGetCmd.Flags().StringVar(&configGetKey, "key", "", "override key to look up first")
	configCmd.AddCommand(configGetCmd, configSetCmd, configUnsetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
