// Package cli implements the dspcontrol command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/cepro/dspcontrol/client"
	"github.com/cepro/dspcontrol/config"
	"github.com/cepro/dspcontrol/repository"
	"github.com/spf13/cobra"
)

var (
	hostFlag     string
	mockFlag     bool
	storeFlag    string
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "dspcontrol",
	Short: "Control and monitor a miniDSP 2x4 HD",
	Long: `Control and monitor a miniDSP 2x4 HD through its REST API, or a simulated one.

The device address is taken from --host, then the stored override, then
DSPCONTROL_MINIDSP_API_URL, then the user config file and finally the
packaged default (192.168.0.67:5380).

Examples:
  dspcontrol --mock status
  dspcontrol serve
  dspcontrol --host localhost:5380 set volume -20
  dspcontrol --host localhost:5380 meters --frames 10`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevelFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "device address (host:port or URL)")
	rootCmd.PersistentFlags().BoolVar(&mockFlag, "mock", false, "use the simulated device")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "override store path (sqlite)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", config.UserFilePath(), "user config file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level (debug, info, warn, error)")
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		return 1
	}
	return 0
}

func setupLogging(level string) error {
	var l slog.Level
	err := l.UnmarshalText([]byte(level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return nil
}

// env holds what the commands share: the override store, the resolved settings and the client.
type env struct {
	store    *repository.Repository
	resolver *config.Resolver
	settings config.Settings
	target   string
	client   client.Client
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// newEnv opens the override store and resolves the settings. The store path itself can't come from the store, so it
// is resolved from the other layers first.
func newEnv(ctx context.Context) (*env, error) {
	storePath := storeFlag
	if storePath == "" {
		storePath = config.NewDefaultResolver(nil, configFlag).Get(ctx, config.StorePathPath, "").Or(defaultStorePath())
	}

	err := os.MkdirAll(filepath.Dir(storePath), 0o755)
	if err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	store, err := repository.New(storePath)
	if err != nil {
		return nil, fmt.Errorf("open override store: %w", err)
	}

	resolver := config.NewDefaultResolver(store, configFlag)
	settings, err := config.Load(ctx, resolver)
	if err != nil {
		store.Close()
		return nil, err
	}

	target := settings.MiniDSP.APIURL
	if hostFlag != "" {
		target = hostFlag
	}
	if mockFlag || settings.MiniDSP.Mock {
		target = client.MockTarget
	}

	return &env{
		store:    store,
		resolver: resolver,
		settings: settings,
		target:   target,
		client:   client.New(target),
	}, nil
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "dspcontrol", "overrides.db")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	if !strings.HasSuffix(format, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
}
