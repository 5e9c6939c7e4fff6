package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cepro/dspcontrol/client"
	"github.com/cepro/dspcontrol/mockdsp"
	"github.com/cepro/dspcontrol/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	serveListen   string
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a simulated device",
	Long: `Serve a simulated miniDSP 2x4 HD over the same REST API as the real device,
together with the meter push channel and prometheus metrics.

Examples:
  dspcontrol serve
  dspcontrol serve --listen 127.0.0.1:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		listen := serveListen
		if listen == "" {
			listen = e.settings.Server.Listen
		}

		server := &http.Server{
			Addr:    listen,
			Handler: newServeMux(mockdsp.New(), e.settings.Stream.PushPath, serveInterval, prometheus.NewRegistry()),
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		slog.Info("Serving simulated device", "listen", listen)
		err = server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		slog.Info("Exiting")
		return nil
	},
}

// newServeMux routes the device API, the push channel and the metrics of one simulated device.
func newServeMux(engine *mockdsp.Engine, pushPath string, interval time.Duration, reg *prometheus.Registry) *http.ServeMux {
	push := stream.Handler(client.NewMock(engine), interval)
	push.Metrics = stream.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/", mockdsp.Handler(engine))
	mux.Handle("GET "+pushPath, push)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from server.listen)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", stream.DefaultPushInterval, "push channel cadence")
	rootCmd.AddCommand(serveCmd)
}
