package stream

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cepro/dspcontrol/client"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Server is the server side of the push channel. Every subscriber gets its own ticker; on each tick the meter levels
// are read from Client and written as one JSON array. A failed read is written as `{"error": "..."}` and ends the
// subscription.
type Server struct {
	Client   client.Client
	Interval time.Duration
	Clock    clockwork.Clock
	Metrics  *Metrics
	Logger   *slog.Logger

	upgrader websocket.Upgrader
}

// Handler returns a push channel server reading from `c` every `interval`.
func Handler(c client.Client, interval time.Duration) *Server {
	return &Server{
		Client:   c,
		Interval: interval,
		Clock:    clockwork.NewRealClock(),
		Metrics:  NewMetrics(nil),
		Logger:   slog.Default().With("component", "stream-server"),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.Logger.Warn("Failed to upgrade meter stream", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the subscriber never writes, reading only detects that it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	ticker := s.Clock.NewTicker(interval)
	defer ticker.Stop()

	s.Logger.Info("Meter stream subscribed", "remote", r.RemoteAddr)
	defer s.Logger.Info("Meter stream closed", "remote", r.RemoteAddr)

	s.Metrics.SessionsActive.Inc()
	defer s.Metrics.SessionsActive.Dec()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			levels, err := s.Client.MeterLevels(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.Metrics.Errors.Inc()
				s.Logger.Error("Failed to read meter levels", "error", err)
				conn.WriteJSON(errorFrame{Error: err.Error()})
				return
			}
			err = conn.WriteJSON(levels)
			if err != nil {
				return
			}
			s.Metrics.FramesDelivered.Inc()
		}
	}
}
