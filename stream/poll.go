package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cepro/dspcontrol/client"
	"github.com/cepro/dspcontrol/telemetry"
	"github.com/jonboulle/clockwork"
)

// PollSource reads the meter levels from a client once immediately and then on every tick. At most one read is in
// flight at any time: a tick that arrives while a read is still running is skipped, not queued.
type PollSource struct {
	Client   client.Client
	Interval time.Duration
	Clock    clockwork.Clock
	Metrics  *Metrics
	Logger   *slog.Logger

	skipped atomic.Int64
}

type pollResult struct {
	time   time.Time
	levels []telemetry.MeterSample
	err    error
}

// Skipped returns the number of ticks skipped since the source was created.
func (p *PollSource) Skipped() int64 {
	return p.skipped.Load()
}

func (p *PollSource) Stream(ctx context.Context, emit func(telemetry.MeterFrame) bool) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	// buffered so that a read finishing after the stream ended doesn't leak its goroutine
	results := make(chan pollResult, 1)
	inFlight := false

	poll := func(t time.Time) {
		inFlight = true
		go func() {
			levels, err := p.Client.MeterLevels(ctx)
			results <- pollResult{time: t, levels: levels, err: err}
		}()
	}

	poll(clock.Now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case t := <-ticker.Chan():
			if inFlight {
				p.skipped.Add(1)
				if p.Metrics != nil {
					p.Metrics.PollsSkipped.Inc()
				}
				logger.Debug("Skipped poll, previous poll still in flight")
				continue
			}
			poll(t)

		case result := <-results:
			inFlight = false
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if result.err != nil {
				return fmt.Errorf("poll meter levels: %w", result.err)
			}
			if !emit(telemetry.NewMeterFrame(result.time, result.levels)) {
				return ctx.Err()
			}
		}
	}
}
