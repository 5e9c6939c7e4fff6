package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cepro/dspcontrol/client"
	"github.com/cepro/dspcontrol/telemetry"
	"github.com/gorilla/websocket"
)

// PushSource subscribes once to the push channel at URL and delivers every frame the server writes. It has no timer
// of its own; the cadence is the server's.
type PushSource struct {
	URL    string
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// errorFrame is what the server writes instead of a frame when it fails to read the meters.
type errorFrame struct {
	Error string `json:"error"`
}

func (p *PushSource) Stream(ctx context.Context, emit func(telemetry.MeterFrame) bool) error {
	dialer := p.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, response, err := dialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		transportErr := &client.TransportError{Op: "dial meter stream", URL: p.URL, Err: err}
		if response != nil {
			transportErr.StatusCode = response.StatusCode
		}
		return transportErr
	}
	defer conn.Close()

	// a blocked read is released by closing the connection
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	logger.Debug("Subscribed to meter stream", "url", p.URL)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &client.TransportError{Op: "read meter stream", URL: p.URL, Err: err}
		}

		samples, err := decodePushFrame(data)
		if err != nil {
			return &client.TransportError{Op: "read meter stream", URL: p.URL, Err: err}
		}

		if !emit(telemetry.NewMeterFrame(time.Now(), samples)) {
			return ctx.Err()
		}
	}
}

// decodePushFrame parses one message of the push channel, which is either an array of samples or an error object.
func decodePushFrame(data []byte) ([]telemetry.MeterSample, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty frame")
	}

	if trimmed[0] == '{' {
		var frame errorFrame
		err := json.Unmarshal(trimmed, &frame)
		if err != nil {
			return nil, fmt.Errorf("parse error frame: %w", err)
		}
		return nil, fmt.Errorf("server: %s", frame.Error)
	}

	var samples []telemetry.MeterSample
	err := json.Unmarshal(trimmed, &samples)
	if err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	return samples, nil
}
