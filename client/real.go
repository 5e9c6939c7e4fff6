package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/telemetry"
	"golang.org/x/sync/errgroup"
)

// RealClient talks to the REST API of a device on the network. It makes exactly one request per call (two for meter
// levels) and never retries; every failure is returned as a *TransportError.
type RealClient struct {
	commands
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
}

// NewReal returns a client for the device at `target`, which is either a "host:port" or a base URL.
func NewReal(httpClient *http.Client, target string, logger *slog.Logger) *RealClient {
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	baseURL, err := url.Parse(strings.TrimRight(target, "/"))
	if err != nil {
		// an unparseable target still makes a client, every request on it fails with a TransportError
		baseURL = &url.URL{Scheme: "http", Host: target}
	}

	r := &RealClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger.With("host", baseURL.Host),
	}
	r.commands = commands{update: r.UpdateConfig}
	return r
}

func (r *RealClient) Kind() Kind {
	return KindReal
}

// BaseURL returns the URL that request paths are resolved against.
func (r *RealClient) BaseURL() *url.URL {
	u := *r.baseURL
	return &u
}

func (r *RealClient) Devices(ctx context.Context) ([]device.Device, error) {
	var devices []device.Device
	err := r.do(ctx, http.MethodGet, "/devices", nil, &devices)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *RealClient) Status(ctx context.Context) (*device.DeviceStatus, error) {
	status := &device.DeviceStatus{}
	err := r.do(ctx, http.MethodGet, "/devices/0/status", nil, status)
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (r *RealClient) UpdateConfig(ctx context.Context, patch device.ConfigPatch) (*device.DeviceStatus, error) {
	status := &device.DeviceStatus{}
	err := r.do(ctx, http.MethodPost, "/devices/0/config", patch, status)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// MeterLevels reads the input and output meters concurrently and returns the inputs followed by the outputs.
func (r *RealClient) MeterLevels(ctx context.Context) ([]telemetry.MeterSample, error) {
	var inputs, outputs []telemetry.MeterSample

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.do(gctx, http.MethodGet, "/devices/0/inputs/meters", nil, &inputs)
	})
	g.Go(func() error {
		return r.do(gctx, http.MethodGet, "/devices/0/outputs/meters", nil, &outputs)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(inputs) != device.InputCount || len(outputs) != device.OutputCount {
		return nil, &TransportError{
			Op:  "meter levels",
			URL: r.baseURL.String(),
			Err: fmt.Errorf("got %d input and %d output samples, expected %d and %d", len(inputs), len(outputs), device.InputCount, device.OutputCount),
		}
	}

	levels := make([]telemetry.MeterSample, 0, len(inputs)+len(outputs))
	levels = append(levels, inputs...)
	levels = append(levels, outputs...)
	return levels, nil
}

// do sends a request with an optional JSON body and decodes the JSON response into `out`.
func (r *RealClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	reqURL := r.baseURL.JoinPath(path).String()
	op := fmt.Sprintf("%s %s", method, path)

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, URL: reqURL, Err: fmt.Errorf("marshal: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return &TransportError{Op: op, URL: reqURL, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	response, err := r.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: reqURL, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &TransportError{Op: op, URL: reqURL, StatusCode: response.StatusCode, Err: errorFromBody(response.Body)}
	}

	err = json.NewDecoder(response.Body).Decode(out)
	if err != nil {
		return &TransportError{Op: op, URL: reqURL, StatusCode: response.StatusCode, Err: fmt.Errorf("parse body: %w", err)}
	}

	r.logger.Debug("Device request", "method", method, "path", path, "status_code", response.StatusCode)

	return nil
}

// errorFromBody extracts the `{"error": "..."}` message of a failed response, if there is one.
func errorFromBody(body io.Reader) error {
	var parsed struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		return fmt.Errorf("device: %s", parsed.Error)
	}
	return nil
}
