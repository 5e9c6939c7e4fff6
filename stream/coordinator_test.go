package stream

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cepro/dspcontrol/client"
	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/telemetry"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameSize = device.InputCount + device.OutputCount

// stubClient serves meter levels from a function. Only MeterLevels may be called on it.
type stubClient struct {
	client.Client
	kind   client.Kind
	calls  atomic.Int64
	levels func(ctx context.Context) ([]telemetry.MeterSample, error)
}

func (s *stubClient) Kind() client.Kind {
	return s.kind
}

func (s *stubClient) MeterLevels(ctx context.Context) ([]telemetry.MeterSample, error) {
	s.calls.Add(1)
	return s.levels(ctx)
}

func silentLevels(ctx context.Context) ([]telemetry.MeterSample, error) {
	samples := make([]telemetry.MeterSample, frameSize)
	for i := range samples {
		samples[i] = telemetry.SilentSample
	}
	return samples, nil
}

func receive(t *testing.T, frames <-chan telemetry.MeterFrame) telemetry.MeterFrame {
	t.Helper()
	select {
	case frame, ok := <-frames:
		require.True(t, ok, "frame channel closed")
		return frame
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no frame received")
	}
	return telemetry.MeterFrame{}
}

func assertNoFrame(t *testing.T, frames <-chan telemetry.MeterFrame) {
	t.Helper()
	select {
	case frame, ok := <-frames:
		if ok {
			assert.Fail(t, "unexpected frame", "%v", frame)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

// TestCoordinatorMockCadence runs the mock strategy for 250ms of simulated time and expects a frame for the initial
// poll and one for each of the two elapsed intervals.
func TestCoordinatorMockCadence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCoordinator(client.New(client.MockTarget), WithClock(clock))
	assert.IsType(t, &PollSource{}, c.Source())

	frames, err := c.Start(context.Background())
	require.NoError(t, err)
	defer c.Stop()
	assert.Equal(t, Streaming, c.State())

	delivered := []telemetry.MeterFrame{receive(t, frames)}

	clock.BlockUntil(1)
	clock.Advance(100 * time.Millisecond)
	delivered = append(delivered, receive(t, frames))

	clock.Advance(100 * time.Millisecond)
	delivered = append(delivered, receive(t, frames))

	clock.Advance(50 * time.Millisecond)
	assertNoFrame(t, frames)

	assert.GreaterOrEqual(t, len(delivered), 2)
	assert.LessOrEqual(t, len(delivered), 3)
	for _, frame := range delivered {
		assert.Len(t, frame.Samples, frameSize)
	}
}

func TestCoordinatorSingleFlight(t *testing.T) {
	release := make(chan struct{})
	stub := &stubClient{levels: func(ctx context.Context) ([]telemetry.MeterSample, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return silentLevels(ctx)
	}}
	clock := clockwork.NewFakeClock()
	c := NewCoordinator(stub, WithClock(clock))
	source := c.Source().(*PollSource)

	frames, err := c.Start(context.Background())
	require.NoError(t, err)
	defer c.Stop()

	clock.BlockUntil(1)
	clock.Advance(100 * time.Millisecond)
	assert.Eventually(t, func() bool { return source.Skipped() >= 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(100 * time.Millisecond)
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, int64(1), stub.calls.Load())

	close(release)
	receive(t, frames)
}

// TestCoordinatorStopDropsInFlightPoll stops while a poll is in flight and expects the poll's result to never be
// delivered.
func TestCoordinatorStopDropsInFlightPoll(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	stub := &stubClient{levels: func(ctx context.Context) ([]telemetry.MeterSample, error) {
		close(started)
		<-release
		return silentLevels(ctx)
	}}
	c := NewCoordinator(stub, WithClock(clockwork.NewFakeClock()))

	frames, err := c.Start(context.Background())
	require.NoError(t, err)

	<-started
	c.Stop()
	close(release)

	_, ok := <-frames
	assert.False(t, ok)
	assert.Equal(t, Idle, c.State())
	assert.NoError(t, c.Err())
}

func TestCoordinatorRejectsSecondStart(t *testing.T) {
	c := NewCoordinator(client.New(client.MockTarget), WithClock(clockwork.NewFakeClock()))

	_, err := c.Start(context.Background())
	require.NoError(t, err)

	_, err = c.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStreaming)

	c.Stop()
	assert.Equal(t, Idle, c.State())

	// reusable after a stop
	frames, err := c.Start(context.Background())
	require.NoError(t, err)
	receive(t, frames)
	c.Stop()
	c.Stop()
}

func TestCoordinatorFailureGoesIdle(t *testing.T) {
	failure := errors.New("meter read failed")
	stub := &stubClient{levels: func(ctx context.Context) ([]telemetry.MeterSample, error) {
		return nil, failure
	}}
	c := NewCoordinator(stub, WithClock(clockwork.NewFakeClock()))

	frames, err := c.Start(context.Background())
	require.NoError(t, err)

	_, ok := <-frames
	assert.False(t, ok)
	assert.Equal(t, Idle, c.State())
	assert.ErrorIs(t, c.Err(), failure)
}

func TestCoordinatorParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCoordinator(client.New(client.MockTarget), WithClock(clockwork.NewFakeClock()))

	frames, err := c.Start(ctx)
	require.NoError(t, err)
	receive(t, frames)

	cancel()
	for range frames {
	}
	assert.Eventually(t, func() bool { return c.State() == Idle }, time.Second, 5*time.Millisecond)
	assert.NoError(t, c.Err())
}

func TestPushURL(t *testing.T) {
	tests := []struct {
		base     string
		expected string
	}{
		{base: "http://192.168.0.67:5380", expected: "ws://192.168.0.67:5380/meters/stream"},
		{base: "https://dsp.local/api", expected: "wss://dsp.local/meters/stream"},
	}
	for _, test := range tests {
		t.Run(test.base, func(t *testing.T) {
			base, err := url.Parse(test.base)
			require.NoError(t, err)
			assert.Equal(t, test.expected, PushURL(base, DefaultPushPath))
		})
	}
}

func TestCoordinatorPicksPushForRealClient(t *testing.T) {
	c := NewCoordinator(client.New("192.168.0.67:5380"))
	source, ok := c.Source().(*PushSource)
	require.True(t, ok)
	assert.Equal(t, "ws://192.168.0.67:5380/meters/stream", source.URL)
}

func TestCoordinatorPush(t *testing.T) {
	server := httptest.NewServer(Handler(client.New(client.MockTarget), 5*time.Millisecond))
	defer server.Close()

	c := NewCoordinator(client.New(server.URL))
	frames, err := c.Start(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		frame := receive(t, frames)
		assert.Len(t, frame.Samples, frameSize)
	}

	c.Stop()
	assert.Equal(t, Idle, c.State())
	assert.NoError(t, c.Err())
}

func TestCoordinatorPushErrorFrame(t *testing.T) {
	var mu sync.Mutex
	fail := false
	stub := &stubClient{kind: client.KindMock, levels: func(ctx context.Context) ([]telemetry.MeterSample, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, errors.New("device unreachable")
		}
		fail = true
		return silentLevels(ctx)
	}}
	server := httptest.NewServer(Handler(stub, 5*time.Millisecond))
	defer server.Close()

	source := &PushSource{URL: "ws" + strings.TrimPrefix(server.URL, "http") + DefaultPushPath}
	c := NewCoordinator(client.New(client.MockTarget), WithSource(source))

	frames, err := c.Start(context.Background())
	require.NoError(t, err)

	receive(t, frames)
	_, ok := <-frames
	assert.False(t, ok)

	assert.Equal(t, Idle, c.State())
	var transportErr *client.TransportError
	require.ErrorAs(t, c.Err(), &transportErr)
	assert.Contains(t, transportErr.Error(), "device unreachable")
}

func TestCoordinatorPushUnreachable(t *testing.T) {
	server := httptest.NewServer(nil)
	serverURL := server.URL
	server.Close()

	c := NewCoordinator(client.New(serverURL))
	frames, err := c.Start(context.Background())
	require.NoError(t, err)

	_, ok := <-frames
	assert.False(t, ok)
	var transportErr *client.TransportError
	assert.ErrorAs(t, c.Err(), &transportErr)
}

func TestDecodePushFrame(t *testing.T) {
	samples, err := decodePushFrame([]byte(` [{"rms": -20, "peak": -10}] `))
	require.NoError(t, err)
	assert.Equal(t, []telemetry.MeterSample{{RMS: -20, Peak: -10}}, samples)

	_, err = decodePushFrame([]byte(`{"error": "boom"}`))
	assert.EqualError(t, err, "server: boom")

	_, err = decodePushFrame([]byte(``))
	assert.Error(t, err)
}
