package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cepro/dspcontrol/device"
	"github.com/cepro/dspcontrol/mockdsp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConnect(t *testing.T) {
	ctx := context.Background()
	s := NewSession(New(MockTarget), MockTarget)

	assert.False(t, s.Connected())
	assert.Nil(t, s.LastStatus())

	require.NoError(t, s.Connect(ctx))
	assert.True(t, s.Connected())
	assert.NotEqual(t, uuid.Nil, s.ID())
	assert.Equal(t, device.DefaultStatus(), s.LastStatus())

	_, err := s.SetMasterMute(ctx, true)
	require.NoError(t, err)
	assert.True(t, s.LastStatus().Master.Mute)

	s.Disconnect()
	assert.False(t, s.Connected())
	assert.Equal(t, uuid.Nil, s.ID())
	assert.Nil(t, s.LastStatus())
}

func TestSessionConnectNoDevices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	s := NewSession(New(server.URL), server.URL)
	err := s.Connect(context.Background())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, errors.Is(err, ErrNoDevices))
	assert.False(t, s.Connected())
}

func TestSessionConnectUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	s := NewSession(New(url), url)
	err := s.Connect(context.Background())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.False(t, s.Connected())
}

// TestSessionLinkedOutputs records the patches the device receives and expects a linked gain change to arrive as a
// single update for both outputs of the first pair.
func TestSessionLinkedOutputs(t *testing.T) {
	var mu sync.Mutex
	var patches []device.ConfigPatch

	engine := mockdsp.New()
	inner := mockdsp.Handler(engine)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			var patch device.ConfigPatch
			require.NoError(t, json.Unmarshal(body, &patch))
			mu.Lock()
			patches = append(patches, patch)
			mu.Unlock()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		inner.ServeHTTP(w, r)
	}))
	defer server.Close()

	ctx := context.Background()
	s := NewSession(New(server.URL), server.URL)
	require.NoError(t, s.Connect(ctx))

	s.SetLinkOutputs(true)
	status, err := s.SetOutputGain(ctx, 1, -12)
	require.NoError(t, err)
	assert.Equal(t, -12.0, status.Outputs[0].Gain)
	assert.Equal(t, -12.0, status.Outputs[1].Gain)

	s.SetLinkOutputs(false)
	status, err = s.SetOutputGain(ctx, 0, -20)
	require.NoError(t, err)
	assert.Equal(t, -20.0, status.Outputs[0].Gain)
	assert.Equal(t, -12.0, status.Outputs[1].Gain)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, patches, 2)
	assert.Len(t, patches[0].Outputs, 2)
	assert.Len(t, patches[1].Outputs, 1)
}

func TestSessionCommandError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(New(MockTarget), MockTarget)
	require.NoError(t, s.Connect(ctx))
	cancel()

	_, err := s.SetPreset(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.LastStatus().Master.Preset)
}
