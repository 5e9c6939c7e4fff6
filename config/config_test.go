package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cepro/dspcontrol/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestResolverOverrideStoreWins sets the host in the override store and expects it to be returned whether or not the
// environment defines it too.
func TestResolverOverrideStoreWins(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	require.NoError(t, store.Set(ctx, HostOverrideKey, `"10.0.0.9:5380"`))
	r := NewDefaultResolver(store, "")

	value := r.Get(ctx, APIURLPath, HostOverrideKey)
	assert.Equal(t, "10.0.0.9:5380", value.String())
	assert.Equal(t, "store", value.Source())

	t.Setenv("DSPCONTROL_MINIDSP_API_URL", "10.0.0.1:5380")

	value = r.Get(ctx, APIURLPath, HostOverrideKey)
	assert.Equal(t, "10.0.0.9:5380", value.String())

	// without an override key the store is not consulted
	assert.Equal(t, "10.0.0.1:5380", r.Get(ctx, APIURLPath, "").String())
}

func TestResolverCascade(t *testing.T) {
	ctx := context.Background()
	userFile := writeFile(t, `{
		// the lab unit
		"minidsp": {"api_url": "lab-dsp:5380",},
		"stream": {"poll_interval_ms": 250},
	}`)

	tests := []struct {
		name     string
		env      map[string]string
		userFile string
		path     string
		expected string
		source   string
	}{
		{
			name:     "packaged default",
			path:     APIURLPath,
			expected: "192.168.0.67:5380",
			source:   "default",
		},
		{
			name:     "user file over default",
			userFile: userFile,
			path:     APIURLPath,
			expected: "lab-dsp:5380",
			source:   "user",
		},
		{
			name:     "env over user file",
			env:      map[string]string{"DSPCONTROL_MINIDSP_API_URL": "env-dsp:5380"},
			userFile: userFile,
			path:     APIURLPath,
			expected: "env-dsp:5380",
			source:   "env",
		},
		{
			name:     "empty env var is defined",
			env:      map[string]string{"DSPCONTROL_SERVER_LISTEN": ""},
			path:     ListenPath,
			expected: "",
			source:   "env",
		},
		{
			name:     "missing user file falls through",
			userFile: filepath.Join(t.TempDir(), "missing.json"),
			path:     PollIntervalPath,
			expected: "100",
			source:   "default",
		},
		{
			name:     "broken user file falls through",
			userFile: writeFile(t, `{"minidsp": `),
			path:     APIURLPath,
			expected: "192.168.0.67:5380",
			source:   "default",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for name, value := range test.env {
				t.Setenv(name, value)
			}
			r := NewDefaultResolver(repository.NewMemory(), test.userFile)

			value := r.Get(ctx, test.path, "")
			assert.True(t, value.Exists())
			assert.Equal(t, test.expected, value.String())
			assert.Equal(t, test.source, value.Source())
		})
	}
}

func TestResolverNoValue(t *testing.T) {
	r := NewDefaultResolver(nil, "")
	value := r.Get(context.Background(), "minidsp.nothing", "nothing")

	assert.False(t, value.Exists())
	assert.Equal(t, "", value.String())
	assert.Equal(t, "fallback", value.Or("fallback"))
}

func TestEnvSourceName(t *testing.T) {
	env := EnvSource{Namespace: EnvNamespace}
	assert.Equal(t, "DSPCONTROL_MINIDSP_API_URL", env.Name("minidsp.api_url"))
	assert.Equal(t, "DSPCONTROL_STREAM_PUSH_PATH", env.Name("stream.push-path"))
	assert.Equal(t, "SERVER_LISTEN", EnvSource{}.Name("server.listen"))
}

func TestStoreSourcePlainString(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	store.Set(ctx, HostOverrideKey, "10.0.0.2:5380")

	value, ok := StoreSource{Store: store}.Lookup(ctx, Key{Path: APIURLPath, Override: HostOverrideKey})
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2:5380", value.String())
}

func TestValueAccessors(t *testing.T) {
	tests := []struct {
		raw           interface{}
		expectedStr   string
		expectedInt   int
		expectedFloat float64
		expectedBool  bool
	}{
		{raw: "42", expectedStr: "42", expectedInt: 42, expectedFloat: 42},
		{raw: 2.5, expectedStr: "2.5", expectedInt: 2, expectedFloat: 2.5, expectedBool: true},
		{raw: 100.0, expectedStr: "100", expectedInt: 100, expectedFloat: 100, expectedBool: true},
		{raw: true, expectedStr: "true", expectedInt: 1, expectedFloat: 1, expectedBool: true},
		{raw: "true", expectedStr: "true", expectedBool: true},
	}
	for _, test := range tests {
		value := newValue(test.raw, "test")
		assert.Equal(t, test.expectedStr, value.String())
		assert.Equal(t, test.expectedInt, value.Int())
		assert.Equal(t, test.expectedFloat, value.Float())
		assert.Equal(t, test.expectedBool, value.Bool())
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	require.NoError(t, store.Set(ctx, MockOverrideKey, "true"))
	t.Setenv("DSPCONTROL_STREAM_POLL_INTERVAL_MS", "50")
	userFile := writeFile(t, `{"server": {"listen": "127.0.0.1:8080"}, "store": {"path": "/tmp/dsp.db"}}`)

	settings, err := Load(ctx, NewDefaultResolver(store, userFile))
	require.NoError(t, err)

	assert.Equal(t, Settings{
		MiniDSP: MiniDSPSettings{APIURL: "192.168.0.67:5380", Mock: true},
		Stream:  StreamSettings{PollIntervalMS: 50, PushPath: "/meters/stream"},
		Server:  ServerSettings{Listen: "127.0.0.1:8080"},
		Store:   StoreSettings{Path: "/tmp/dsp.db"},
	}, settings)
	assert.Equal(t, 50*time.Millisecond, settings.PollInterval())
}

func TestDecode(t *testing.T) {
	var stream StreamSettings
	r := NewDefaultResolver(nil, "")
	require.NoError(t, r.Decode(context.Background(), "stream", &stream))
	assert.Equal(t, StreamSettings{PollIntervalMS: 100, PushPath: "/meters/stream"}, stream)

	assert.Error(t, r.Decode(context.Background(), "nothing", &stream))
}
