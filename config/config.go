package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cepro/dspcontrol/repository"
	"github.com/mitchellh/mapstructure"
)

// EnvNamespace prefixes the environment variables settings are read from.
const EnvNamespace = "DSPCONTROL"

// Override keys the CLI stores user choices under.
const (
	HostOverrideKey = "minidsp-host"
	MockOverrideKey = "minidsp-mock"
)

// Setting paths.
const (
	APIURLPath       = "minidsp.api_url"
	MockPath         = "minidsp.mock"
	PollIntervalPath = "stream.poll_interval_ms"
	PushPathPath     = "stream.push_path"
	ListenPath       = "server.listen"
	StorePathPath    = "store.path"
)

//go:embed config.default.json
var defaultConfig []byte

// Resolver looks settings up in an ordered list of sources and returns the first value found.
type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// DefaultFile returns the source of the packaged defaults.
func DefaultFile() FileSource {
	return FileSource{Data: defaultConfig, Name: "default"}
}

// UserFilePath returns where the user override file lives, e.g. ~/.config/dspcontrol/config.json.
func UserFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dspcontrol", "config.json")
}

// NewDefaultResolver returns the standard chain: the override store, then the environment, then the user file at
// `userFile` and finally the packaged defaults. A nil store or an empty file path leaves that layer out.
func NewDefaultResolver(store repository.Store, userFile string) *Resolver {
	sources := []Source{}
	if store != nil {
		sources = append(sources, StoreSource{Store: store})
	}
	sources = append(sources, EnvSource{Namespace: EnvNamespace})
	if userFile != "" {
		sources = append(sources, FileSource{Path: userFile, Name: "user"})
	}
	sources = append(sources, DefaultFile())
	return NewResolver(sources...)
}

// Get returns the first value defined for the setting at `path`, looking in the override store under `overrideKey`
// first when one is given. The zero Value is returned when no source defines it.
func (r *Resolver) Get(ctx context.Context, path string, overrideKey string) Value {
	key := Key{Path: path, Override: overrideKey}
	for _, source := range r.sources {
		value, ok := source.Lookup(ctx, key)
		if ok {
			return value
		}
	}
	return Value{}
}

// Decode decodes the object at `path` into `out`, which is typically a pointer to a struct with mapstructure tags.
func (r *Resolver) Decode(ctx context.Context, path string, out interface{}) error {
	value := r.Get(ctx, path, "")
	if !value.Exists() {
		return fmt.Errorf("decode '%s': no value", path)
	}
	return decode(value.Raw(), out)
}

func decode(input interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	err = decoder.Decode(input)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type MiniDSPSettings struct {
	APIURL string `mapstructure:"api_url"`
	Mock   bool   `mapstructure:"mock"`
}

type StreamSettings struct {
	PollIntervalMS int    `mapstructure:"poll_interval_ms"`
	PushPath       string `mapstructure:"push_path"`
}

type ServerSettings struct {
	Listen string `mapstructure:"listen"`
}

type StoreSettings struct {
	Path string `mapstructure:"path"`
}

// Settings are the resolved runtime settings.
type Settings struct {
	MiniDSP MiniDSPSettings `mapstructure:"minidsp"`
	Stream  StreamSettings  `mapstructure:"stream"`
	Server  ServerSettings  `mapstructure:"server"`
	Store   StoreSettings   `mapstructure:"store"`
}

// PollInterval returns the polling cadence of the meter stream.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.Stream.PollIntervalMS) * time.Millisecond
}

var settingKeys = []Key{
	{Path: APIURLPath, Override: HostOverrideKey},
	{Path: MockPath, Override: MockOverrideKey},
	{Path: PollIntervalPath},
	{Path: PushPathPath},
	{Path: ListenPath},
	{Path: StorePathPath},
}

// Load resolves every setting individually, so that each one can come from a different source.
func Load(ctx context.Context, r *Resolver) (Settings, error) {
	tree := map[string]interface{}{}
	for _, key := range settingKeys {
		value := r.Get(ctx, key.Path, key.Override)
		if !value.Exists() {
			continue
		}
		setPath(tree, key.Path, value.Raw())
	}

	var settings Settings
	err := decode(tree, &settings)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// setPath sets `value` at the dot path in a nested map, creating the intermediate maps.
func setPath(tree map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		child, ok := tree[part].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			tree[part] = child
		}
		tree = child
	}
	tree[parts[len(parts)-1]] = value
}
