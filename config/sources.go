package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/cepro/dspcontrol/repository"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// Key names a setting: its dot path and, optionally, the key a caller stores an override for it under.
type Key struct {
	Path     string
	Override string
}

// Source is one layer of the configuration. Lookup returns false when the layer doesn't define the key; a layer
// that can't be read (a missing or broken file, a failing store) defines nothing.
type Source interface {
	Lookup(ctx context.Context, key Key) (Value, bool)
}

// StoreSource looks up the override key of a setting in the override store. Stored values are JSON; a value that
// isn't is taken as a plain string.
type StoreSource struct {
	Store repository.Store
}

func (s StoreSource) Lookup(ctx context.Context, key Key) (Value, bool) {
	if key.Override == "" || s.Store == nil {
		return Value{}, false
	}

	stored, ok, err := s.Store.Get(ctx, key.Override)
	if err != nil {
		slog.Debug("Override store unavailable", "key", key.Override, "error", err)
		return Value{}, false
	}
	if !ok {
		return Value{}, false
	}

	var raw interface{}
	if json.Unmarshal([]byte(stored), &raw) != nil {
		raw = stored
	}
	return newValue(raw, "store"), true
}

// EnvSource looks up settings in environment variables: "minidsp.api_url" is read from NAMESPACE_MINIDSP_API_URL.
// A variable that is set but empty still counts as defined.
type EnvSource struct {
	Namespace string
}

// Name returns the environment variable the setting at `path` is read from.
func (e EnvSource) Name(path string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(path))
	if e.Namespace == "" {
		return name
	}
	return e.Namespace + "_" + name
}

func (e EnvSource) Lookup(ctx context.Context, key Key) (Value, bool) {
	value, ok := os.LookupEnv(e.Name(key.Path))
	if !ok {
		return Value{}, false
	}
	return newValue(value, "env"), true
}

// FileSource looks up settings by dot path in a JSON document, which may contain comments and trailing commas. The
// document is read from Path on every lookup so that edits are picked up, or taken from Data when Path is empty.
type FileSource struct {
	Path string
	Data []byte
	Name string
}

func (f FileSource) Lookup(ctx context.Context, key Key) (Value, bool) {
	data := f.Data
	if f.Path != "" {
		var err error
		data, err = os.ReadFile(f.Path)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Debug("Config file unavailable", "path", f.Path, "error", err)
			}
			return Value{}, false
		}
	}

	document := jsonc.ToJSON(data)
	if !gjson.ValidBytes(document) {
		slog.Debug("Config file is not valid JSON", "path", f.Path, "name", f.Name)
		return Value{}, false
	}

	result := gjson.GetBytes(document, key.Path)
	if !result.Exists() || result.Type == gjson.Null {
		return Value{}, false
	}

	name := f.Name
	if name == "" {
		name = f.Path
	}
	return newValue(result.Value(), name), true
}
