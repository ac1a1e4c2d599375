// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package config

import (
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. PLACY_STORE_DRIVER.
const EnvPrefix = "PLACY_"

// Sources names where Load reads overrides from. Zero values skip a source.
type Sources struct {
	// File is a YAML file validated against the config schema.
	File string
	// Environ is a KEY=value list; nil means os.Environ().
	Environ []string
	// Flags are applied last, but only flags the user actually set.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys, e.g. "database-url" to
	// "store.database_url".
	FlagKeys map[string]string
}

// Load builds a validated Config from defaults and src.
func Load(src Sources) (Config, error) {
	k := koanf.New(".")

	if src.File != "" {
		data, err := os.ReadFile(src.File)
		if err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("file", src.File).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return Config{}, oops.With("file", src.File).Wrap(err)
		}
		if err := k.Load(file.Provider(src.File), koanfyaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("file", src.File).Wrap(err)
		}
	}

	if err := k.Load(envProvider(src.Environ), nil); err != nil {
		return Config{}, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if src.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(src.Flags, ".", k, flagMapper(src.Flags, src.FlagKeys)), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return Config{}, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func flagMapper(fs *pflag.FlagSet, keys map[string]string) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := keys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// envProvider picks PLACY_* variables whose names match a known key.
// Values stay strings; decoding converts durations, numbers and
// comma-separated lists. A nil environ reads the process environment.
func envProvider(environ []string) *env.Env {
	byEnv := make(map[string]string)
	for _, key := range Keys() {
		byEnv[EnvName(key)] = key
	}

	opt := env.Opt{
		Prefix: EnvPrefix,
		// Underscores are ambiguous (store_database_url), so names map to
		// keys by lookup instead of by splitting.
		TransformFunc: func(name, value string) (string, any) {
			key, known := byEnv[name]
			if !known {
				return "", nil
			}
			return key, value
		},
	}
	if environ != nil {
		opt.EnvironFunc = func() []string { return environ }
	}
	return env.Provider(".", opt)
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Keys lists every dotted config key, e.g. "store.database_url".
func Keys() []string {
	return collectKeys(reflect.TypeFor[Config](), "")
}

func collectKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() == t.PkgPath() {
			keys = append(keys, collectKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
