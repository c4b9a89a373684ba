// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logship

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
)

// Config is the declarative logger configuration.
//
//	level: info
//	service: checkout
//	sinks:
//	  - type: stdout
//	  - type: file
//	    level: warn
//	    config: {dir: /var/log/app, filename: app.log}
//	  - type: http
//	    config: {endpoint: "https://logs.example.com/ingest", bufferSize: 20}
type Config struct {
	// Level is the logger's minimum level; sinks without their own level
	// inherit it. Defaults to "info".
	Level       string       `config:"level"`
	Service     string       `config:"service"`
	Version     string       `config:"version"`
	Environment string       `config:"environment"`
	// Runtime is "server" or "browser"; empty means detect.
	Runtime string       `config:"runtime"`
	Sinks   []SinkConfig `config:"sinks"`
}

// SinkConfig configures one sink.
type SinkConfig struct {
	Type Kind `config:"type"`
	// Name identifies the sink in diagnostics and metrics. Defaults to the
	// type, suffixed with the position when the type repeats.
	Name string `config:"name"`
	// Level overrides the logger level for this sink.
	Level string `config:"level"`
	// Fields lists values injected into every record: hostname, pid, ip,
	// env, version, category. Cloud collectors default to all of them.
	Fields []string `config:"fields"`
	// Config holds the kind-specific options.
	Config map[string]any `config:"config"`
}

// ConsoleOptions configures a stdout sink.
type ConsoleOptions struct {
	Color bool `config:"color"`
	// JSON writes wire-format JSON lines instead of text.
	JSON bool `config:"json"`
}

// FileOptions configures a file sink. MaxSize (megabytes) enables
// rotation; MaxFiles and MaxAge (days) bound the rotated backups.
type FileOptions struct {
	Dir      string `config:"dir" validate:"required"`
	Filename string `config:"filename" validate:"required"`
	MaxSize  int    `config:"maxSize" validate:"gte=0"`
	MaxFiles int    `config:"maxFiles" validate:"gte=0"`
	MaxAge   int    `config:"maxAge" validate:"gte=0"`
	Compress bool   `config:"compress"`
}

// HTTPOptions configures an HTTP beacon sink. Durations accept Go
// duration strings or a number of milliseconds. A negative FlushInterval
// disables the timer; a negative Retry.MaxEntries disables retries.
type HTTPOptions struct {
	Endpoint      string            `config:"endpoint" validate:"required,url"`
	Headers       map[string]string `config:"headers"`
	BufferSize    int               `config:"bufferSize" validate:"gte=0"`
	FlushInterval time.Duration     `config:"flushInterval"`
	MaxEntries    int               `config:"maxEntries" validate:"gte=0"`
	Timeout       time.Duration     `config:"timeout" validate:"gte=0"`
	Retry         RetryPolicy       `config:"retry"`
}

// LocalStorageOptions configures a browser storage sink.
type LocalStorageOptions struct {
	Key        string `config:"key"`
	MaxEntries int    `config:"maxEntries" validate:"gte=0"`
}

// SLSOptions configures the Log Service collector. Missing credentials
// make the sink inert rather than failing validation.
type SLSOptions struct {
	Endpoint        string        `config:"endpoint"`
	Project         string        `config:"project"`
	Logstore        string        `config:"logstore"`
	AccessKeyID     string        `config:"accessKeyId"`
	AccessKeySecret string        `config:"accessKeySecret"`
	AppName         string        `config:"appName"`
	Topic           string        `config:"topic"`
	Source          string        `config:"source"`
	BufferSize      int           `config:"bufferSize" validate:"gte=0"`
	FlushInterval   time.Duration `config:"flushInterval"`
	MaxEntries      int           `config:"maxEntries" validate:"gte=0"`
	MaxMessageBytes int           `config:"maxMessageBytes" validate:"gte=0"`
	Timeout         time.Duration `config:"timeout" validate:"gte=0"`
}

// ElasticsearchOptions configures the Elasticsearch collector.
type ElasticsearchOptions struct {
	Addresses       []string      `config:"addresses" validate:"dive,url"`
	Index           string        `config:"index"`
	Username        string        `config:"username"`
	Password        string        `config:"password"`
	APIKey          string        `config:"apiKey"`
	AppName         string        `config:"appName"`
	Topic           string        `config:"topic"`
	Source          string        `config:"source"`
	BufferSize      int           `config:"bufferSize" validate:"gte=0"`
	FlushInterval   time.Duration `config:"flushInterval"`
	MaxEntries      int           `config:"maxEntries" validate:"gte=0"`
	MaxMessageBytes int           `config:"maxMessageBytes" validate:"gte=0"`
	Timeout         time.Duration `config:"timeout" validate:"gte=0"`
}

func defaultConsoleOptions() ConsoleOptions { return ConsoleOptions{} }

func defaultFileOptions() FileOptions { return FileOptions{} }

func defaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		BufferSize:    10,
		FlushInterval: 5 * time.Second,
		MaxEntries:    1000,
		Timeout:       10 * time.Second,
		Retry:         RetryPolicy{MaxEntries: 50, Keep: RetainNewest},
	}
}

func defaultLocalStorageOptions() LocalStorageOptions {
	return LocalStorageOptions{Key: "logship", MaxEntries: 1000}
}

func defaultSLSOptions() SLSOptions {
	return SLSOptions{
		BufferSize:      100,
		FlushInterval:   3 * time.Second,
		MaxEntries:      10000,
		MaxMessageBytes: 32 * 1024,
		Timeout:         10 * time.Second,
	}
}

func defaultElasticsearchOptions() ElasticsearchOptions {
	return ElasticsearchOptions{
		Index:           "logship",
		BufferSize:      100,
		FlushInterval:   3 * time.Second,
		MaxEntries:      10000,
		MaxMessageBytes: 32 * 1024,
		Timeout:         10 * time.Second,
	}
}

// missing lists the unset settings the collector cannot work without.
func (o SLSOptions) missing() []string {
	var out []string
	for _, f := range []struct{ name, value string }{
		{"endpoint", o.Endpoint},
		{"project", o.Project},
		{"logstore", o.Logstore},
		{"accessKeyId", o.AccessKeyID},
		{"accessKeySecret", o.AccessKeySecret},
	} {
		if f.value == "" {
			out = append(out, f.name)
		}
	}
	return out
}

func (o SLSOptions) cloudOptions() cloudOptions {
	return cloudOptions{
		AppName:         o.AppName,
		Topic:           o.Topic,
		Source:          o.Source,
		BufferSize:      o.BufferSize,
		FlushInterval:   o.FlushInterval,
		MaxEntries:      o.MaxEntries,
		MaxMessageBytes: o.MaxMessageBytes,
		Timeout:         o.Timeout,
	}
}

func (o ElasticsearchOptions) cloudOptions() cloudOptions {
	return cloudOptions{
		AppName:         o.AppName,
		Topic:           o.Topic,
		Source:          o.Source,
		BufferSize:      o.BufferSize,
		FlushInterval:   o.FlushInterval,
		MaxEntries:      o.MaxEntries,
		MaxMessageBytes: o.MaxMessageBytes,
		Timeout:         o.Timeout,
	}
}

// fieldList parses the configured injection fields.
func (sc SinkConfig) fieldList() ([]Field, error) {
	out := make([]Field, 0, len(sc.Fields))
	for _, s := range sc.Fields {
		f, err := parseField(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// LoadConfig reads and validates a configuration file. The format is
// detected from the extension: .yaml, .yml, .toml or .json.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigFs(afero.NewOsFs(), path)
}

// LoadConfigFs is [LoadConfig] on an arbitrary filesystem.
func LoadConfigFs(fs afero.Fs, path string) (*Config, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, &ConfigError{Index: -1, Op: "load", Err: err}
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &ConfigError{Index: -1, Op: "load", Err: err}
	}
	return ParseConfig(data, format)
}

// extensionFormats maps file extensions to configuration formats.
var extensionFormats = map[string]string{
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".toml": "toml",
}

func detectFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if format, ok := extensionFormats[ext]; ok {
		return format, nil
	}
	return "", fmt.Errorf("cannot detect format from extension %q", ext)
}

// ParseConfig decodes and validates configuration data in the given
// format ("yaml", "toml" or "json"). ${VAR} and ${VAR:-default}
// references are replaced with environment values before decoding.
func ParseConfig(data []byte, format string) (*Config, error) {
	data = expandEnv(data)

	raw := map[string]any{}
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &raw)
	case "toml":
		err = toml.Unmarshal(data, &raw)
	case "json":
		err = json.Unmarshal(data, &raw)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, &ConfigError{Index: -1, Op: "parse", Err: err}
	}
	return DecodeConfig(raw)
}

// DecodeConfig builds a validated Config from a generic map, such as the
// output of viper or another configuration layer.
func DecodeConfig(raw map[string]any) (*Config, error) {
	var cfg Config
	if err := decode(raw, &cfg); err != nil {
		return nil, &ConfigError{Index: -1, Op: "decode", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := envRef.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(sub[1])); ok && v != "" {
			return []byte(v)
		}
		return sub[2]
	})
}

// Validate reports every problem in c. Unknown sink types, malformed
// levels and invalid kind options are errors; missing cloud collector
// credentials are not. It also fills in default sink names.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Level != "" {
		if _, err := ParseLevel(c.Level); err != nil {
			result = multierror.Append(result, &ConfigError{Index: -1, Field: "level", Op: "validate", Err: err})
		}
	}
	if _, err := ParseRuntime(c.Runtime); err != nil {
		result = multierror.Append(result, &ConfigError{Index: -1, Field: "runtime", Op: "validate", Err: err})
	}

	counts := make(map[Kind]int, len(c.Sinks))
	for i := range c.Sinks {
		sc := &c.Sinks[i]
		kind, err := ParseKind(string(sc.Type))
		if err != nil {
			result = multierror.Append(result, &ConfigError{Index: i, Field: "type", Op: "validate", Err: err})
			continue
		}
		sc.Type = kind
		counts[kind]++

		if sc.Level != "" {
			if _, err := ParseLevel(sc.Level); err != nil {
				result = multierror.Append(result, &ConfigError{Index: i, Field: "level", Op: "validate", Err: err})
			}
		}
		if _, err := sc.fieldList(); err != nil {
			result = multierror.Append(result, &ConfigError{Index: i, Field: "fields", Op: "validate", Err: err})
		}
		if err := sc.validateOptions(); err != nil {
			result = multierror.Append(result, optionErrors(i, err)...)
		}
	}

	seen := make(map[string]bool, len(c.Sinks))
	for i := range c.Sinks {
		sc := &c.Sinks[i]
		if sc.Name == "" && sc.Type.Valid() {
			sc.Name = string(sc.Type)
			if counts[sc.Type] > 1 {
				sc.Name = fmt.Sprintf("%s-%d", sc.Type, i)
			}
		}
		if sc.Name != "" && seen[sc.Name] {
			result = multierror.Append(result, &ConfigError{Index: i, Field: "name", Op: "validate",
				Err: fmt.Errorf("duplicate sink name %q", sc.Name)})
		}
		seen[sc.Name] = true
	}

	return result.ErrorOrNil()
}

// validateOptions decodes the kind-specific options for validation only.
func (sc SinkConfig) validateOptions() error {
	var err error
	switch sc.Type {
	case KindStdout:
		_, err = decodeOptions(sc.Config, defaultConsoleOptions())
	case KindFile:
		_, err = decodeOptions(sc.Config, defaultFileOptions())
	case KindHTTP:
		_, err = decodeOptions(sc.Config, defaultHTTPOptions())
	case KindLocalStorage:
		_, err = decodeOptions(sc.Config, defaultLocalStorageOptions())
	case KindSLS:
		_, err = decodeOptions(sc.Config, defaultSLSOptions())
	case KindElasticsearch:
		_, err = decodeOptions(sc.Config, defaultElasticsearchOptions())
	}
	return err
}

// optionErrors splits a decode or validation failure into per-field
// ConfigErrors.
func optionErrors(index int, err error) []error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{&ConfigError{Index: index, Field: "config", Op: "decode", Err: err}}
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx != -1 {
			field = field[idx+1:]
		}
		out = append(out, &ConfigError{
			Index: index,
			Field: "config." + field,
			Op:    "validate",
			Err:   fmt.Errorf("failed on %q rule", fe.Tag()),
		})
	}
	return out
}

// decodeOptions decodes a kind option bag, fills unset fields from
// defaults and validates the result.
func decodeOptions[T any](bag map[string]any, defaults T) (T, error) {
	var out T
	if err := decode(bag, &out); err != nil {
		return out, err
	}
	if err := mergo.Merge(&out, defaults); err != nil {
		return out, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := validate().Struct(out); err != nil {
		return out, err
	}
	return out, nil
}

func decode(input, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook(),
			retryHook(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook reads Go duration strings, and plain numbers (or numeric
// strings) as milliseconds.
func durationHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			if d, err := time.ParseDuration(v); err == nil {
				return d, nil
			}
		}
		ms, err := cast.ToFloat64E(data)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %v", data)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
}

var retryType = reflect.TypeOf(RetryPolicy{})

// retryHook accepts a bare number as the retry entry count.
func retryHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != retryType {
			return data, nil
		}
		if _, ok := data.(map[string]any); ok {
			return data, nil
		}
		n, err := cast.ToIntE(data)
		if err != nil {
			return data, nil
		}
		return map[string]any{"maxEntries": n}, nil
	}
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("config")
		if idx := strings.Index(name, ","); idx != -1 {
			name = name[:idx]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
})
