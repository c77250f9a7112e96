package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"localchat/pkg/types"
)

// Config holds runtime parameters for the daemon and the CLI.
// Zero values mean "unspecified"; see Defaults and Merge.
type Config struct {
	Addr          string   `json:"addr" yaml:"addr" toml:"addr"`
	OllamaURL     string   `json:"ollama_url" yaml:"ollama_url" toml:"ollama_url"`
	OllamaOrigin  string   `json:"ollama_origin" yaml:"ollama_origin" toml:"ollama_origin"`
	DefaultModel  string   `json:"default_model" yaml:"default_model" toml:"default_model"`
	SystemPrompt  string   `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	TagsTTL       Duration `json:"tags_ttl" yaml:"tags_ttl" toml:"tags_ttl"`
	StreamTimeout Duration `json:"stream_timeout" yaml:"stream_timeout" toml:"stream_timeout"`
	// ConnectTimeout bounds dialing Ollama, not the stream.
	ConnectTimeout Duration `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
	SettingsPath   string   `json:"settings_path" yaml:"settings_path" toml:"settings_path"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat      string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS           CORS     `json:"cors" yaml:"cors" toml:"cors"`
}

// CORS controls cross-origin access to the HTTP API.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Duration is a time.Duration that reads "90s" style strings from every
// supported file format and from the environment.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts Go duration syntax or a bare number of seconds.
func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(n * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	return d.UnmarshalText([]byte(strings.Trim(s, `"`)))
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Addr:           "127.0.0.1:8765",
		OllamaURL:      types.DefaultOllamaURL,
		DefaultModel:   types.DefaultModel,
		TagsTTL:        Duration(60 * time.Second),
		StreamTimeout:  Duration(5 * time.Minute),
		ConnectTimeout: Duration(5 * time.Second),
		SettingsPath:   "~/.config/localchat/settings.yaml",
		LogLevel:       "info",
		LogFormat:      "console",
		MaxBodyBytes:   1 << 20,
		CORS: CORS{
			Methods: []string{"GET", "POST", "PUT", "OPTIONS"},
			Headers: []string{"Content-Type", "X-Log-Level", "X-Request-Id"},
		},
	}
}

// Merge overlays the non-zero fields of o onto c.
func (c Config) Merge(o Config) Config {
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.OllamaURL != "" {
		c.OllamaURL = o.OllamaURL
	}
	if o.OllamaOrigin != "" {
		c.OllamaOrigin = o.OllamaOrigin
	}
	if o.DefaultModel != "" {
		c.DefaultModel = o.DefaultModel
	}
	if o.SystemPrompt != "" {
		c.SystemPrompt = o.SystemPrompt
	}
	if o.Temperature != nil {
		c.Temperature = o.Temperature
	}
	if o.TagsTTL != 0 {
		c.TagsTTL = o.TagsTTL
	}
	if o.StreamTimeout != 0 {
		c.StreamTimeout = o.StreamTimeout
	}
	if o.ConnectTimeout != 0 {
		c.ConnectTimeout = o.ConnectTimeout
	}
	if o.SettingsPath != "" {
		c.SettingsPath = o.SettingsPath
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
	if o.MaxBodyBytes != 0 {
		c.MaxBodyBytes = o.MaxBodyBytes
	}
	if o.CORS.Enabled {
		c.CORS.Enabled = true
	}
	if len(o.CORS.Origins) > 0 {
		c.CORS.Origins = o.CORS.Origins
	}
	if len(o.CORS.Methods) > 0 {
		c.CORS.Methods = o.CORS.Methods
	}
	if len(o.CORS.Headers) > 0 {
		c.CORS.Headers = o.CORS.Headers
	}
	return c
}

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LOCALCHAT_"

// FromEnv reads LOCALCHAT_* variables using lookup (os.LookupEnv when nil).
// Only variables that are set contribute; the result is meant for Merge.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var c Config
	var errs []error
	get := func(k string) (string, bool) {
		v, ok := lookup(EnvPrefix + k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	dur := func(k string, dst *Duration) {
		if v, ok := get(k); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, k, err))
			}
		}
	}
	str := func(k string, dst *string) {
		if v, ok := get(k); ok {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("OLLAMA_URL", &c.OllamaURL)
	str("OLLAMA_ORIGIN", &c.OllamaOrigin)
	str("DEFAULT_MODEL", &c.DefaultModel)
	str("SYSTEM_PROMPT", &c.SystemPrompt)
	str("SETTINGS_PATH", &c.SettingsPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	dur("TAGS_TTL", &c.TagsTTL)
	dur("STREAM_TIMEOUT", &c.StreamTimeout)
	dur("CONNECT_TIMEOUT", &c.ConnectTimeout)
	if v, ok := get("TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTEMPERATURE: %w", EnvPrefix, err))
		} else {
			c.Temperature = &f
		}
	}
	if v, ok := get("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err))
		} else {
			c.MaxBodyBytes = n
		}
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		c.CORS.Enabled = true
		c.CORS.Origins = SplitList(v)
	}
	return c, errors.Join(errs...)
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports configuration errors that would only surface later.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.OllamaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("ollama_url %q must be an absolute http(s) URL", c.OllamaURL))
	}
	if c.TagsTTL < 0 || c.StreamTimeout < 0 || c.ConnectTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0,2]", *c.Temperature))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max_body_bytes must not be negative"))
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be json or console", c.LogFormat))
	}
	if strings.ContainsAny(strings.TrimSpace(c.DefaultModel), " \t") {
		errs = append(errs, fmt.Errorf("default_model %q must not contain whitespace", c.DefaultModel))
	}
	return errors.Join(errs...)
}
