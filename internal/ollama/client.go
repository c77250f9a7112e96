package ollama

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"localchat/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultStreamTimeout  = 5 * time.Minute
	defaultConnectTimeout = 5 * time.Second
	defaultPingTimeout    = 2 * time.Second
	maxTagsBytes          = 8 << 20
	maxErrorBodyBytes     = 4096
)

// SettingsSource supplies persisted user settings at stream start.
type SettingsSource interface {
	Get(ctx context.Context) (types.Settings, error)
}

// Config holds Client tunables. Zero values select package defaults.
type Config struct {
	BaseURL string
	// Origin is sent as the Origin header so Ollama's OLLAMA_ORIGINS check
	// sees the same value the 403 hint tells users to allow.
	Origin        string
	DefaultModel  string
	SystemPrompt  string
	Temperature   *float64
	StreamTimeout time.Duration
	// ConnectTimeout bounds dialing only; streams rely on StreamTimeout.
	ConnectTimeout time.Duration
	Settings       SettingsSource
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
}

// Client is the Ollama chat transport and tag fetcher.
type Client struct {
	baseURL       string
	origin        string
	defaultModel  string
	systemPrompt  string
	temperature   float64
	streamTimeout time.Duration
	settings      SettingsSource
	httpClient    *http.Client
	log           zerolog.Logger
}

// NewClient constructs a Client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		origin:        strings.TrimSpace(cfg.Origin),
		defaultModel:  strings.TrimSpace(cfg.DefaultModel),
		systemPrompt:  cfg.SystemPrompt,
		temperature:   types.DefaultTemperature,
		streamTimeout: cfg.StreamTimeout,
		settings:      cfg.Settings,
		httpClient:    cfg.HTTPClient,
		log:           zerolog.Nop(),
	}
	if c.baseURL == "" {
		c.baseURL = types.DefaultOllamaURL
	}
	if c.defaultModel == "" {
		c.defaultModel = types.DefaultModel
	}
	if cfg.Temperature != nil {
		c.temperature = *cfg.Temperature
	}
	if c.streamTimeout <= 0 {
		c.streamTimeout = defaultStreamTimeout
	}
	if c.httpClient == nil {
		ct := cfg.ConnectTimeout
		if ct <= 0 {
			ct = defaultConnectTimeout
		}
		c.httpClient = NewHTTPClient(ct)
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "ollama").Logger()
	}
	return c
}

// NewHTTPClient returns a client suited to long-lived streams: no overall
// Timeout, every request carries its own context deadline.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: 0}
}

// BaseURL returns the Ollama address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// ResolveModel picks the effective model: explicit request value, then the
// persisted setting, then the configured default.
func (c *Client) ResolveModel(requested, persisted string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if m := strings.TrimSpace(persisted); m != "" {
		return m
	}
	return c.defaultModel
}

// loadSettings never fails the stream; a broken settings store only loses
// the persisted override.
func (c *Client) loadSettings(ctx context.Context) types.Settings {
	if c.settings == nil {
		return types.Settings{}
	}
	st, err := c.settings.Get(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("settings lookup failed")
		return types.Settings{}
	}
	return st
}

// FetchTags returns the raw body of GET /api/tags.
func (c *Client) FetchTags(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.setOrigin(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxTagsBytes))
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	return b, nil
}

// Ping checks that Ollama answers GET /api/version.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

func (c *Client) setOrigin(req *http.Request) {
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
}
