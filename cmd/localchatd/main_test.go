package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"localchat/internal/config"
)

// fakeOllama serves /api/tags and a scripted /api/chat and records the
// model of every chat request.
type fakeOllama struct {
	*httptest.Server
	mu     sync.Mutex
	models []string
	chat   string
}

func newFakeOllama(t *testing.T, tags, chat string) *fakeOllama {
	t.Helper()
	f := &fakeOllama{chat: chat}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		if tags == "" {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, tags)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.models = append(f.models, body.Model)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, f.chat)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOllama) requestedModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.models...)
}

const (
	tagsBody = `{"models":[{"name":"llama3.1:8b"},{"name":"mistral:7b"}]}`
	chatBody = `{"message":{"content":"Hel"},"done":false}` + "\n" +
		`{"message":{"content":"lo"},"done":false}` + "\n" +
		`{"done":true}` + "\n"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, config.EnvPrefix) {
			t.Setenv(k, "")
		}
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	clearEnv(t)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestModels_PrintsNormalizedList(t *testing.T) {
	f := newFakeOllama(t, tagsBody, "")
	out, _, err := execute(t, "models", "--ollama-url", f.URL, "--log-level", "error")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if out != "llama3.1:8b\nmistral:7b\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestModels_JSON(t *testing.T) {
	f := newFakeOllama(t, `{"tags":["a","b"]}`, "")
	out, _, err := execute(t, "models", "--json", "--ollama-url", f.URL, "--log-level", "error")
	if err != nil {
		t.Fatalf("models --json: %v", err)
	}
	var resp struct {
		Models []string `json:"models"`
		TTLMs  int64    `json:"ttl_ms"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(resp.Models) != 2 || resp.Models[0] != "a" || resp.TTLMs != 60000 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestModels_FetchError(t *testing.T) {
	f := newFakeOllama(t, "", "")
	_, _, err := execute(t, "models", "--ollama-url", f.URL, "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "fetch models") {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestAsk_UsesPersistedModel(t *testing.T) {
	f := newFakeOllama(t, tagsBody, chatBody)
	path := filepath.Join(t.TempDir(), "settings.yaml")

	if _, _, err := execute(t, "settings", "set-model", "mistral:7b", "--settings", path); err != nil {
		t.Fatalf("set-model: %v", err)
	}
	out, _, err := execute(t, "ask", "say", "hello", "--ollama-url", f.URL, "--settings", path, "--log-level", "error")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "Hello\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if got := f.requestedModels(); len(got) != 1 || got[0] != "mistral:7b" {
		t.Fatalf("requested models %v", got)
	}

	// An explicit flag wins over the persisted choice.
	if _, _, err := execute(t, "ask", "hi", "-m", "llama3.1:8b", "--ollama-url", f.URL, "--settings", path, "--log-level", "error"); err != nil {
		t.Fatalf("ask -m: %v", err)
	}
	if got := f.requestedModels(); got[1] != "llama3.1:8b" {
		t.Fatalf("requested models %v", got)
	}
}

func TestAsk_ReportsStreamError(t *testing.T) {
	f := newFakeOllama(t, tagsBody, `{"error":"model not found"}`+"\n")
	path := filepath.Join(t.TempDir(), "settings.yaml")
	_, errOut, err := execute(t, "ask", "hi", "--ollama-url", f.URL, "--settings", path, "--log-level", "error")
	if !errors.Is(err, errStreamFailed) {
		t.Fatalf("expected errStreamFailed, got %v", err)
	}
	if !strings.Contains(errOut, "model not found") {
		t.Fatalf("stderr missing error: %q", errOut)
	}
}

func TestSettings_Commands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	out, _, err := execute(t, "settings", "get", "--settings", path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, `model: ""`) || !strings.Contains(out, "debug: false") {
		t.Fatalf("unexpected empty settings %q", out)
	}
	if _, _, err := execute(t, "settings", "set-debug", "true", "--settings", path); err != nil {
		t.Fatalf("set-debug: %v", err)
	}
	if _, _, err := execute(t, "settings", "set-model", "  qwen2:7b ", "--settings", path); err != nil {
		t.Fatalf("set-model: %v", err)
	}
	out, _, err = execute(t, "settings", "get", "--settings", path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "model: qwen2:7b") || !strings.Contains(out, "debug: true") {
		t.Fatalf("unexpected settings %q", out)
	}

	if _, _, err := execute(t, "settings", "set-debug", "maybe", "--settings", path); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, _, err := execute(t, "settings", "set-model", "two words", "--settings", path); err == nil {
		t.Fatalf("expected invalid model error")
	}
	if _, _, err := execute(t, "settings", "--settings", path); err == nil {
		t.Fatalf("expected missing subcommand error")
	}
}

func TestResolveConfig_Layering(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "localchat.yaml")
	yml := "addr: 127.0.0.1:9000\nollama_url: http://file:11434\nlog_level: warn\ntags_ttl: 30s\n"
	if err := os.WriteFile(file, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOCALCHAT_OLLAMA_URL", "http://env:11434")

	cfg, err := resolveConfig(file, config.Config{LogLevel: "debug"})
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("file addr not applied: %q", cfg.Addr)
	}
	if cfg.OllamaURL != "http://env:11434" {
		t.Fatalf("env did not override file: %q", cfg.OllamaURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("flag did not override file: %q", cfg.LogLevel)
	}
	if cfg.TagsTTL.D() != 30*time.Second {
		t.Fatalf("tags_ttl = %v", cfg.TagsTTL)
	}
	if cfg.StreamTimeout != config.Defaults().StreamTimeout {
		t.Fatalf("default lost: %v", cfg.StreamTimeout)
	}
}

func TestResolveConfig_Invalid(t *testing.T) {
	clearEnv(t)
	if _, err := resolveConfig("", config.Config{OllamaURL: "localhost:11434"}); err == nil {
		t.Fatalf("expected invalid URL error")
	}
	if _, err := resolveConfig(filepath.Join(t.TempDir(), "missing.yaml"), config.Config{}); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, _, err := execute(t, "models", "--default-temperature", "3"); err == nil {
		t.Fatalf("expected temperature range error")
	}
}

func TestServe_ServesUntilCancelled(t *testing.T) {
	f := newFakeOllama(t, tagsBody, chatBody)
	cfg := config.Defaults()
	cfg.OllamaURL = f.URL
	cfg.SettingsPath = filepath.Join(t.TempDir(), "settings.yaml")
	a := &app{out: io.Discard, errOut: io.Discard, cfg: cfg, log: zerolog.Nop()}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/models")
	if err != nil {
		t.Fatalf("GET /models: %v", err)
	}
	var body struct {
		Models []string `json:"models"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(body.Models) != 2 {
		t.Fatalf("status=%d models=%v", resp.StatusCode, body.Models)
	}

	resp, err = http.Post(base+"/infer", "application/json", strings.NewReader(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("POST /infer: %v", err)
	}
	nd, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(nd), `"data":"Hel"`) || !strings.HasSuffix(strings.TrimSpace(string(nd)), `{"type":"done"}`) {
		t.Fatalf("unexpected infer body %q", nd)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}

func TestWSOrigins_IncludesOllamaOrigin(t *testing.T) {
	cfg := config.Defaults()
	cfg.CORS.Origins = []string{"https://app.example"}
	cfg.OllamaOrigin = " chrome-extension://localchat "
	got := wsOrigins(cfg)
	if len(got) != 2 || got[0] != "https://app.example" || got[1] != "chrome-extension://localchat" {
		t.Fatalf("origins = %v", got)
	}
	if got := wsOrigins(config.Defaults()); len(got) != 0 {
		t.Fatalf("default origins = %v", got)
	}
}
