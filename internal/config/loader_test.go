package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: ":9999"
ollama_url: http://10.0.0.2:11434
default_model: m1
tags_ttl: 30s
stream_timeout: 2m
temperature: 0.7
cors:
  enabled: true
  origins: ["chrome-extension://abc"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.OllamaURL != "http://10.0.0.2:11434" || cfg.DefaultModel != "m1" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.TagsTTL.D() != 30*time.Second || cfg.StreamTimeout.D() != 2*time.Minute {
		t.Fatalf("durations: %v %v", cfg.TagsTTL, cfg.StreamTimeout)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.7 {
		t.Fatalf("temperature: %v", cfg.Temperature)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.Origins) != 1 {
		t.Fatalf("cors: %+v", cfg.CORS)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","ollama_url":"http://h:1","default_model":"m2","tags_ttl":"45s","connect_timeout":3}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.OllamaURL != "http://h:1" || cfg.DefaultModel != "m2" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.TagsTTL.D() != 45*time.Second || cfg.ConnectTimeout.D() != 3*time.Second {
		t.Fatalf("durations: %v %v", cfg.TagsTTL, cfg.ConnectTimeout)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\ndefault_model=\"m3\"\nstream_timeout=\"90s\"\n[cors]\nenabled=true\norigins=[\"http://a\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.DefaultModel != "m3" || cfg.StreamTimeout.D() != 90*time.Second {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.CORS.Enabled || cfg.CORS.Origins[0] != "http://a" {
		t.Fatalf("cors: %+v", cfg.CORS)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	p = writeTempFile(t, d, "dur.yaml", "tags_ttl: soon\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected duration error")
	}
}
