package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetInferTimeout_NormalizesNegativeToZero(t *testing.T) {
	defer SetInferTimeout(0)
	SetInferTimeout(-5 * time.Second)
	if inferTimeout != 0 {
		t.Fatalf("expected 0, got %v", inferTimeout)
	}
	SetInferTimeout(3 * time.Second)
	if inferTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", inferTimeout)
	}
}

func TestCheckOrigin(t *testing.T) {
	defer SetWebSocketOptions(0, 0, nil)
	SetWebSocketOptions(0, 0, nil)
	cases := map[string]bool{
		"":                              true,
		"chrome-extension://abc":        true,
		"moz-extension://abc":           true,
		"http://localhost:5173":         true,
		"http://127.0.0.1:8765":         true,
		"http://[::1]:3000":             true,
		"https://evil.example":          false,
		"http://localhost.evil.example": false,
		"file://":                       false,
		"null":                          false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := checkOrigin(r); got != want {
			t.Fatalf("origin %q: got %v want %v", origin, got, want)
		}
	}

	SetWebSocketOptions(0, 0, []string{"https://App.example"})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://app.example")
	if !checkOrigin(r) {
		t.Fatalf("listed origin rejected")
	}
	r.Header.Set("Origin", "https://other.example")
	if checkOrigin(r) {
		t.Fatalf("unlisted origin accepted")
	}
	SetWebSocketOptions(0, 0, []string{"*"})
	if !checkOrigin(r) {
		t.Fatalf("wildcard should accept any origin")
	}
}
