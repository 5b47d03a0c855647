package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc_ExplicitHTTPS(t *testing.T) {
	clearProxyEnv(t)

	proxy := NewProxyFunc("", "http://proxy.internal:3128", "")
	req, _ := http.NewRequest(http.MethodPost, "https://api.datacite.org/graphql", nil)

	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "proxy.internal:3128" {
		t.Errorf("expected proxy.internal:3128, got %v", got)
	}
}

func TestNewProxyFunc_NoProxyBypass(t *testing.T) {
	clearProxyEnv(t)

	proxy := NewProxyFunc("", "http://proxy.internal:3128", "api.datacite.org")
	req, _ := http.NewRequest(http.MethodPost, "https://api.datacite.org/graphql", nil)

	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected direct connection, got %v", got)
	}
}

func TestNewProxyFunc_NoneConfigured(t *testing.T) {
	clearProxyEnv(t)

	proxy := NewProxyFunc("", "", "")
	req, _ := http.NewRequest(http.MethodGet, "https://example.org", nil)

	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no proxy, got %v", got)
	}
}

func clearProxyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "no_proxy", "REQUEST_METHOD"} {
		t.Setenv(key, "")
	}
}
