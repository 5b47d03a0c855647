package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc returns the proxy selector for the GraphQL transport.
// Explicit settings win; anything left empty falls back to the HTTP_PROXY,
// HTTPS_PROXY and NO_PROXY environment variables.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if httpProxy != "" {
		cfg.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTPSProxy = httpsProxy
	}
	if noProxy != "" {
		cfg.NoProxy = noProxy
	}

	proxyURL := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxyURL(req.URL)
	}
}
