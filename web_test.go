/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *Manager, *Metrics) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errs := make(chan error, 64)
	metrics := newMetrics()

	mux, m := newRouter(ctx, cfg, metrics, errs)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, m, metrics
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func TestStaticRoutes(t *testing.T) {
	cfg := &Config{port: 8080, metrics: true}
	srv, _, _ := newTestServer(t, cfg)

	cases := []struct {
		path        string
		contentType string
		body        string
	}{
		{path: "/healthz", contentType: "text/plain", body: "Ok"},
		{path: "/version", contentType: "text/plain", body: "namewheel v" + releaseVersion},
		{path: "/robots.txt", contentType: "text/plain", body: "Disallow: /wheel/"},
		{path: "/favicons/favicon.svg", contentType: "image/svg+xml", body: "<svg"},
		{path: "/assets/wheel/app.js", contentType: "application/javascript", body: "WebSocket"},
		{path: "/assets/wheel/app.css", contentType: "text/css", body: "@keyframes spin"},
		{path: "/wheel/abcd1234", contentType: "text/html", body: "/assets/wheel/app.js"},
		{path: "/metrics", contentType: "text/plain", body: "namewheel_sessions"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tc.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), tc.contentType)
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Contains(t, string(body), tc.body)
		})
	}
}

func TestNewWheelRedirect(t *testing.T) {
	srv, _, _ := newTestServer(t, &Config{port: 8080, prefix: "/spin"})

	client := &http.Client{CheckRedirect: noRedirect}

	resp, err := client.Get(srv.URL + "/spin/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/spin/wheel", resp.Header.Get("Location"))

	resp, err = client.Get(srv.URL + "/spin/wheel")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/spin/wheel/"), location)
	assert.Len(t, strings.TrimPrefix(location, "/spin/wheel/"), 8)
}

func TestQRCode(t *testing.T) {
	srv, _, _ := newTestServer(t, &Config{port: 8080})

	resp, err := http.Get(srv.URL + "/wheel/abcd1234/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))
}

func TestMetricsDisabledByDefault(t *testing.T) {
	srv, _, _ := newTestServer(t, &Config{port: 8080})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}

func TestProfileHandlers(t *testing.T) {
	srv, _, _ := newTestServer(t, &Config{port: 8080, profile: true})

	resp, err := http.Get(srv.URL + "/pprof/cmdline")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsSecurityHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t, &Config{port: 8080, metrics: true})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'self'", resp.Header.Get("Content-Security-Policy"))
}
