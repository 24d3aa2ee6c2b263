// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package testhelper provides HTTP fakes shared by the package tests.
package testhelper

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

// MockRoundTripper is a http.RoundTripper that delegates each request to Fn.
type MockRoundTripper struct {
	Fn func(req *http.Request) (*http.Response, error)
}

func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}

// FileResponse returns a RoundTripper func that answers every request with the contents
// of the given file.
func FileResponse(t *testing.T, status int, path string) func(*http.Request) (*http.Response, error) {
	t.Helper()
	return func(*http.Request) (*http.Response, error) {
		data, err := os.Open(path)
		if err != nil {
			t.Fatalf("failed to open JSON response file: %s", err)
		}
		return &http.Response{
			StatusCode: status,
			Body:       data,
			Header:     make(http.Header),
		}, nil
	}
}

// JSONResponse returns a RoundTripper func that answers every request with v encoded as JSON.
func JSONResponse(t *testing.T, status int, v any) func(*http.Request) (*http.Response, error) {
	t.Helper()
	return func(*http.Request) (*http.Response, error) {
		buf := bytes.NewBuffer(nil)
		if err := json.NewEncoder(buf).Encode(v); err != nil {
			return nil, err
		}
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(buf),
			Header:     make(http.Header),
		}, nil
	}
}

// TestOnlineAPIURL is a public JSON endpoint used by the integration tests.
const TestOnlineAPIURL = "https://httpbin.org/json"

// PerformIntegrationTests skips the calling test unless PERFORM_INTEGRATION_TEST is set to true.
func PerformIntegrationTests(t *testing.T) {
	t.Helper()
	if val := os.Getenv("PERFORM_INTEGRATION_TEST"); !strings.EqualFold(val, "true") {
		t.Skip("skipping integration test")
	}
}
