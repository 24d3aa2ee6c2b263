// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/wneessen/geopicker/internal/logger"
)

const (
	// DefaultTimeout is the request timeout used when a Request sets none
	DefaultTimeout = time.Second * 10

	// errorBodyLimit caps how much of an error response ends up in a StatusError
	errorBodyLimit = 256
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"
	// UserAgent identifies geopicker towards the geocoding and geolocation APIs. Nominatim
	// rejects requests without an identifying agent.
	UserAgent = fmt.Sprintf("geopicker/%s (%s; %s; +https://github.com/wneessen/geopicker/)",
		version, runtime.GOOS, runtime.GOARCH)

	ErrNonPointerTarget = errors.New("target must be a non-nil pointer")
	ErrHTTPStatus       = errors.New("unexpected HTTP status")
)

// Request describes a single JSON API call.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     io.Reader
	Header   map[string]string
	Timeout  time.Duration
}

// StatusError is returned for responses with a status code of 400 or above. It matches
// ErrHTTPStatus with errors.Is.
type StatusError struct {
	Code    int
	Method  string
	Host    string
	Message string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %s %s returned %d", ErrHTTPStatus, e.Method, e.Host, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// Client wraps the stdlib http.Client for JSON APIs
type Client struct {
	*http.Client
	logger *logger.Logger
}

// New returns a new HTTP client. Timeouts are applied per request.
func New(logger *logger.Logger) *Client {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Client{Client: &http.Client{Transport: transport}, logger: logger}
}

// Get performs a GET request and decodes the JSON response into target
func (h *Client) Get(ctx context.Context, endpoint string, target any, query url.Values, headers map[string]string) (int, error) {
	return h.Fetch(ctx, Request{Method: http.MethodGet, Endpoint: endpoint, Query: query, Header: headers}, target)
}

// GetWithTimeout is Get with a custom timeout
func (h *Client) GetWithTimeout(ctx context.Context, endpoint string, target any, query url.Values,
	headers map[string]string, timeout time.Duration,
) (int, error) {
	return h.Fetch(ctx, Request{
		Method: http.MethodGet, Endpoint: endpoint, Query: query,
		Header: headers, Timeout: timeout,
	}, target)
}

// Post performs a POST request and decodes the JSON response into target
func (h *Client) Post(ctx context.Context, endpoint string, target any, body io.Reader, headers map[string]string) (int, error) {
	return h.Fetch(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body, Header: headers}, target)
}

// PostWithTimeout is Post with a custom timeout
func (h *Client) PostWithTimeout(ctx context.Context, endpoint string, target any, body io.Reader,
	headers map[string]string, timeout time.Duration,
) (int, error) {
	return h.Fetch(ctx, Request{
		Method: http.MethodPost, Endpoint: endpoint, Body: body,
		Header: headers, Timeout: timeout,
	}, target)
}

// Fetch sends req and decodes the JSON response body into target, which must be a non-nil
// pointer. It returns the status code of the response, if one was received.
func (h *Client) Fetch(ctx context.Context, req Request, target any) (int, error) {
	if rv := reflect.ValueOf(target); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, ErrNonPointerTarget
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}

	request, err := h.newRequest(ctx, req)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(request.Context(), req.Timeout)
	defer cancel()

	response, err := h.Do(request.WithContext(ctx))
	err = stripURL(err, req.Method, request.URL.Host)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 0, err
	case err != nil:
		return 0, fmt.Errorf("failed to perform HTTP request: %w", err)
	case response == nil:
		return 0, errors.New("nil response received")
	}
	defer h.closeBody(response.Body)

	if response.StatusCode >= http.StatusBadRequest {
		return response.StatusCode, &StatusError{
			Code:    response.StatusCode,
			Method:  req.Method,
			Host:    request.URL.Host,
			Message: readSnippet(response.Body),
		}
	}
	if err = json.NewDecoder(response.Body).Decode(target); err != nil {
		return response.StatusCode, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return response.StatusCode, nil
}

func (h *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	reqURL, err := url.Parse(req.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if len(req.Query) > 0 {
		reqURL.RawQuery = req.Query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, req.Method, reqURL.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed create new HTTP request with context: %w", err)
	}
	request.Header.Set("User-Agent", UserAgent)
	request.Header.Set("Accept", "application/json")
	if req.Body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Header {
		request.Header.Set(k, v)
	}
	return request, nil
}

func (h *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		h.logger.Error("failed to close HTTP response body", logger.Err(err))
	}
}

// stripURL replaces the full request URL of a transport error with method and host. Query
// strings carry API keys and must not end up in errors or logs.
func stripURL(err error, method, host string) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return fmt.Errorf("%s %s: %w", method, host, uerr.Err)
}

// readSnippet returns the start of an error body with whitespace collapsed.
func readSnippet(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(string(data)), " ")
}
