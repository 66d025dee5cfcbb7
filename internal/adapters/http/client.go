// SPDX-License-Identifier: AGPL-3.0-or-later

// Package http implements the HTTP adapter: a single request per call, JSON
// body encode/decode, and the 30-second per-request ceiling (spec.md
// section 4.2).
//
// Feature: ADAPTER_HTTP
// Spec: spec.md section 4.2 (HTTP Adapter)
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sagaflow/pkg/saga"
)

// RequestTimeout is the total per-request ceiling (spec.md section 4.2).
const RequestTimeout = 30 * time.Second

// Client is a saga.HTTPClient backed by net/http. Each call constructs a
// short-lived client bound to RequestTimeout, matching spec.md section 5's
// "HTTP client is short-lived per step".
type Client struct {
	transport http.RoundTripper
}

// New returns a Client using http.DefaultTransport.
func New() *Client {
	return &Client{transport: http.DefaultTransport}
}

// NewWithTransport returns a Client using a caller-supplied transport,
// primarily for tests.
func NewWithTransport(transport http.RoundTripper) *Client {
	return &Client{transport: transport}
}

// Request issues method against url with headers and a JSON-encoded body,
// and normalizes the outcome into a saga.HTTPResponse.
func (c *Client) Request(ctx context.Context, method, url string, headers map[string]string, body any) (saga.HTTPResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return saga.HTTPResponse{}, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return saga.HTTPResponse{}, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpClient := &http.Client{Transport: c.transport, Timeout: RequestTimeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return saga.HTTPResponse{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return saga.HTTPResponse{}, fmt.Errorf("read response body: %w", err)
	}

	parsed, err := decodeBody(raw)
	if err != nil {
		return saga.HTTPResponse{}, fmt.Errorf("decode response body: %w", err)
	}

	return saga.HTTPResponse{Status: resp.StatusCode, Body: parsed}, nil
}

// decodeBody parses raw as JSON, treating an empty body as an empty object
// rather than a decode failure (spec.md section 4.2: "{status, body: parsed
// JSON or {}}").
func decodeBody(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
