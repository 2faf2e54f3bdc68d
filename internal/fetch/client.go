// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewRetryableClient returns an HTTP client with automatic retries and a
// bounded redirect chain.
func NewRetryableClient() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	// logging belongs to the application, not the transport
	retryClient.Logger = nil

	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after 10 redirects")
		}
		return nil
	}
	return client
}

// MockResponse describes a canned answer for a mocked URL.
type MockResponse struct {
	Body         string
	StatusCode   int
	ContentType  string
	ETag         string
	LastModified string
	// If true, the request fails as if the connection timed out
	Timeout bool
}

// MockTransport answers requests from a URL table; useful for tests that
// must not reach the network.
type MockTransport struct {
	// Deny requests that are not mocked
	DenyUnmocked bool
	Responses    map[string]MockResponse
	// Requests records every URL fetched, in order
	Requests []string
}

func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fullURL := req.URL.String()
	m.Requests = append(m.Requests, fullURL)

	mock, ok := m.Responses[fullURL]
	if !ok {
		if m.DenyUnmocked {
			return nil, fmt.Errorf("request not mocked: %s", fullURL)
		}
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     http.Header{},
			Request:    req,
		}, nil
	}
	if mock.Timeout {
		return nil, fmt.Errorf("mocked timeout for %s", fullURL)
	}

	// honor conditional requests when the mock carries validators
	status := mock.StatusCode
	body := mock.Body
	if mock.ETag != "" && req.Header.Get("If-None-Match") == mock.ETag {
		status = http.StatusNotModified
		body = ""
	}

	header := http.Header{}
	if mock.ContentType != "" {
		header.Set("Content-Type", mock.ContentType)
	}
	if mock.ETag != "" {
		header.Set("ETag", mock.ETag)
	}
	if mock.LastModified != "" {
		header.Set("Last-Modified", mock.LastModified)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     header,
		Request:    req,
	}, nil
}

// NewMockedClient returns an http client whose responses come from the table.
func NewMockedClient(transport *MockTransport) *http.Client {
	return &http.Client{Transport: transport, Timeout: 30 * time.Second}
}
