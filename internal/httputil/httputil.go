// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the PDB client.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/pdbsearch/pkg/types"
)

// StatusError reports a response whose status code was not 2xx.
type StatusError struct {
	Code   int
	Method string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s from %s %s", e.Code, http.StatusText(e.Code), e.Method, e.URL)
}

// IsNotFound reports whether err is a StatusError carrying 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// NewClient returns an http.Client honouring cfg.Timeout.
func NewClient(cfg types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

// Do executes req bound to ctx and returns the full response body.
//
// Transport failures are returned wrapped. A non-2xx response is drained and
// reported as a *StatusError. Do never retries.
func Do(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Method: req.Method, URL: req.URL.String()}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
