// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdbsearch/pkg/types"
)

func TestDo_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "1ABC 2XYZ")
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	body, err := Do(context.Background(), ts.Client(), req)
	require.NoError(t, err)
	assert.Equal(t, "1ABC 2XYZ", string(body))
}

func TestDo_StatusErrorNoRetry(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/x?structureId=9ZZZ", nil)
	require.NoError(t, err)

	_, err = Do(context.Background(), ts.Client(), req)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, http.MethodGet, se.Method)
	assert.Contains(t, se.Error(), "HTTP 404 Not Found")
	assert.Contains(t, se.Error(), "structureId=9ZZZ")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ServerErrorIsNotNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL, nil)
	require.NoError(t, err)

	_, err = Do(context.Background(), ts.Client(), req)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestDo_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := ts.URL
	ts.Close()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	_, err = Do(context.Background(), http.DefaultClient, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP request")
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestDo_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = Do(ctx, ts.Client(), req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientTimeout(t *testing.T) {
	c := NewClient(types.HTTPConfig{Timeout: 3 * time.Second})
	assert.Equal(t, 3*time.Second, c.Timeout)
}
