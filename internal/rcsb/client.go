// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rcsb submits composite queries to the RCSB PDB search service and
// downloads the structure files of the matching entries.
package rcsb

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/pdiddy/pdbsearch/internal/httputil"
	"github.com/pdiddy/pdbsearch/internal/query"
	"github.com/pdiddy/pdbsearch/pkg/types"
)

// Default endpoints of the RCSB legacy REST service.
const (
	DefaultSearchURL   = "http://www.rcsb.org/pdb/rest/search"
	DefaultDownloadURL = "http://www.rcsb.org/pdb/download/downloadFile.do"
	DefaultUserAgent   = "pdbsearch/0.1"
)

// searchContentType matches what a form POST of the raw query document sends.
const searchContentType = "application/x-www-form-urlencoded"

// Client searches the PDB and fetches structure files. It remembers the
// identifiers of its most recent search so FetchAll does not search twice.
// A Client is not safe for concurrent use.
type Client struct {
	HTTP   *http.Client
	Config types.ClientConfig

	// Out receives result counts and per-identifier progress.
	Out io.Writer
	// Err receives per-identifier fetch failures.
	Err io.Writer

	Logger *slog.Logger

	// OnFetchError, if set, is called after a failed download is reported.
	OnFetchError func(id string, err error)

	ids []string
}

// NewClient returns a Client for cfg, filling unset endpoints and user agent
// with the package defaults. A zero cfg.Timeout leaves requests without a
// deadline.
func NewClient(cfg types.ClientConfig, out, errw io.Writer) *Client {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.DownloadURL == "" {
		cfg.DownloadURL = DefaultDownloadURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		HTTP:   httputil.NewClient(cfg.HTTPConfig),
		Config: cfg,
		Out:    out,
		Err:    errw,
		Logger: slog.New(slog.DiscardHandler),
	}
}

// IDs returns a copy of the identifiers found by the most recent search.
func (c *Client) IDs() []string {
	return slices.Clone(c.ids)
}

// Search submits e and returns the matching identifiers in server order.
//
// An empty result is reported on Out and returned as a nil slice with a nil
// error; the service answers a malformed query the same way, so the two cases
// cannot be told apart here. Transport failures and non-2xx responses are
// returned as errors.
func (c *Client) Search(ctx context.Context, e query.Expression) ([]string, error) {
	if e.IsEmpty() {
		return nil, query.ErrEmptyExpression
	}
	doc := query.Render(e)
	c.Logger.Debug("submitting search", "url", c.Config.SearchURL, "refinements", e.Len())

	req, err := http.NewRequest(http.MethodPost, c.Config.SearchURL, strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", searchContentType)
	req.Header.Set("User-Agent", c.Config.UserAgent)

	body, err := httputil.Do(ctx, c.HTTP, req)
	if err != nil {
		return nil, fmt.Errorf("PDB search: %w", err)
	}

	ids := strings.Fields(string(body))
	c.ids = ids
	if len(ids) == 0 {
		fmt.Fprintln(c.Out, "Failed to retrieve results")
		return nil, nil
	}
	fmt.Fprintln(c.Out, "Found number of PDB entries:", len(ids))
	return slices.Clone(ids), nil
}

// Fetch returns a sequence of records for ids, downloaded one at a time in
// order as the sequence is ranged over. Each identifier is echoed to Out
// before its request. A failed download is reported on Err and skipped.
//
// The sequence can be consumed once; ranging over it again yields nothing.
// Breaking out of the range, or cancelling ctx, stops further requests.
func (c *Client) Fetch(ctx context.Context, ids []string) iter.Seq[types.Record] {
	ids = slices.Clone(ids)
	consumed := false
	return func(yield func(types.Record) bool) {
		if consumed {
			return
		}
		consumed = true

		started := false
		defer func() {
			if started {
				fmt.Fprintln(c.Out)
			}
		}()

		for _, id := range ids {
			if ctx.Err() != nil {
				c.Logger.Debug("fetch cancelled", "remaining_from", id, "err", ctx.Err())
				return
			}
			started = true
			fmt.Fprintf(c.Out, "%s ", id)

			data, err := c.download(ctx, id)
			if err != nil {
				if httputil.IsNotFound(err) {
					fmt.Fprintf(c.Err, "Failed retrieving %s: no such entry (%v)\n", id, err)
				} else {
					fmt.Fprintf(c.Err, "Failed retrieving %s: %v\n", id, err)
				}
				if c.OnFetchError != nil {
					c.OnFetchError(id, err)
				}
				continue
			}
			c.Logger.Debug("fetched structure", "id", id, "bytes", len(data))
			if !yield(types.Record{ID: id, Data: data}) {
				return
			}
		}
	}
}

// FetchAll fetches every entry matching e. If no search has populated the
// client yet, e is searched first and any search error is returned before
// a single download is attempted.
func (c *Client) FetchAll(ctx context.Context, e query.Expression) (iter.Seq[types.Record], error) {
	if len(c.ids) == 0 {
		if _, err := c.Search(ctx, e); err != nil {
			return nil, err
		}
	}
	return c.Fetch(ctx, c.ids), nil
}

// DownloadURL returns the structure file URL for id.
func (c *Client) DownloadURL(id string) string {
	sep := "?"
	if strings.Contains(c.Config.DownloadURL, "?") {
		sep = "&"
	}
	return c.Config.DownloadURL + sep + "fileFormat=pdb&compression=NO&structureId=" + url.QueryEscape(id)
}

func (c *Client) download(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.DownloadURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("User-Agent", c.Config.UserAgent)
	return httputil.Do(ctx, c.HTTP, req)
}
