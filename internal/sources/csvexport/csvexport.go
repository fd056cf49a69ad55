// Package csvexport reads datasets from public spreadsheet CSV exports.
package csvexport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"indicadores/internal/core"
	"indicadores/internal/sources"
)

type Client struct {
	http    *http.Client
	baseURL string
	catalog core.Catalog
}

var _ sources.DatasetReader = (*Client)(nil)

// New creates a client for exports under baseURL; httpClient may be nil.
func New(baseURL string, catalog core.Catalog, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), catalog: catalog}
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ExportURL returns the CSV export address of the first tab of a sheet.
func (c *Client) ExportURL(sheetID string) string {
	return fmt.Sprintf("%s/%s/export?format=csv&gid=0", c.baseURL, sheetID)
}

func (c *Client) ReadDataset(ctx context.Context, dataset string, filter core.Filter) (core.Table, error) {
	schema, err := c.catalog.Lookup(dataset)
	if err != nil {
		return core.Table{}, err
	}
	if schema.SheetID == "" {
		return core.Table{}, fmt.Errorf("%s: no sheet id", dataset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ExportURL(schema.SheetID), nil)
	if err != nil {
		return core.Table{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return core.Table{}, fmt.Errorf("%s: fetch csv: %w", dataset, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return core.Table{}, fmt.Errorf("%s: fetch csv: unexpected status %d", dataset, resp.StatusCode)
	}
	return sources.ReadCSV(resp.Body, schema, filter)
}
