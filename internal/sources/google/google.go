// Package google reads datasets through the Google Sheets API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"indicadores/internal/core"
	"indicadores/internal/sources"
)

// ValuesGetter fetches a cell range of a spreadsheet.
type ValuesGetter interface {
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
}

// Options configures the Sheets client.
type Options struct {
	// SpreadsheetID, when set, holds every dataset as a tab named after it.
	// Otherwise each dataset is read from the first tab of its own sheet.
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	values        ValuesGetter
	catalog       core.Catalog
	spreadsheetID string
}

var _ sources.DatasetReader = (*Client)(nil)

// New builds a client on top of an arbitrary values getter.
func New(values ValuesGetter, catalog core.Catalog, spreadsheetID string) *Client {
	return &Client{values: values, catalog: catalog, spreadsheetID: strings.TrimSpace(spreadsheetID)}
}

// NewFromOptions creates a Sheets client authenticated with a service account.
func NewFromOptions(ctx context.Context, opts Options, catalog core.Catalog) (*Client, error) {
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(&serviceValues{svc: svc}, catalog, opts.SpreadsheetID), nil
}

// newSheetsService initializes a read-only Sheets service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when no credentials are configured.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s *serviceValues) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// ReadDataset reads the whole dataset range and decodes it against its schema.
func (c *Client) ReadDataset(ctx context.Context, dataset string, filter core.Filter) (core.Table, error) {
	schema, err := c.catalog.Lookup(dataset)
	if err != nil {
		return core.Table{}, err
	}
	id, rng := c.location(schema)
	if id == "" {
		return core.Table{}, fmt.Errorf("%s: no spreadsheet configured", dataset)
	}
	values, err := c.values.GetValues(ctx, id, rng)
	if err != nil {
		return core.Table{}, fmt.Errorf("sheets get %s: %w", rng, err)
	}
	return sources.DecodeValues(schema, values, filter)
}

func (c *Client) location(schema core.Schema) (string, string) {
	if c.spreadsheetID != "" {
		return c.spreadsheetID, fmt.Sprintf("'%s'!A:ZZ", schema.Dataset)
	}
	return schema.SheetID, "A:ZZ"
}
