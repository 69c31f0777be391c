// Package sheets reads and writes cell ranges of one spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public spreadsheet API.
const DefaultBaseURL = "https://sheets.googleapis.com"

// lastColumn bounds the range scanned for the last used row.
const lastColumn = "ZZZ"

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether retrying the call may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client reads and writes one spreadsheet through the values API.
type Client struct {
	http          *resty.Client
	spreadsheetID string
	log           *zap.Logger
}

// NewClient returns a client whose requests carry tokens from ts.
func NewClient(ctx context.Context, baseURL, spreadsheetID string, ts oauth2.TokenSource, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := resty.NewWithClient(oauth2.NewClient(ctx, ts)).
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetPathParam("spreadsheet", spreadsheetID).
		SetHeader("Accept", "application/json")
	return &Client{http: c, spreadsheetID: spreadsheetID, log: log}
}

// A1 returns an A1-notation reference to cells on sheet, quoting the sheet
// name.
func A1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

// Values returns the rows of range rng. Trailing empty rows and cells are
// omitted by the API.
func (c *Client) Values(ctx context.Context, rng string) ([][]any, error) {
	var out valueRange
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("range", rng).
		SetResult(&out).
		Get("/v4/spreadsheets/{spreadsheet}/values/{range}")
	if err != nil {
		return nil, fmt.Errorf("sheets read %s failed: %w", rng, err)
	}
	if resp.IsError() {
		return nil, &APIError{Op: "read " + rng, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return out.Values, nil
}

// LastRow returns the 1-based number of the last row on sheet holding a
// non-blank cell, or 0 for an empty sheet.
func (c *Client) LastRow(ctx context.Context, sheet string) (int, error) {
	rows, err := c.Values(ctx, A1(sheet, "A1:"+lastColumn))
	if err != nil {
		return 0, err
	}
	last := len(rows)
	for last > 0 && blank(rows[last-1]) {
		last--
	}
	return last, nil
}

func blank(row []any) bool {
	for _, cell := range row {
		if cell != nil && strings.TrimSpace(fmt.Sprint(cell)) != "" {
			return false
		}
	}
	return true
}

// Update writes values into one row starting at cell (e.g. "C12") on sheet.
// Values are stored as entered, without parsing.
func (c *Client) Update(ctx context.Context, sheet, cell string, values ...any) error {
	rng := A1(sheet, cell)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("range", rng).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(valueRange{Range: rng, MajorDimension: "ROWS", Values: [][]any{values}}).
		Put("/v4/spreadsheets/{spreadsheet}/values/{range}")
	if err != nil {
		return fmt.Errorf("sheets write %s failed: %w", rng, err)
	}
	if resp.IsError() {
		return &APIError{Op: "write " + rng, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	c.log.Debug("sheet updated", zap.String("range", rng), zap.Int("cells", len(values)))
	return nil
}
