// Package trello reads cards, lists and list actions from the card-tracking
// API.
package trello

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/model"
)

// DefaultBaseURL is the public card API.
const DefaultBaseURL = "https://api.trello.com/1"

// actionLimit is the largest page the actions endpoint returns.
const actionLimit = "1000"

// ErrListNotFound is returned by ListIDByName when no list has the name.
var ErrListNotFound = errors.New("list not found")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether retrying the call may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a key/token authenticated card API client.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// NewClient authenticates every request with the key and token query
// parameters.
func NewClient(baseURL, key, token string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetQueryParam("key", key).
		SetQueryParam("token", token).
		SetHeader("Accept", "application/json")
	return &Client{http: c, log: log}
}

// List is a column on a board.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type action struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Date time.Time `json:"date"`
	Data struct {
		Card struct {
			ShortLink string `json:"shortLink"`
		} `json:"card"`
	} `json:"data"`
}

func (c *Client) get(ctx context.Context, op, path string, query map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("trello %s request failed: %w", op, err)
	}
	if resp.IsError() {
		return &APIError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// BoardCards lists the open cards on a board.
func (c *Client) BoardCards(ctx context.Context, boardID string) ([]model.Card, error) {
	var cards []model.Card
	if err := c.get(ctx, "list cards", "/boards/"+url.PathEscape(boardID)+"/cards", nil, &cards); err != nil {
		return nil, err
	}
	c.log.Debug("fetched cards", zap.String("board_id", boardID), zap.Int("count", len(cards)))
	return cards, nil
}

// BoardLists lists the columns of a board.
func (c *Client) BoardLists(ctx context.Context, boardID string) ([]List, error) {
	var lists []List
	if err := c.get(ctx, "list lists", "/boards/"+url.PathEscape(boardID)+"/lists", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// ListIDByName returns the id of the first list on the board called name.
func (c *Client) ListIDByName(ctx context.Context, boardID, name string) (string, error) {
	lists, err := c.BoardLists(ctx, boardID)
	if err != nil {
		return "", err
	}
	for _, l := range lists {
		if l.Name == name {
			return l.ID, nil
		}
	}
	return "", fmt.Errorf("%q on board %s: %w", name, boardID, ErrListNotFound)
}

// ListActions returns up to the latest thousand actions on a list.
func (c *Client) ListActions(ctx context.Context, listID string) ([]model.Action, error) {
	var raw []action
	query := map[string]string{"limit": actionLimit}
	if err := c.get(ctx, "list actions", "/lists/"+url.PathEscape(listID)+"/actions", query, &raw); err != nil {
		return nil, err
	}
	actions := make([]model.Action, 0, len(raw))
	for _, a := range raw {
		actions = append(actions, model.Action{
			ID:            a.ID,
			Type:          a.Type,
			Date:          a.Date,
			CardShortLink: a.Data.Card.ShortLink,
		})
	}
	c.log.Debug("fetched actions", zap.String("list_id", listID), zap.Int("count", len(actions)))
	return actions, nil
}

// CardCreated decodes the creation time embedded in the first eight hex
// digits of a card id.
func CardCreated(cardID string) (time.Time, error) {
	if len(cardID) < 8 {
		return time.Time{}, fmt.Errorf("card id %q too short", cardID)
	}
	secs, err := strconv.ParseInt(cardID[:8], 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("card id %q: %w", cardID, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}
