// Package api is a client for the venue events API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"eventstoday/internal/fetch"
	appLog "eventstoday/internal/log"
	"eventstoday/internal/model"
)

// TodayPath is appended to the configured base URL.
const TodayPath = "/events/today"

// Client fetches events from the venue API.
type Client struct {
	baseURL string
	apiKey  string
	fetcher *fetch.Fetcher
}

// NewClient returns a Client for baseURL using f for transport and caching.
func NewClient(baseURL, apiKey string, f *fetch.Fetcher) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		fetcher: f,
	}
}

// envelopeKeys are the wrapper keys the API has used around the event list.
var envelopeKeys = []string{"events", "data"}

// GetTodaysEvents returns today's events. An empty slice means the venue has
// nothing scheduled; any transport or decode problem is returned as an error.
func (c *Client) GetTodaysEvents(ctx context.Context) ([]model.Event, error) {
	if c.baseURL == "" {
		return nil, errors.New("api: base URL is not configured")
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.fetcher.Get(ctx, c.baseURL+TodayPath, header)
	if err != nil {
		return nil, fmt.Errorf("api: get today's events: %w", err)
	}

	events, err := decodeEvents(res.Body)
	if err != nil {
		return nil, fmt.Errorf("api: decode today's events: %w", err)
	}

	appLog.Debug("api today's events", "count", len(events), "from_cache", res.FromCache)
	return events, nil
}

func decodeEvents(body []byte) ([]model.Event, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	if body[0] == '[' {
		var events []model.Event
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, err
		}
		return nonNil(events), nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env == nil {
		return nil, errors.New("null body")
	}
	for _, key := range envelopeKeys {
		raw, ok := env[key]
		if !ok {
			continue
		}
		var events []model.Event
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return nonNil(events), nil
	}
	return nil, fmt.Errorf("unexpected response: no %q or %q list", envelopeKeys[0], envelopeKeys[1])
}

func nonNil(events []model.Event) []model.Event {
	if events == nil {
		return []model.Event{}
	}
	return events
}
