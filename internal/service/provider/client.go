package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"MatchPulse/internal/domain/models"
	xhttp "MatchPulse/pkg/http"
)

// Client is the upstream provider adapter. Each category fetch carries its
// own timeout so a slow odds endpoint cannot stall events or stats.
type Client struct {
	baseURL      string
	apiKey       string
	fetchTimeout time.Duration
	httpClient   *xhttp.Client
}

// New creates a provider client.
func New(baseURL, apiKey string, fetchTimeout time.Duration) *Client {
	if fetchTimeout <= 0 {
		fetchTimeout = 8 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		fetchTimeout: fetchTimeout,
		httpClient:   xhttp.NewClient(),
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	var env envelope
	err := c.httpClient.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      http.MethodGet,
		URL:         c.baseURL + endpoint,
		Headers:     map[string]string{"Authorization": "Bearer " + c.apiKey},
		QueryParams: params,
	}, &env)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}

	if env.Code != 0 {
		return fmt.Errorf("provider error %d: %s", env.Code, env.Msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

func matchParams(matchID int64) url.Values {
	params := url.Values{}
	params.Set("match_id", strconv.FormatInt(matchID, 10))
	return params
}

// FetchOdds returns the current odds observations for a match.
func (c *Client) FetchOdds(ctx context.Context, matchID int64) Result[models.OddsTick] {
	var ticks []models.OddsTick
	if err := c.get(ctx, "/v1/matches/odds", matchParams(matchID), &ticks); err != nil {
		return Failed[models.OddsTick](err)
	}
	return OK(ticks)
}

// FetchEvents returns the in-play events for a match.
func (c *Client) FetchEvents(ctx context.Context, matchID int64) Result[models.MatchEvent] {
	var events []models.MatchEvent
	if err := c.get(ctx, "/v1/matches/events", matchParams(matchID), &events); err != nil {
		return Failed[models.MatchEvent](err)
	}
	return OK(events)
}

// FetchStats returns the team statistic lines for a match.
func (c *Client) FetchStats(ctx context.Context, matchID int64) Result[models.TeamStatLine] {
	var stats []models.TeamStatLine
	if err := c.get(ctx, "/v1/matches/stats", matchParams(matchID), &stats); err != nil {
		return Failed[models.TeamStatLine](err)
	}
	return OK(stats)
}

// ActiveMatches lists live fixtures in the collection window, ordered by
// kickoff time.
func (c *Client) ActiveMatches(ctx context.Context) ([]models.Match, error) {
	params := url.Values{}
	params.Set("status", "live")
	var matches []models.Match
	if err := c.get(ctx, "/v1/matches", params, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// Match fetches a single fixture.
func (c *Client) Match(ctx context.Context, id int64) (*models.Match, error) {
	var m models.Match
	if err := c.get(ctx, "/v1/matches/"+strconv.FormatInt(id, 10), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
