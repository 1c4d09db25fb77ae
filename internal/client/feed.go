package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrMalformedFeed is returned when a feed responds with a document that cannot be used
var ErrMalformedFeed = errors.New("malformed feed response")

// Client reads the public league schedule and play-by-play feeds
type Client struct {
	scheduleURL   string
	playByPlayURL string // contains a single %s for the game id
	httpClient    *http.Client
	rateLimiter   chan struct{} // Concurrency semaphore
	maxRetries    int
	retryDelay    time.Duration
}

// Options configures a feed client
type Options struct {
	ScheduleURL    string
	PlayByPlayURL  string
	Timeout        time.Duration
	MaxConcurrency int
	MaxRetries     int
	RetryDelay     time.Duration
}

// NewClient creates a new feed client
func NewClient(opts Options) *Client {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 10
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	rateLimiter := make(chan struct{}, opts.MaxConcurrency)
	for i := 0; i < opts.MaxConcurrency; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		scheduleURL:   opts.ScheduleURL,
		playByPlayURL: opts.PlayByPlayURL,
		rateLimiter:   rateLimiter,
		maxRetries:    opts.MaxRetries,
		retryDelay:    opts.RetryDelay,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// retryableError marks a failure worth another attempt
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// get performs a GET request with retry logic and rate limiting
func (c *Client) get(ctx context.Context, endpoint, url string) ([]byte, error) {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter: 1s, 2s, 4s (+0-250ms)
			backoff := c.retryDelay*time.Duration(1<<uint(attempt-1)) +
				time.Duration(rand.Intn(250))*time.Millisecond
			log.Info().
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying feed request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.do(ctx, url, attempt)
		if err == nil {
			metrics.RecordAPICall(endpoint, "success", time.Since(start).Seconds())
			return body, nil
		}

		lastErr = err
		var re *retryableError
		if !errors.As(err, &re) || ctx.Err() != nil {
			break
		}
	}

	metrics.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
	return nil, lastErr
}

// do performs a single attempt while holding a semaphore slot
func (c *Client) do(ctx context.Context, url string, attempt int) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.rateLimiter:
	}
	defer func() { c.rateLimiter <- struct{}{} }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://www.nba.com/")
	req.Header.Set("User-Agent", "WedgieTracker-Ingestion/1.0")

	log.Debug().
		Str("url", url).
		Int("attempt", attempt+1).
		Msg("Making feed request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{fmt.Errorf("feed request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{fmt.Errorf("failed to read response body: %w", err)}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().
			Str("url", url).
			Int("size", len(body)).
			Msg("Feed request successful")
		return body, nil

	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		log.Warn().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Msg("Received retryable feed status")
		return nil, &retryableError{fmt.Errorf("feed returned retryable status %d", resp.StatusCode)}

	default:
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
}

// FetchSchedule fetches the full league schedule
func (c *Client) FetchSchedule(ctx context.Context) (*models.ScheduleResponse, error) {
	body, err := c.get(ctx, "schedule", c.scheduleURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}

	var schedule models.ScheduleResponse
	if err := json.Unmarshal(body, &schedule); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal schedule: %v", ErrMalformedFeed, err)
	}
	if schedule.LeagueSchedule.GameDates == nil {
		return nil, fmt.Errorf("%w: schedule has no gameDates", ErrMalformedFeed)
	}

	return &schedule, nil
}

// FetchPlayByPlay fetches the action log of a single game
func (c *Client) FetchPlayByPlay(ctx context.Context, gameID string) (*models.PlayByPlayResponse, error) {
	url := strings.Replace(c.playByPlayURL, "%s", gameID, 1)
	body, err := c.get(ctx, "playbyplay", url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch play-by-play for game %s: %w", gameID, err)
	}

	var pbp models.PlayByPlayResponse
	if err := json.Unmarshal(body, &pbp); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal play-by-play for game %s: %v", ErrMalformedFeed, gameID, err)
	}

	return &pbp, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "...(" + strconv.Itoa(len(body)) + " bytes)"
}
