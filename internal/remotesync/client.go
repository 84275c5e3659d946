// Package remotesync records fired reminders with the remote reminder log.
package remotesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"forkcast/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// ErrDropped is returned when a request exceeds the rate budget.
var ErrDropped = errors.New("remote sync: rate budget exceeded")

// Options configures the client.
type Options struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
}

// MealReminderRequest is the body of a reminder-log entry.
type MealReminderRequest struct {
	MealType string `json:"meal_type"`
	MealTime string `json:"meal_time"`
}

// Client posts reminder-log entries. Failures are logged and counted, never retried.
type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter

	metrics *metrics.Metrics
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewClient constructs a client. RatePerMinute <= 0 disables throttling.
func NewClient(opts Options, m *metrics.Metrics, logger *zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RatePerMinute)/60.0), opts.RatePerMinute)
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Client{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		metrics:    m,
		logger:     logger.With().Str("component", "remotesync").Logger(),
	}
}

// CreateMealReminder posts one entry and waits for the response.
func (c *Client) CreateMealReminder(ctx context.Context, mealType, mealTime string) error {
	data, err := json.Marshal(MealReminderRequest{MealType: mealType, MealTime: mealTime})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

// Submit sends the entry in the background with its own timeout and returns
// immediately. It returns ErrDropped when the rate budget is exhausted.
func (c *Client) Submit(mealType, mealTime string) error {
	if !c.limiter.Allow() {
		c.metrics.IncSync("dropped")
		c.logger.Warn().Str("meal_type", mealType).Msg("reminder sync dropped: rate budget exceeded")
		return ErrDropped
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if err := c.CreateMealReminder(ctx, mealType, mealTime); err != nil {
			c.metrics.IncSync("error")
			c.logger.Warn().Err(err).Str("meal_type", mealType).Msg("could not record reminder remotely")
			return
		}
		c.metrics.IncSync("ok")
		c.logger.Debug().Str("meal_type", mealType).Str("meal_time", mealTime).Msg("reminder recorded remotely")
	}()
	return nil
}

// Wait blocks until all in-flight submissions have finished.
func (c *Client) Wait() {
	c.wg.Wait()
}
