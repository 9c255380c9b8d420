// Package api talks to the two Cursor usage endpoints: the legacy summary
// endpoint that anchors the billing period, and the dashboard events
// endpoint that lists individual billable actions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"cursortop/internal/model"
)

const (
	defaultBaseURL = "https://cursor.com"

	// DashboardURL is the usage tab of the Cursor web dashboard.
	DashboardURL = "https://cursor.com/dashboard?tab=usage"

	sessionCookie = "WorkosCursorSessionToken"

	// The events endpoint rejects calls that do not look like they come
	// from the dashboard itself, hence the desktop browser user agent.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Only the first page is ever requested. Billing periods with more
	// than eventsPageSize events under-report; the upstream dashboard has
	// the same behavior.
	eventsPageSize = 1000

	defaultTimeout = 30 * time.Second
)

// HTTPError is a non-2xx response from the Cursor API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Client is an authenticated Cursor API client. It is built fresh each
// refresh cycle from a newly extracted credential.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	sessionToken string
	userID       string
}

// NewClient returns a client for the production Cursor API authenticating
// with the given session credential. A non-positive timeout falls back to
// 30s.
func NewClient(sessionToken, userID string, timeout time.Duration) *Client {
	return NewClientWithBaseURL("", sessionToken, userID, timeout)
}

// NewClientWithBaseURL targets an alternate API host; an empty baseURL means
// the production host. Tests point this at a local server.
func NewClientWithBaseURL(baseURL, sessionToken, userID string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		sessionToken: sessionToken,
		userID:       userID,
	}
}

// billingStartLayouts are tried in order against the startOfMonth field;
// the first layout that parses wins.
var billingStartLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z",
}

// FetchBillingPeriodStart reads the billing period anchor from the legacy
// usage endpoint. A missing or unparsable startOfMonth field falls back to
// midnight on the first of the current calendar month and never fails the
// fetch.
func (c *Client) FetchBillingPeriodStart(ctx context.Context) (time.Time, error) {
	url := fmt.Sprintf("%s/api/usage?user=%s", c.baseURL, c.userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Cookie", sessionCookie+"="+c.sessionToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch billing period: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return time.Time{}, fmt.Errorf("read usage response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return time.Time{}, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	// The legacy endpoint returns an open object full of per-model stats;
	// only startOfMonth matters, so everything else stays undecoded.
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return time.Time{}, fmt.Errorf("decode usage response: %w", err)
	}

	var start string
	if raw, ok := payload["startOfMonth"]; ok {
		_ = json.Unmarshal(raw, &start)
	}

	return parseBillingStart(start, time.Now()), nil
}

func parseBillingStart(s string, now time.Time) time.Time {
	if s != "" {
		for _, layout := range billingStartLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return currentMonthStart(now)
}

// currentMonthStart is midnight on the first of the current local calendar
// month, with the wall-clock numbers read as UTC.
func currentMonthStart(now time.Time) time.Time {
	local := now.Local()
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type eventsRequest struct {
	TeamID    int    `json:"teamId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
}

// FetchUsageEvents lists usage events between from and to (first page only,
// up to 1000 events). Time bounds travel as string-encoded millisecond
// epochs.
func (c *Client) FetchUsageEvents(ctx context.Context, from, to time.Time) ([]model.UsageEvent, error) {
	reqBody, err := json.Marshal(eventsRequest{
		TeamID:    0,
		StartDate: strconv.FormatInt(from.UnixMilli(), 10),
		EndDate:   strconv.FormatInt(to.UnixMilli(), 10),
		Page:      1,
		PageSize:  eventsPageSize,
	})
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/api/dashboard/get-filtered-usage-events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", sessionCookie+"="+c.sessionToken)
	req.Header.Set("Origin", "https://cursor.com")
	req.Header.Set("Referer", DashboardURL)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch usage events: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read events response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	var eventsResp model.UsageEventsResponse
	if err := json.Unmarshal(body, &eventsResp); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	return eventsResp.UsageEventsDisplay, nil
}
