package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cursortop/internal/token"
)

// usageAPIServer serves both Cursor endpoints: the billing anchor with the
// given start, and an empty event list while recording the requested start
// bound.
func usageAPIServer(t *testing.T, billingStart time.Time, gotStartDate *string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/usage", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"startOfMonth": %q}`, billingStart.Format(time.RFC3339))
	})
	mux.HandleFunc("/api/dashboard/get-filtered-usage-events", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			StartDate string `json:"startDate"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*gotStartDate = body.StartDate
		w.Write([]byte(`{"usageEventsDisplay": []}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchUsage_RequestsFromBillingStartWhenOlderThan30Days(t *testing.T) {
	billingStart := time.Now().UTC().AddDate(0, 0, -90).Truncate(time.Second)

	var gotStartDate string
	srv := usageAPIServer(t, billingStart, &gotStartDate)

	m := New(Options{BaseURL: srv.URL})
	data, err := m.fetchUsage(context.Background(), &token.Info{SessionToken: "s", UserID: "u"})

	require.NoError(t, err)
	require.NotNil(t, data)
	// The billing start predates the 30-day window, so the events fetch
	// must reach all the way back to it.
	assert.Equal(t, strconv.FormatInt(billingStart.UnixMilli(), 10), gotStartDate)
	assert.Equal(t, billingStart.Format(time.RFC3339), data.BillingPeriodStart)
}

func TestFetchUsage_RequestsFrom30DaysWhenBillingStartIsNewer(t *testing.T) {
	billingStart := time.Now().UTC().AddDate(0, 0, -5).Truncate(time.Second)

	var gotStartDate string
	srv := usageAPIServer(t, billingStart, &gotStartDate)

	m := New(Options{BaseURL: srv.URL})
	_, err := m.fetchUsage(context.Background(), &token.Info{SessionToken: "s", UserID: "u"})
	require.NoError(t, err)

	ms, err := strconv.ParseInt(gotStartDate, 10, 64)
	require.NoError(t, err)
	requested := time.UnixMilli(ms).UTC()

	// A young billing period must not shrink the window: the fetch still
	// covers the trailing 30 days.
	assert.True(t, requested.Before(billingStart),
		"requested start %s should be before billing start %s", requested, billingStart)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), requested, time.Minute)
}
