// Package aggregator turns a batch of usage events into the display
// snapshot: billing-period totals with a per-model breakdown, plus three
// overlapping trailing windows (today, 7 days, 30 days).
package aggregator

import (
	"sort"
	"strconv"
	"time"

	"cursortop/internal/model"
)

// Aggregate buckets events into the billing period and the three trailing
// windows. The windows overlap; one event may count in all four. now is the
// capture instant, passed explicitly so callers control the clock.
//
// Aggregate is a pure function of its inputs and performs no I/O.
func Aggregate(billingStart time.Time, events []model.UsageEvent, now time.Time) model.UsageDisplayData {
	thirtyDaysAgo := now.AddDate(0, 0, -30)
	sevenDaysAgo := now.AddDate(0, 0, -7)

	// Local midnight as an absolute instant.
	local := now.Local()
	startOfToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	type modelTotals struct {
		requests int
		cents    float64
		tokens   int64
	}
	byModel := make(map[string]*modelTotals)
	// First-seen order of model names. Equal-cost line items keep this
	// order, so output is deterministic for identical input order.
	var modelOrder []string

	var totalCents float64
	var totalTokens int64

	var todayCents, week7Cents, days30Cents float64
	var todayReqs, week7Reqs, days30Reqs int
	var todayTokens, week7Tokens, days30Tokens int64

	for _, ev := range events {
		name := ev.Model
		if name == "" {
			name = "unknown"
		}
		cents := ev.CostCents()
		tokens := ev.TotalTokens()
		ts := eventTime(ev.Timestamp)

		if !ts.Before(billingStart) {
			totalCents += cents
			totalTokens += tokens

			mt, ok := byModel[name]
			if !ok {
				mt = &modelTotals{}
				byModel[name] = mt
				modelOrder = append(modelOrder, name)
			}
			mt.requests++
			mt.cents += cents
			mt.tokens += tokens
		}

		if !ts.Before(startOfToday) {
			todayCents += cents
			todayReqs++
			todayTokens += tokens
		}
		if !ts.Before(sevenDaysAgo) {
			week7Cents += cents
			week7Reqs++
			week7Tokens += tokens
		}
		if !ts.Before(thirtyDaysAgo) {
			days30Cents += cents
			days30Reqs++
			days30Tokens += tokens
		}
	}

	items := make([]model.LineItem, 0, len(modelOrder))
	for _, name := range modelOrder {
		mt := byModel[name]
		items = append(items, model.LineItem{
			ModelName:    name,
			RequestCount: mt.requests,
			CostDollars:  mt.cents / 100,
			TotalTokens:  mt.tokens,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CostDollars > items[j].CostDollars
	})

	// Equals the count of in-period events.
	totalRequests := 0
	for _, it := range items {
		totalRequests += it.RequestCount
	}

	return model.UsageDisplayData{
		TotalRequests:      totalRequests,
		TotalSpendDollars:  totalCents / 100,
		TotalTokens:        totalTokens,
		LineItems:          items,
		BillingPeriodStart: billingStart.Format(time.RFC3339),
		Today: model.PeriodSummary{
			Label:        "Today",
			Requests:     todayReqs,
			SpendDollars: todayCents / 100,
			Tokens:       todayTokens,
		},
		Last7Days: model.PeriodSummary{
			Label:        "Last 7 Days",
			Requests:     week7Reqs,
			SpendDollars: week7Cents / 100,
			Tokens:       week7Tokens,
		},
		Last30Days: model.PeriodSummary{
			Label:        "Last 30 Days",
			Requests:     days30Reqs,
			SpendDollars: days30Cents / 100,
			Tokens:       days30Tokens,
		},
	}
}

// eventTime parses the string-encoded millisecond timestamp of an event.
// A malformed value is attributed to the Unix epoch so a single bad event
// cannot abort the batch.
func eventTime(raw string) time.Time {
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.UnixMilli(0).UTC()
	}
	return time.UnixMilli(int64(ms)).UTC()
}
