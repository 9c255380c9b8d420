package model

// TokenUsage contains per-event token counts and cost as reported by the
// Cursor dashboard API. Fields the API omits decode to zero.
type TokenUsage struct {
	InputTokens      int64   `json:"inputTokens"`
	OutputTokens     int64   `json:"outputTokens"`
	CacheWriteTokens int64   `json:"cacheWriteTokens"`
	CacheReadTokens  int64   `json:"cacheReadTokens"`
	TotalCents       float64 `json:"totalCents"`
}

// TotalTokens sums all four token counters.
func (t TokenUsage) TotalTokens() int64 {
	return t.InputTokens + t.OutputTokens + t.CacheWriteTokens + t.CacheReadTokens
}

// UsageEvent is a single billable action from the dashboard events endpoint.
// The timestamp is a string-encoded count of milliseconds since the epoch.
type UsageEvent struct {
	Timestamp        string      `json:"timestamp"`
	Model            string      `json:"model,omitempty"`
	Kind             string      `json:"kind,omitempty"`
	UsageBasedCosts  string      `json:"usageBasedCosts,omitempty"`
	IsTokenBasedCall bool        `json:"isTokenBasedCall,omitempty"`
	IsChargeable     bool        `json:"isChargeable,omitempty"`
	TokenUsage       *TokenUsage `json:"tokenUsage,omitempty"`
}

// CostCents returns the event cost in cents, zero when no token usage was
// reported.
func (e UsageEvent) CostCents() float64 {
	if e.TokenUsage == nil {
		return 0
	}
	return e.TokenUsage.TotalCents
}

// TotalTokens returns the event token count, zero when no token usage was
// reported.
func (e UsageEvent) TotalTokens() int64 {
	if e.TokenUsage == nil {
		return 0
	}
	return e.TokenUsage.TotalTokens()
}

// UsageEventsResponse is the envelope returned by the events endpoint.
type UsageEventsResponse struct {
	UsageEventsDisplay []UsageEvent `json:"usageEventsDisplay"`
}

// LineItem is the aggregated usage of one model within the billing period.
type LineItem struct {
	ModelName    string  `json:"modelName"`
	RequestCount int     `json:"requestCount"`
	CostDollars  float64 `json:"costDollars"`
	TotalTokens  int64   `json:"totalTokens"`
}

// PeriodSummary aggregates requests, spend and tokens over one reporting
// window.
type PeriodSummary struct {
	Label        string  `json:"label"`
	Requests     int     `json:"requests"`
	SpendDollars float64 `json:"spendDollars"`
	Tokens       int64   `json:"tokens"`
}

// UsageDisplayData is the complete usage snapshot produced by one refresh
// cycle. Line items are sorted by cost, highest first.
type UsageDisplayData struct {
	TotalRequests      int           `json:"totalRequests"`
	TotalSpendDollars  float64       `json:"totalSpendDollars"`
	TotalTokens        int64         `json:"totalTokens"`
	LineItems          []LineItem    `json:"lineItems"`
	BillingPeriodStart string        `json:"billingPeriodStart"`
	Today              PeriodSummary `json:"today"`
	Last7Days          PeriodSummary `json:"last7Days"`
	Last30Days         PeriodSummary `json:"last30Days"`
}
