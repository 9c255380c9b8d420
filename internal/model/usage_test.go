package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_TotalTokens(t *testing.T) {
	// Absent fields decode to zero, so the zero value sums to zero.
	assert.Zero(t, TokenUsage{}.TotalTokens())

	usage := TokenUsage{
		InputTokens:      1,
		OutputTokens:     2,
		CacheWriteTokens: 3,
		CacheReadTokens:  4,
	}
	assert.Equal(t, int64(10), usage.TotalTokens())
}

func TestUsageEvent_NilTokenUsage(t *testing.T) {
	ev := UsageEvent{Timestamp: "1714608000000", Model: "gpt"}

	assert.Zero(t, ev.CostCents())
	assert.Zero(t, ev.TotalTokens())
}
