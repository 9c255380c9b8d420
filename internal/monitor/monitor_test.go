package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"cursortop/internal/model"
	"cursortop/internal/token"
)

func newTestMonitor() *Monitor {
	m := New(Options{})
	// Tests trigger refreshes back to back; disable pacing.
	m.limiter = rate.NewLimiter(rate.Inf, 1)
	return m
}

func testSnapshot(spend float64) *model.UsageDisplayData {
	return &model.UsageDisplayData{
		TotalRequests:     1,
		TotalSpendDollars: spend,
		LineItems: []model.LineItem{
			{ModelName: "gpt", RequestCount: 1, CostDollars: spend},
		},
	}
}

func TestRefresh_PublishesSnapshot(t *testing.T) {
	m := newTestMonitor()
	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "u1%3A%3Ax.y.z", UserID: "u1"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		return testSnapshot(5), nil
	}

	m.Refresh(context.Background())

	data := m.UsageData()
	require.NotNil(t, data)
	assert.Equal(t, 5.0, data.TotalSpendDollars)
	assert.Empty(t, m.Err())
}

func TestRefresh_TokenErrorClearsData(t *testing.T) {
	m := newTestMonitor()
	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "s", UserID: "u"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		return testSnapshot(5), nil
	}
	m.Refresh(context.Background())
	require.NotNil(t, m.UsageData())

	m.extract = func(string) (*token.Info, error) {
		return nil, token.ErrTokenNotFound
	}
	m.Refresh(context.Background())

	assert.Nil(t, m.UsageData())
	assert.Contains(t, m.Err(), "Token error:")
	assert.Contains(t, m.Err(), token.ErrTokenNotFound.Error())
}

func TestRefresh_APIErrorKeepsStaleSnapshot(t *testing.T) {
	m := newTestMonitor()
	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "s", UserID: "u"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		return testSnapshot(5), nil
	}
	m.Refresh(context.Background())

	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		return nil, errors.New("HTTP 500: upstream broke")
	}
	m.Refresh(context.Background())

	data := m.UsageData()
	require.NotNil(t, data)
	assert.Equal(t, 5.0, data.TotalSpendDollars)
	assert.Contains(t, m.Err(), "API error:")
}

func TestRefresh_SuccessClearsError(t *testing.T) {
	m := newTestMonitor()
	m.extract = func(string) (*token.Info, error) {
		return nil, token.ErrDatabaseNotFound
	}
	m.Refresh(context.Background())
	require.NotEmpty(t, m.Err())

	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "s", UserID: "u"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		return testSnapshot(1), nil
	}
	m.Refresh(context.Background())

	assert.Empty(t, m.Err())
	require.NotNil(t, m.UsageData())
}

func TestUsageData_ReturnsIsolatedCopy(t *testing.T) {
	m := newTestMonitor()
	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "s", UserID: "u"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		return testSnapshot(5), nil
	}
	m.Refresh(context.Background())

	first := m.UsageData()
	require.NotNil(t, first)
	first.LineItems[0].ModelName = "mutated"
	first.TotalSpendDollars = 999

	second := m.UsageData()
	assert.Equal(t, "gpt", second.LineItems[0].ModelName)
	assert.Equal(t, 5.0, second.TotalSpendDollars)
}

func TestUsageData_NilBeforeFirstCycle(t *testing.T) {
	m := newTestMonitor()
	assert.Nil(t, m.UsageData())
	assert.Empty(t, m.Err())
}

func TestRefresh_ThrottledTriggerLeavesSnapshot(t *testing.T) {
	m := New(Options{})
	// One trigger per hour: the second call must be dropped.
	m.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	var calls atomic.Int32
	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "s", UserID: "u"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		calls.Add(1)
		return testSnapshot(5), nil
	}

	m.Refresh(context.Background())
	m.Refresh(context.Background())

	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, m.UsageData())
}

func TestRefresh_ConcurrentTriggersCoalesce(t *testing.T) {
	m := newTestMonitor()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "s", UserID: "u"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return testSnapshot(5), nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Refresh(context.Background())
	}()

	// Wait until the first cycle is mid-flight, then trigger a second
	// refresh that must join it instead of starting another.
	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Refresh(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, m.UsageData())
	assert.Empty(t, m.Err())
}

func TestRefresh_ConcurrentSafety(t *testing.T) {
	m := newTestMonitor()
	m.extract = func(string) (*token.Info, error) {
		return &token.Info{SessionToken: "s", UserID: "u"}, nil
	}
	m.fetch = func(context.Context, *token.Info) (*model.UsageDisplayData, error) {
		return testSnapshot(5), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = m.UsageData()
			_ = m.Err()
		}()
	}
	wg.Wait()

	data := m.UsageData()
	require.NotNil(t, data)
	assert.Equal(t, 5.0, data.TotalSpendDollars)
}
