package alert

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meatandeat/shopguard/audit"
)

func TestMonitorFiresOncePerBurst(t *testing.T) {
	var mu sync.Mutex
	var spikes []Spike
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(func(_ context.Context, s Spike) {
		mu.Lock()
		spikes = append(spikes, s)
		mu.Unlock()
	}, WithMonitorClock(func() time.Time { return now }))
	ctx := context.Background()

	m.Record(ctx, "tab-1", audit.LoginFailed)
	m.Record(ctx, "tab-1", audit.LoginFailed)
	assert.Empty(t, spikes, "below threshold")

	m.Record(ctx, "tab-2", audit.LoginFailed)
	assert.Empty(t, spikes, "scopes are counted separately")

	m.Record(ctx, "tab-1", audit.LoginFailed)
	require.Len(t, spikes, 1)
	assert.Equal(t, "tab-1", spikes[0].Scope)
	assert.Equal(t, 3, spikes[0].Count)
	assert.Equal(t, Warning, spikes[0].Rule.Type)

	m.Record(ctx, "tab-1", audit.LoginFailed)
	assert.Len(t, spikes, 1, "count restarted after firing")

	m.Record(ctx, "tab-1", audit.LoginSuccess)
	assert.Len(t, spikes, 1, "unwatched event")

	m.Record(ctx, "tab-1", audit.LoginRateLimited)
	require.Len(t, spikes, 2)
	assert.Equal(t, Error, spikes[1].Rule.Type)
}

func TestMonitorWindowExpires(t *testing.T) {
	var fired int
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(func(context.Context, Spike) { fired++ },
		WithMonitorClock(func() time.Time { return now }),
		WithRules(Rule{Event: audit.LoginFailed, Window: time.Minute, Threshold: 2, Type: Warning}),
	)
	ctx := context.Background()

	m.Record(ctx, "s", audit.LoginFailed)
	now = now.Add(2 * time.Minute)
	m.Record(ctx, "s", audit.LoginFailed)
	assert.Zero(t, fired, "first event aged out")

	now = now.Add(10 * time.Second)
	m.Record(ctx, "s", audit.LoginFailed)
	assert.Equal(t, 1, fired)
}

func TestMonitorObserverAndNil(t *testing.T) {
	var scope string
	m := NewMonitor(func(_ context.Context, s Spike) { scope = s.Scope },
		WithRules(Rule{Event: audit.Logout, Window: time.Minute, Threshold: 1}))

	m.Observer("tab-9")(context.Background(), audit.Entry{Event: audit.Logout})
	assert.Equal(t, "tab-9", scope)

	var nilMonitor *Monitor
	assert.NotPanics(t, func() { nilMonitor.Record(context.Background(), "x", audit.Logout) })
	assert.NotPanics(t, func() { NewMonitor(nil).Record(context.Background(), "x", audit.LoginFailed) })
}

func TestMonitorPrunesIdleScopes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(func(context.Context, Spike) {},
		WithMonitorClock(func() time.Time { return now }),
		WithRules(Rule{Event: audit.LoginFailed, Window: time.Minute, Threshold: 5, Type: Warning}),
	)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		m.Record(ctx, fmt.Sprintf("client-%d", i), audit.LoginFailed)
	}
	assert.Equal(t, 1000, m.Tracked())

	now = now.Add(2 * time.Minute)
	m.Record(ctx, "client-new", audit.LoginFailed)
	assert.Equal(t, 1, m.Tracked())
}
