package alert

import (
	"context"
	"sync"
	"time"

	"github.com/meatandeat/shopguard/audit"
)

// Rule raises a spike when Threshold matching events occur within Window in
// one scope.
type Rule struct {
	Event     audit.Event
	Window    time.Duration
	Threshold int
	Type      Type
	Message   string
}

// DefaultRules watch for repeated login failures and rate-limit lockouts.
var DefaultRules = []Rule{
	{
		Event:     audit.LoginFailed,
		Window:    15 * time.Minute,
		Threshold: 3,
		Type:      Warning,
		Message:   "Multiple failed login attempts detected on this device",
	},
	{
		Event:     audit.LoginRateLimited,
		Window:    15 * time.Minute,
		Threshold: 1,
		Type:      Error,
		Message:   "Login temporarily blocked after too many attempts",
	},
}

// Spike describes a rule that crossed its threshold.
type Spike struct {
	Rule      Rule
	Scope     string
	Count     int
	Timestamp time.Time
}

// SpikeFunc is called once per spike, outside the monitor's lock.
type SpikeFunc func(ctx context.Context, s Spike)

// Monitor counts events per rule and scope over sliding windows.
type Monitor struct {
	mu     sync.Mutex
	rules  []Rule
	seen   map[monitorKey][]time.Time
	now    func() time.Time
	onFire SpikeFunc
}

type monitorKey struct {
	rule  int
	scope string
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithRules replaces DefaultRules.
func WithRules(rules ...Rule) MonitorOption {
	return func(m *Monitor) {
		m.rules = append([]Rule(nil), rules...)
	}
}

// WithMonitorClock replaces time.Now.
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMonitor returns a Monitor calling onFire for every spike.
func NewMonitor(onFire SpikeFunc, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		rules:  DefaultRules,
		seen:   make(map[monitorKey][]time.Time),
		now:    time.Now,
		onFire: onFire,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record counts event against scope and fires any rule it completes. The
// count for a fired rule restarts so one burst raises one spike.
func (m *Monitor) Record(ctx context.Context, scope string, event audit.Event) {
	if m == nil || m.onFire == nil {
		return
	}

	var fired []Spike
	m.mu.Lock()
	now := m.now()
	for i, r := range m.rules {
		if r.Event != event {
			continue
		}
		k := monitorKey{rule: i, scope: scope}
		times := trimWindow(append(m.seen[k], now), now, r.Window)
		if len(times) >= r.Threshold {
			fired = append(fired, Spike{Rule: r, Scope: scope, Count: len(times), Timestamp: now})
			times = nil
		}
		if len(times) == 0 {
			delete(m.seen, k)
		} else {
			m.seen[k] = times
		}
	}
	m.prune(now)
	m.mu.Unlock()

	for _, s := range fired {
		m.onFire(ctx, s)
	}
}

// prune drops scopes whose events have all left their rule's window.
func (m *Monitor) prune(now time.Time) {
	for k, times := range m.seen {
		times = trimWindow(times, now, m.rules[k.rule].Window)
		if len(times) == 0 {
			delete(m.seen, k)
		} else {
			m.seen[k] = times
		}
	}
}

// Tracked reports how many rule and scope pairs hold events.
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Observer adapts the monitor to audit.WithObserver for one scope.
func (m *Monitor) Observer(scope string) audit.Observer {
	return func(ctx context.Context, e audit.Entry) {
		m.Record(ctx, scope, e.Event)
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
