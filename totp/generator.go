package totp

import (
	"fmt"
	"time"
)

// Generator binds a period, a verification window and a clock.
type Generator struct {
	period time.Duration
	window int
	now    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithPeriod sets the time step. It panics on periods under one second.
func WithPeriod(d time.Duration) Option {
	if d < time.Second {
		panic(fmt.Sprintf("totp: invalid period %s", d))
	}
	return func(g *Generator) { g.period = d }
}

// WithWindow sets how many steps either side of now Verify accepts.
func WithWindow(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("totp: invalid window %d", n))
	}
	return func(g *Generator) { g.window = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{period: DefaultPeriod, window: DefaultWindow, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Code returns the current code for secret.
func (g *Generator) Code(secret string) (string, error) {
	return CodeAt(secret, g.now(), g.period)
}

// Verify checks code against the current time step and its neighbours.
func (g *Generator) Verify(secret, code string) bool {
	return VerifyAt(secret, code, g.now(), g.period, g.window)
}
