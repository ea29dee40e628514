// Package dns64 discovers the PLAT translation prefix by resolving an
// IPv4-only hostname through DNS64 (RFC 7050) and retrying with capped
// exponential backoff until a prefix is found.
package dns64

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	backoff "github.com/cenkalti/backoff/v4"
)

// NetIDUnset marks queries against the default network when no
// specific network identifier applies.
const NetIDUnset uint32 = 0

// Querier resolves the PLAT /96 prefix for an IPv4-only hostname.
// netID scopes the query to a specific network; NetIDUnset queries
// the default network.
type Querier interface {
	Query(ctx context.Context, hostname string, netID uint32) (netip.Addr, error)
}

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 120 * time.Second
)

// Stats is a point-in-time view of discovery progress.
type Stats struct {
	Attempts    uint64
	Failures    uint64
	LastBackoff time.Duration
	Discovered  bool
	Prefix      netip.Addr
}

// Detector runs the discovery loop: query the resolver, and on
// failure sleep with exponential backoff doubling from 1s to a 120s
// cap, retrying until a prefix is returned or the context is
// cancelled. There is no failure terminal state.
type Detector struct {
	querier Querier
	clk     clock.Clock
	timer   backoff.Timer // nil means a clk-backed timer

	mu    sync.Mutex
	stats Stats
}

// New creates a Detector. A nil clk uses the wall clock.
func New(querier Querier, clk clock.Clock) *Detector {
	if clk == nil {
		clk = clock.New()
	}
	return &Detector{querier: querier, clk: clk}
}

// Detect blocks until the PLAT prefix for hostname is discovered or
// ctx is cancelled. Failed attempts are logged at warning severity
// with the upcoming sleep; they never surface as errors.
func (d *Detector) Detect(ctx context.Context, hostname string, netID uint32) (netip.Addr, error) {
	op := func() (netip.Addr, error) {
		d.mu.Lock()
		d.stats.Attempts++
		d.mu.Unlock()

		prefix, err := d.querier.Query(ctx, hostname, netID)
		if err != nil {
			d.mu.Lock()
			d.stats.Failures++
			d.mu.Unlock()
			return netip.Addr{}, err
		}
		return prefix, nil
	}

	notify := func(err error, next time.Duration) {
		d.mu.Lock()
		d.stats.LastBackoff = next
		d.mu.Unlock()
		slog.Warn("dns64 detection error, sleeping", "seconds", int(next/time.Second), "err", err)
	}

	timer := d.timer
	if timer == nil {
		timer = &clockTimer{clk: d.clk}
	}

	prefix, err := backoff.RetryNotifyWithTimerAndData(
		op, backoff.WithContext(newBackOff(), ctx), notify, timer)
	if err != nil {
		return netip.Addr{}, err
	}

	d.mu.Lock()
	d.stats.Discovered = true
	d.stats.Prefix = prefix
	d.mu.Unlock()
	return prefix, nil
}

// Stats returns a copy of the detector's counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// newBackOff builds the discovery schedule: 1, 2, 4, 8, 16, 32, 64,
// 120, 120, ... seconds, unbounded in total duration.
func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// clockTimer adapts a clock.Clock timer to the retry driver, letting
// tests substitute a mock clock.
type clockTimer struct {
	clk   clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clk.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
