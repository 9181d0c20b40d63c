// Package geolocation adapts device-reported fixes to the core Geolocator
// port. Devices push fixes or failures over HTTP or NATS; sessions pull them
// with CurrentPosition or subscribe with Watch.
package geolocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
)

type result struct {
	pos domain.Position
	err error
}

// ReportedLocator implements ports.ReportedGeolocator.
//
// A denied permission stays in effect until the device reports a fix. Other
// failures go to the callers waiting at the time, or to the next caller when
// none is waiting.
type ReportedLocator struct {
	now func() time.Time

	mu        sync.Mutex
	supported bool
	last      *domain.Position
	denied    bool
	pending   domain.GeolocationErrorKind
	waiters   map[chan result]struct{}
	watchers  map[int]func(domain.Position)
	nextWatch int
}

var _ ports.ReportedGeolocator = (*ReportedLocator)(nil)

// NewReportedLocator creates a locator for a device with the given
// capability.
func NewReportedLocator(supported bool) *ReportedLocator {
	return &ReportedLocator{
		now:       time.Now,
		supported: supported,
		waiters:   make(map[chan result]struct{}),
		watchers:  make(map[int]func(domain.Position)),
	}
}

// Supported reports the device's geolocation capability.
func (l *ReportedLocator) Supported() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supported
}

// SetSupported updates the device capability.
func (l *ReportedLocator) SetSupported(supported bool) {
	l.mu.Lock()
	l.supported = supported
	l.mu.Unlock()
}

func geoErr(kind domain.GeolocationErrorKind, err error) error {
	return &domain.GeolocationError{Kind: kind, Err: err}
}

// CurrentPosition returns a fix no older than opts.MaximumAge, or waits for
// the device's next report until ctx is done.
func (l *ReportedLocator) CurrentPosition(ctx context.Context, opts ports.PositionOptions) (domain.Position, error) {
	l.mu.Lock()
	if !l.supported {
		l.mu.Unlock()
		return domain.Position{}, geoErr(domain.Unsupported, nil)
	}
	if l.last != nil && opts.MaximumAge > 0 && l.now().Sub(l.last.Timestamp) <= opts.MaximumAge {
		pos := *l.last
		l.mu.Unlock()
		return pos, nil
	}
	if l.denied {
		l.mu.Unlock()
		return domain.Position{}, geoErr(domain.PermissionDenied, nil)
	}
	if kind := l.pending; kind != "" {
		l.pending = ""
		l.mu.Unlock()
		return domain.Position{}, geoErr(kind, nil)
	}
	ch := make(chan result, 1)
	l.waiters[ch] = struct{}{}
	l.mu.Unlock()

	select {
	case r := <-ch:
		return r.pos, r.err
	case <-ctx.Done():
		l.mu.Lock()
		delete(l.waiters, ch)
		l.mu.Unlock()
		// A report may have raced the deadline.
		select {
		case r := <-ch:
			return r.pos, r.err
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Position{}, geoErr(domain.Timeout, ctx.Err())
		}
		return domain.Position{}, ctx.Err()
	}
}

type watch struct {
	once  sync.Once
	clear func()
}

func (w *watch) Clear() { w.once.Do(w.clear) }

// Watch delivers every subsequent fix to fn until the watch is cleared or
// ctx is done. fn runs on the reporting goroutine.
func (l *ReportedLocator) Watch(ctx context.Context, _ ports.PositionOptions, fn func(domain.Position)) (ports.PositionWatch, error) {
	l.mu.Lock()
	if !l.supported {
		l.mu.Unlock()
		return nil, geoErr(domain.Unsupported, nil)
	}
	id := l.nextWatch
	l.nextWatch++
	l.watchers[id] = fn
	l.mu.Unlock()

	w := &watch{}
	stop := context.AfterFunc(ctx, func() { w.Clear() })
	w.clear = func() {
		stop()
		l.mu.Lock()
		delete(l.watchers, id)
		l.mu.Unlock()
	}
	return w, nil
}

// Report applies a device report.
func (l *ReportedLocator) Report(report domain.PositionReport) {
	if report.Position != nil && report.Position.Location.Validate() == nil {
		l.reportFix(*report.Position)
		return
	}
	kind := report.Error
	if kind == "" {
		kind = domain.PositionUnavailable
	}
	l.reportError(kind)
}

func (l *ReportedLocator) reportFix(pos domain.Position) {
	l.mu.Lock()
	if pos.Timestamp.IsZero() {
		pos.Timestamp = l.now()
	}
	l.last = &pos
	l.denied = false
	l.pending = ""
	waiters := l.takeWaiters()
	watchers := make([]func(domain.Position), 0, len(l.watchers))
	for _, fn := range l.watchers {
		watchers = append(watchers, fn)
	}
	l.mu.Unlock()

	for _, ch := range waiters {
		ch <- result{pos: pos}
	}
	for _, fn := range watchers {
		fn(pos)
	}
}

func (l *ReportedLocator) reportError(kind domain.GeolocationErrorKind) {
	l.mu.Lock()
	switch kind {
	case domain.PermissionDenied:
		l.denied = true
	case domain.Unsupported:
		l.supported = false
	}
	waiters := l.takeWaiters()
	if len(waiters) == 0 && kind != domain.PermissionDenied {
		l.pending = kind
	}
	l.mu.Unlock()

	for _, ch := range waiters {
		ch <- result{err: geoErr(kind, nil)}
	}
}

// takeWaiters must be called with l.mu held.
func (l *ReportedLocator) takeWaiters() []chan result {
	out := make([]chan result, 0, len(l.waiters))
	for ch := range l.waiters {
		out = append(out, ch)
	}
	clear(l.waiters)
	return out
}
