package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
)

// DefaultTiers returns the high and low accuracy tier options.
func DefaultTiers() map[domain.AccuracyTier]ports.PositionOptions {
	return map[domain.AccuracyTier]ports.PositionOptions{
		domain.TierHigh: {HighAccuracy: true, Timeout: 15 * time.Second, MaximumAge: 60 * time.Second},
		domain.TierLow:  {HighAccuracy: false, Timeout: 10 * time.Second, MaximumAge: 300 * time.Second},
	}
}

// LocationAttempt is one geolocation request for a tier.
type LocationAttempt struct {
	Seq     uint64
	Tier    domain.AccuracyTier
	Options ports.PositionOptions
}

// LocationOutcome is the result of running a LocationAttempt.
type LocationOutcome struct {
	Attempt  LocationAttempt
	Position domain.Position
	Err      error
}

// LocationAcquirer runs the tiered geolocation state machine:
//
//	Unresolved → Resolving(high) → Resolved
//	                 ↓ fail
//	           Resolving(low)  → Resolved
//	                 ↓ fail
//	               Failed ──retry──→ Resolving(high)
//
// All methods except Acquire must be called from the owning session's loop.
type LocationAcquirer struct {
	locator ports.Geolocator
	tiers   map[domain.AccuracyTier]ports.PositionOptions
	logger  *slog.Logger
	now     func() time.Time

	state  domain.LocationState
	notice *domain.LocationNotice
	seq    Sequence
	watch  ports.PositionWatch
}

// NewLocationAcquirer creates an acquirer in the Unresolved state. Missing
// tiers fall back to DefaultTiers.
func NewLocationAcquirer(locator ports.Geolocator, tiers map[domain.AccuracyTier]ports.PositionOptions, logger *slog.Logger) *LocationAcquirer {
	defaults := DefaultTiers()
	merged := make(map[domain.AccuracyTier]ports.PositionOptions, len(defaults))
	for tier, opts := range defaults {
		if o, ok := tiers[tier]; ok {
			opts = o
		}
		merged[tier] = opts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationAcquirer{
		locator: locator,
		tiers:   merged,
		logger:  logger,
		now:     time.Now,
		state:   domain.LocationState{Status: domain.LocationUnresolved},
	}
}

// State returns a copy of the current location state.
func (a *LocationAcquirer) State() domain.LocationState {
	st := a.state
	if st.Location != nil {
		loc := *st.Location
		st.Location = &loc
	}
	return st
}

// Notice returns the current failure notice, if any.
func (a *LocationAcquirer) Notice() *domain.LocationNotice {
	if a.notice == nil {
		return nil
	}
	n := *a.notice
	return &n
}

// DismissNotice hides the failure notice without changing state.
func (a *LocationAcquirer) DismissNotice() {
	a.notice = nil
}

// Start leaves Unresolved. It returns the high-accuracy attempt to run, or
// false when the device has no geolocation capability (state becomes
// Failed(Unsupported)).
func (a *LocationAcquirer) Start() (LocationAttempt, bool, error) {
	if a.state.Status != domain.LocationUnresolved {
		return LocationAttempt{}, false, fmt.Errorf("start from %s: %w", a.state.Status, domain.ErrInvalidTransition)
	}
	return a.begin()
}

// Retry restarts the tiered sequence from Failed. For Failed(Unsupported) it
// only re-checks capability and stays failed if there still is none.
func (a *LocationAcquirer) Retry() (LocationAttempt, bool, error) {
	if a.state.Status != domain.LocationFailed {
		return LocationAttempt{}, false, fmt.Errorf("retry from %s: %w", a.state.Status, domain.ErrInvalidTransition)
	}
	return a.begin()
}

func (a *LocationAcquirer) begin() (LocationAttempt, bool, error) {
	if !a.locator.Supported() {
		a.fail(domain.Unsupported)
		return LocationAttempt{}, false, nil
	}
	a.notice = nil
	return a.resolving(domain.TierHigh), true, nil
}

func (a *LocationAcquirer) resolving(tier domain.AccuracyTier) LocationAttempt {
	a.transition(domain.LocationState{Status: domain.LocationResolving, Tier: tier})
	return LocationAttempt{Seq: a.seq.Next(), Tier: tier, Options: a.tiers[tier]}
}

func (a *LocationAcquirer) fail(kind domain.GeolocationErrorKind) {
	a.transition(domain.LocationState{Status: domain.LocationFailed, Error: kind})
	a.notice = &domain.LocationNotice{Kind: kind, Message: kind.Message(), CanRetry: true}
}

func (a *LocationAcquirer) transition(st domain.LocationState) {
	a.state = st
	metrics.LocationTransitions.WithLabelValues(string(st.Status)).Inc()
}

// Acquire performs the attempt against the geolocator, bounded by the tier
// timeout. It does not touch acquirer state and may run off the loop.
func (a *LocationAcquirer) Acquire(ctx context.Context, at LocationAttempt) LocationOutcome {
	if at.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, at.Options.Timeout)
		defer cancel()
	}
	pos, err := a.locator.CurrentPosition(ctx, at.Options)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		var gerr *domain.GeolocationError
		if !errors.As(err, &gerr) {
			err = &domain.GeolocationError{Kind: domain.Timeout, Err: err}
		}
	}
	return LocationOutcome{Attempt: at, Position: pos, Err: err}
}

// Apply folds an attempt outcome into the state machine. It returns the next
// attempt to run (the automatic low-accuracy fallback) and whether the state
// changed. Outcomes of superseded attempts are ignored.
func (a *LocationAcquirer) Apply(out LocationOutcome) (next LocationAttempt, hasNext bool, changed bool) {
	if !a.seq.Current(out.Attempt.Seq) ||
		a.state.Status != domain.LocationResolving ||
		a.state.Tier != out.Attempt.Tier {
		a.logger.Debug("dropping stale location outcome", "seq", out.Attempt.Seq, "tier", out.Attempt.Tier)
		return LocationAttempt{}, false, false
	}

	if out.Err == nil {
		a.resolve(out.Position, out.Attempt.Tier)
		return LocationAttempt{}, false, true
	}

	kind := errorKind(out.Err)
	a.logger.Warn("location attempt failed", "tier", out.Attempt.Tier, "kind", kind, "error", out.Err)

	if out.Attempt.Tier == domain.TierHigh {
		a.notice = &domain.LocationNotice{Kind: kind, Message: kind.Message(), CanRetry: false}
		return a.resolving(domain.TierLow), true, true
	}
	a.fail(kind)
	return LocationAttempt{}, false, true
}

func (a *LocationAcquirer) resolve(pos domain.Position, tier domain.AccuracyTier) {
	loc := pos.Location
	ts := pos.Timestamp
	if ts.IsZero() {
		ts = a.now()
	}
	a.transition(domain.LocationState{
		Status:    domain.LocationResolved,
		Tier:      tier,
		Location:  &loc,
		Timestamp: ts,
	})
}

// Update applies a position from the watch. It only has effect once
// resolved and never re-enters Resolving.
func (a *LocationAcquirer) Update(pos domain.Position) bool {
	if a.state.Status != domain.LocationResolved {
		return false
	}
	if pos.Location.Validate() != nil {
		return false
	}
	if *a.state.Location == pos.Location && !pos.Timestamp.After(a.state.Timestamp) {
		return false
	}
	a.resolve(pos, a.state.Tier)
	return true
}

// EnsureWatch subscribes to further positions once resolved. deliver is
// invoked from the geolocator's goroutine.
func (a *LocationAcquirer) EnsureWatch(ctx context.Context, deliver func(domain.Position)) error {
	if a.watch != nil || a.state.Status != domain.LocationResolved {
		return nil
	}
	w, err := a.locator.Watch(ctx, a.tiers[a.state.Tier], deliver)
	if err != nil {
		return fmt.Errorf("watch position: %w", err)
	}
	a.watch = w
	return nil
}

// Close releases the position watch and invalidates in-flight attempts.
func (a *LocationAcquirer) Close() {
	a.seq.Next()
	if a.watch != nil {
		a.watch.Clear()
		a.watch = nil
	}
}

func errorKind(err error) domain.GeolocationErrorKind {
	var gerr *domain.GeolocationError
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Timeout
	}
	return domain.PositionUnavailable
}
