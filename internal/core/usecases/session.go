package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
)

// DefaultRefreshDistanceM is how far the user must move before a resolved
// location triggers a new discovery.
const DefaultRefreshDistanceM = 250.0

// SessionDeps are the collaborators a session owns or shares.
type SessionDeps struct {
	Locator   ports.Geolocator
	Source    ports.GeoSource
	Cache     ports.CacheService    // optional
	Surface   ports.RenderSurface
	Publisher ports.EventPublisher  // optional
}

// SessionOptions configures a session.
type SessionOptions struct {
	Discovery        DiscoveryOptions
	Tiers            map[domain.AccuracyTier]ports.PositionOptions
	Map              MapOptions
	RefreshDistanceM float64
}

// SessionSnapshot is a consistent read of a session's observable state.
type SessionSnapshot struct {
	ID             string                 `json:"id"`
	Location       domain.LocationState   `json:"location"`
	Notice         *domain.LocationNotice `json:"notice,omitempty"`
	Locating       bool                   `json:"locating"`
	Discovering    bool                   `json:"discovering"`
	DiscoveryError string                 `json:"discovery_error,omitempty"`
	Fallback       bool                   `json:"fallback"`
	Criteria       domain.FilterCriteria  `json:"criteria"`
	Total          int                    `json:"total"`
	Services       []domain.ServiceRecord `json:"services"`
	Map            domain.MapViewState    `json:"map"`
	Popups         []domain.Popup         `json:"popups"`
	Hotlines       []domain.Hotline       `json:"hotlines"`
}

// Session is one live map view. All state is owned by a single event loop
// goroutine; geolocation and discovery run as tasks that post their results
// back to the loop, so nothing here needs a lock.
type Session struct {
	id        string
	logger    *slog.Logger
	acquirer  *LocationAcquirer
	discovery *DiscoveryClient
	mapSync   *MapSynchronizer
	publisher ports.EventPublisher
	refreshM  float64

	// loop-owned
	result       domain.DiscoveryResult
	criteria     domain.FilterCriteria
	filtered     []domain.ServiceRecord
	discoveredAt *domain.GeoPoint
	discovering  bool
	fallback     bool
	discoveryErr error

	lastActive atomic.Int64
	cmds       chan func()
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	startOnce  sync.Once
}

// NewSession wires a session. Start launches its loop.
func NewSession(id string, deps SessionDeps, opts SessionOptions, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id)
	if opts.RefreshDistanceM <= 0 {
		opts.RefreshDistanceM = DefaultRefreshDistanceM
	}
	if opts.Map == (MapOptions{}) {
		opts.Map = DefaultMapOptions()
	}
	s := &Session{
		id:        id,
		logger:    logger,
		acquirer:  NewLocationAcquirer(deps.Locator, opts.Tiers, logger),
		discovery: NewDiscoveryClient(deps.Source, deps.Cache, opts.Discovery, logger),
		mapSync:   NewMapSynchronizer(deps.Surface, opts.Map, logger),
		publisher: deps.Publisher,
		refreshM:  opts.RefreshDistanceM,
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
	}
	s.mapSync.OnSelect(func(id string) {
		s.post(func() {
			if err := s.mapSync.Select(id); err != nil {
				s.logger.Warn("marker select failed", "id", id, "error", err)
			}
			s.publishView()
		})
	})
	s.touch()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// LastActive returns the time of the last command.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// Start launches the event loop, initializes the map and begins acquiring
// a location. The session lives until Close or until ctx is cancelled.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		go s.run()
		s.post(s.init)
	})
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return
		case fn := <-s.cmds:
			fn()
		}
	}
}

// post enqueues fn on the loop. It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	if s.ctx == nil {
		return false
	}
	select {
	case s.cmds <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (s *Session) call(ctx context.Context, fn func() error) error {
	s.touch()
	errc := make(chan error, 1)
	if !s.post(func() { errc <- fn() }) {
		return domain.ErrSessionClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) init() {
	if err := s.mapSync.Init(s.ctx, s.acquirer.State()); err != nil {
		s.logger.Error("rendering unavailable", "error", err)
	}
	at, ok, err := s.acquirer.Start()
	if err != nil {
		s.logger.Error("location start failed", "error", err)
		return
	}
	s.publishLocation()
	if ok {
		s.runAttempt(at)
	}
	s.publishView()
}

func (s *Session) runAttempt(at LocationAttempt) {
	go func() {
		out := s.acquirer.Acquire(s.ctx, at)
		s.post(func() { s.applyLocation(out) })
	}()
}

func (s *Session) applyLocation(out LocationOutcome) {
	next, hasNext, changed := s.acquirer.Apply(out)
	if hasNext {
		s.runAttempt(next)
	}
	if changed {
		s.locationChanged()
	}
}

func (s *Session) locationChanged() {
	st := s.acquirer.State()
	s.publishLocation()
	if !st.Resolved() {
		return
	}
	if err := s.mapSync.SyncLocation(st); err != nil {
		s.logger.Warn("sync user marker", "error", err)
	}
	if err := s.acquirer.EnsureWatch(s.ctx, s.deliverWatch); err != nil {
		s.logger.Warn("position watch unavailable", "error", err)
	}
	s.maybeDiscover(*st.Location)
	s.publishView()
}

// deliverWatch is invoked by the geolocator for every watched fix.
func (s *Session) deliverWatch(pos domain.Position) {
	s.post(func() {
		if s.acquirer.Update(pos) {
			s.locationChanged()
		}
	})
}

func (s *Session) maybeDiscover(center domain.GeoPoint) {
	if s.discoveredAt != nil && geospatial.DistanceKm(*s.discoveredAt, center)*1000 < s.refreshM {
		return
	}
	s.discoveredAt = &center
	s.discovering = true
	go func() {
		d, err := s.discovery.Discover(s.ctx, center)
		if errors.Is(err, domain.ErrSuperseded) {
			return
		}
		s.post(func() { s.applyDiscovery(d) })
	}()
}

func (s *Session) applyDiscovery(d Discovery) {
	if !s.discovery.Current(d.Seq) {
		s.logger.Debug("dropping stale discovery", "seq", d.Seq)
		return
	}
	s.discovering = false
	s.result = Rank(d.Records)
	s.fallback = d.Fallback
	s.discoveryErr = d.Err
	if d.Fallback {
		// retry on the next location update
		s.discoveredAt = nil
	}
	s.refreshView()
	s.publish(domain.EventDiscoveryApplied, map[string]any{
		"total":    len(s.result),
		"fallback": d.Fallback,
		"cached":   d.Cached,
	})
	s.publishView()
}

func (s *Session) refreshView() {
	s.filtered = ApplyFilter(s.result, s.criteria)
	if err := s.mapSync.SyncServices(s.filtered); err != nil {
		s.logger.Warn("sync service markers", "error", err)
	}
}

func (s *Session) teardown() {
	s.acquirer.Close()
	s.discovery.Cancel()
	if err := s.mapSync.Close(); err != nil {
		s.logger.Warn("destroy map", "error", err)
	}
	s.publish(domain.EventSessionClosed, nil)
}

func (s *Session) publish(typ string, payload any) {
	if s.publisher == nil {
		return
	}
	ev := &domain.SessionEvent{SessionID: s.id, Type: typ, Time: time.Now().UTC(), Payload: payload}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishSessionEvent(ctx, ev); err != nil {
		s.logger.Warn("publish session event", "type", typ, "error", err)
	}
}

func (s *Session) publishLocation() {
	s.publish(domain.EventLocationChanged, map[string]any{
		"location": s.acquirer.State(),
		"notice":   s.acquirer.Notice(),
	})
}

func (s *Session) publishView() {
	s.publish(domain.EventViewChanged, s.mapSync.View())
}

func (s *Session) snapshot() *SessionSnapshot {
	st := s.acquirer.State()
	snap := &SessionSnapshot{
		ID:          s.id,
		Location:    st,
		Notice:      s.acquirer.Notice(),
		Locating:    st.Status == domain.LocationResolving,
		Discovering: s.discovering,
		Fallback:    s.fallback,
		Criteria:    s.criteria,
		Total:       len(s.result),
		Services:    append([]domain.ServiceRecord(nil), s.filtered...),
		Map:         s.mapSync.View(),
		Popups:      s.mapSync.Popups(),
		Hotlines:    domain.DefaultHotlines,
	}
	if snap.Services == nil {
		snap.Services = []domain.ServiceRecord{}
	}
	if s.discoveryErr != nil {
		snap.DiscoveryError = s.discoveryErr.Error()
	}
	return snap
}

// Snapshot returns the session's current observable state.
func (s *Session) Snapshot(ctx context.Context) (*SessionSnapshot, error) {
	var snap *SessionSnapshot
	err := s.call(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// SetFilter replaces the filter criteria and returns the filtered sequence.
func (s *Session) SetFilter(ctx context.Context, criteria domain.FilterCriteria) ([]domain.ServiceRecord, error) {
	var out []domain.ServiceRecord
	err := s.call(ctx, func() error {
		s.criteria = criteria
		s.refreshView()
		s.publishView()
		out = append([]domain.ServiceRecord{}, s.filtered...)
		return nil
	})
	return out, err
}

// Select marks a displayed service as selected and centers on it.
func (s *Session) Select(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		if err := s.mapSync.Select(id); err != nil {
			return err
		}
		s.publishView()
		return nil
	})
}

// CenterOnUser recenters the map on the resolved location.
func (s *Session) CenterOnUser(ctx context.Context) error {
	return s.call(ctx, func() error {
		if !s.acquirer.State().Resolved() {
			return domain.ErrLocationUnavailable
		}
		if err := s.mapSync.CenterOnUser(); err != nil {
			return err
		}
		s.publishView()
		return nil
	})
}

// ToggleBaseLayer switches between the standard and satellite tiles.
func (s *Session) ToggleBaseLayer(ctx context.Context) (domain.BaseLayer, error) {
	var layer domain.BaseLayer
	err := s.call(ctx, func() error {
		var err error
		layer, err = s.mapSync.ToggleBaseLayer()
		if err != nil {
			return err
		}
		s.publishView()
		return nil
	})
	return layer, err
}

// Retry restarts location acquisition from a failed state.
func (s *Session) Retry(ctx context.Context) error {
	return s.call(ctx, func() error {
		at, ok, err := s.acquirer.Retry()
		if err != nil {
			return err
		}
		s.publishLocation()
		if ok {
			s.runAttempt(at)
		}
		return nil
	})
}

// DismissNotice hides the location failure banner.
func (s *Session) DismissNotice(ctx context.Context) error {
	return s.call(ctx, func() error {
		s.acquirer.DismissNotice()
		s.publishLocation()
		return nil
	})
}

// Close stops the loop and releases the watch, in-flight discovery and map.
func (s *Session) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed once the session has torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
