// Package render implements the render surface as a stream of drawing
// operations for a remote map client.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
)

var (
	ErrNotCreated   = errors.New("render: map not created")
	ErrDestroyed    = errors.New("render: map destroyed")
	ErrUnknownLayer = errors.New("render: unknown layer")
)

// Sink receives operations in emission order.
type Sink func(op domain.RenderOp)

type layer struct {
	add   domain.RenderOp
	popup string
}

// CommandSurface implements ports.InteractiveSurface. Every call is recorded
// as a domain.RenderOp and forwarded to the sink under the surface lock, so
// the sink sees operations in Seq order.
type CommandSurface struct {
	sink Sink

	mu        sync.Mutex
	seq       uint64
	next      int
	created   bool
	destroyed bool
	center    domain.GeoPoint
	zoom      int
	layers    map[ports.LayerHandle]*layer
	order     []ports.LayerHandle
	clicks    map[ports.LayerHandle]func()
}

var (
	_ ports.InteractiveSurface = (*CommandSurface)(nil)
	_ ports.IconUpdater        = (*CommandSurface)(nil)
)

// NewCommandSurface creates a surface that forwards to sink. A nil sink only
// records state for Replay.
func NewCommandSurface(sink Sink) *CommandSurface {
	return &CommandSurface{
		sink:   sink,
		layers: make(map[ports.LayerHandle]*layer),
		clicks: make(map[ports.LayerHandle]func()),
	}
}

// emit must be called with s.mu held.
func (s *CommandSurface) emit(op domain.RenderOp) domain.RenderOp {
	s.seq++
	op.Seq = s.seq
	if s.sink != nil {
		s.sink(op)
	}
	return op
}

// usable must be called with s.mu held.
func (s *CommandSurface) usable() error {
	if s.destroyed {
		return ErrDestroyed
	}
	if !s.created {
		return ErrNotCreated
	}
	return nil
}

func (s *CommandSurface) CreateMap(ctx context.Context, center domain.GeoPoint, zoom int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := center.Validate(); err != nil {
		return fmt.Errorf("render: create map: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	if s.created {
		return errors.New("render: map already created")
	}
	s.created = true
	s.center, s.zoom = center, zoom
	s.emit(domain.RenderOp{Op: domain.OpCreateMap, Center: &center, Zoom: zoom})
	return nil
}

// addLayer must be called with s.mu held.
func (s *CommandSurface) addLayer(prefix string, op domain.RenderOp) ports.LayerHandle {
	s.next++
	h := ports.LayerHandle(fmt.Sprintf("%s-%d", prefix, s.next))
	op.Handle = string(h)
	s.layers[h] = &layer{add: s.emit(op)}
	s.order = append(s.order, h)
	return h
}

func (s *CommandSurface) AddTileLayer(src domain.TileSource) (ports.LayerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return "", err
	}
	return s.addLayer("tile", domain.RenderOp{Op: domain.OpAddTileLayer, Tile: &src}), nil
}

func (s *CommandSurface) AddMarker(at domain.GeoPoint, icon domain.MarkerIcon) (ports.LayerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return "", err
	}
	return s.addLayer("marker", domain.RenderOp{Op: domain.OpAddMarker, Center: &at, Icon: &icon}), nil
}

func (s *CommandSurface) RemoveLayer(h ports.LayerHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if _, ok := s.layers[h]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, h)
	}
	delete(s.layers, h)
	delete(s.clicks, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.emit(domain.RenderOp{Op: domain.OpRemoveLayer, Handle: string(h)})
	return nil
}

func (s *CommandSurface) SetView(center domain.GeoPoint, zoom int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	s.center, s.zoom = center, zoom
	s.emit(domain.RenderOp{Op: domain.OpSetView, Center: &center, Zoom: zoom})
	return nil
}

func (s *CommandSurface) BindPopup(h ports.LayerHandle, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	l, ok := s.layers[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, h)
	}
	l.popup = html
	s.emit(domain.RenderOp{Op: domain.OpBindPopup, Handle: string(h), HTML: html})
	return nil
}

// SetIcon restyles a marker in place. Replay carries the new icon.
func (s *CommandSurface) SetIcon(h ports.LayerHandle, icon domain.MarkerIcon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	l, ok := s.layers[h]
	if !ok || l.add.Op != domain.OpAddMarker {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, h)
	}
	l.add.Icon = &icon
	s.emit(domain.RenderOp{Op: domain.OpSetIcon, Handle: string(h), Icon: &icon})
	return nil
}

func (s *CommandSurface) OnMarkerClick(h ports.LayerHandle, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if _, ok := s.layers[h]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, h)
	}
	s.clicks[h] = fn
	return nil
}

// Destroy releases every layer. Later calls other than Destroy fail.
func (s *CommandSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	clear(s.layers)
	clear(s.clicks)
	s.order = nil
	s.emit(domain.RenderOp{Op: domain.OpDestroy})
	return nil
}

// Click runs the handler bound to h. It reports false when h has none.
func (s *CommandSurface) Click(h ports.LayerHandle) bool {
	s.mu.Lock()
	fn, ok := s.clicks[h]
	s.mu.Unlock()
	if !ok || fn == nil {
		return false
	}
	fn()
	return true
}

// Replay returns the operations that rebuild the current map from scratch.
// Every replayed op carries the latest Seq so clients can drop live ops they
// have already applied.
func (s *CommandSurface) Replay() []domain.RenderOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created || s.destroyed {
		return nil
	}
	center := s.center
	ops := []domain.RenderOp{{Seq: s.seq, Op: domain.OpCreateMap, Center: &center, Zoom: s.zoom}}
	for _, h := range s.order {
		l := s.layers[h]
		add := l.add
		add.Seq = s.seq
		ops = append(ops, add)
		if l.popup != "" {
			ops = append(ops, domain.RenderOp{Seq: s.seq, Op: domain.OpBindPopup, Handle: string(h), HTML: l.popup})
		}
	}
	return ops
}

// PublisherSink forwards every op as a render session event.
func PublisherSink(pub ports.EventPublisher, sessionID string, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return func(op domain.RenderOp) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ev := &domain.SessionEvent{SessionID: sessionID, Type: domain.EventRender, Time: time.Now(), Payload: op}
		if err := pub.PublishSessionEvent(ctx, ev); err != nil {
			logger.Warn("publish render op failed", "session", sessionID, "op", op.Op, "error", err)
		}
	}
}
