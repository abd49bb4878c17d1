package mapprovider

import (
	"context"
	"errors"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrUnknownHandle = errors.New("unknown overlay handle")

type OverlayKind string

const (
	KindMarker    OverlayKind = "marker"
	KindPolyline  OverlayKind = "polyline"
	KindInfoPanel OverlayKind = "info_panel"
)

// Overlay is the wire form of one drawn element.
type Overlay struct {
	Handle      ports.OverlayHandle `json:"handle"`
	Kind        OverlayKind         `json:"kind"`
	Geometry    *geojson.Geometry   `json:"geometry,omitempty"`
	Icon        string              `json:"icon,omitempty"`
	Title       string              `json:"title,omitempty"`
	ZIndex      int                 `json:"z_index,omitempty"`
	StrokeColor string              `json:"stroke_color,omitempty"`
	StrokeWidth int                 `json:"stroke_width,omitempty"`
	Anchor      ports.OverlayHandle `json:"anchor,omitempty"`
	Lines       []string            `json:"lines,omitempty"`
	Open        bool                `json:"open,omitempty"`
}

const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
)

// Op is one scene change pushed to subscribers.
type Op struct {
	Type    string              `json:"op"`
	Handle  ports.OverlayHandle `json:"handle"`
	Overlay *Overlay            `json:"overlay,omitempty"`
}

type subscriber struct {
	ch chan Op
}

// Canvas implements Renderer by keeping the scene in memory and streaming
// every change to connected map clients. A client that falls behind is
// dropped and is expected to reconnect for a fresh scene.
type Canvas struct {
	mu     sync.Mutex
	scene  map[ports.OverlayHandle]*Overlay
	subs   map[*subscriber]struct{}
	buffer int
}

func NewCanvas() *Canvas {
	return &Canvas{
		scene:  make(map[ports.OverlayHandle]*Overlay),
		subs:   make(map[*subscriber]struct{}),
		buffer: 256,
	}
}

func (c *Canvas) RenderMarker(ctx context.Context, opts ports.MarkerOptions) (ports.OverlayHandle, error) {
	return c.add(ctx, markerOverlay(opts))
}

func (c *Canvas) RenderPolyline(ctx context.Context, opts ports.PolylineOptions) (ports.OverlayHandle, error) {
	return c.add(ctx, polylineOverlay(opts))
}

func (c *Canvas) RenderInfoPanel(ctx context.Context, opts ports.InfoPanelOptions) (ports.OverlayHandle, error) {
	if opts.Anchor != "" {
		c.mu.Lock()
		_, ok := c.scene[opts.Anchor]
		c.mu.Unlock()
		if !ok {
			return "", fmt.Errorf("render info panel: anchor %s: %w", opts.Anchor, ErrUnknownHandle)
		}
	}
	return c.add(ctx, panelOverlay(opts))
}

func (c *Canvas) SetMarker(ctx context.Context, h ports.OverlayHandle, opts ports.MarkerOptions) error {
	return c.update(ctx, h, KindMarker, markerOverlay(opts))
}

func (c *Canvas) SetPolyline(ctx context.Context, h ports.OverlayHandle, opts ports.PolylineOptions) error {
	return c.update(ctx, h, KindPolyline, polylineOverlay(opts))
}

func (c *Canvas) SetInfoPanel(ctx context.Context, h ports.OverlayHandle, opts ports.InfoPanelOptions) error {
	return c.update(ctx, h, KindInfoPanel, panelOverlay(opts))
}

func (c *Canvas) Remove(ctx context.Context, h ports.OverlayHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.scene[h]; !ok {
		return fmt.Errorf("remove overlay %s: %w", h, ErrUnknownHandle)
	}
	delete(c.scene, h)
	c.publish(Op{Type: OpRemove, Handle: h})
	return nil
}

// Overlays returns a copy of the current scene ordered by handle.
func (c *Canvas) Overlays() []Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sceneLocked()
}

// Subscribe registers a client. It returns the scene at subscription time and
// a channel of subsequent ops; cancel must be called when the client leaves.
func (c *Canvas) Subscribe() ([]Overlay, <-chan Op, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &subscriber{ch: make(chan Op, c.buffer)}
	c.subs[s] = struct{}{}

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[s]; ok {
			delete(c.subs, s)
			close(s.ch)
		}
	}

	return c.sceneLocked(), s.ch, cancel
}

func (c *Canvas) add(ctx context.Context, o *Overlay) (ports.OverlayHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o.Handle = ports.OverlayHandle(uuid.NewString())

	c.mu.Lock()
	defer c.mu.Unlock()

	c.scene[o.Handle] = o
	cp := *o
	c.publish(Op{Type: OpAdd, Handle: o.Handle, Overlay: &cp})
	return o.Handle, nil
}

func (c *Canvas) update(ctx context.Context, h ports.OverlayHandle, kind OverlayKind, o *Overlay) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.scene[h]
	if !ok {
		return fmt.Errorf("update overlay %s: %w", h, ErrUnknownHandle)
	}
	if cur.Kind != kind {
		return fmt.Errorf("update overlay %s: kind %s, got %s", h, cur.Kind, kind)
	}

	o.Handle = h
	c.scene[h] = o
	cp := *o
	c.publish(Op{Type: OpUpdate, Handle: h, Overlay: &cp})
	return nil
}

// publish must be called with c.mu held.
func (c *Canvas) publish(op Op) {
	for s := range c.subs {
		select {
		case s.ch <- op:
		default:
			log.Printf("canvas: subscriber too slow, dropping")
			delete(c.subs, s)
			close(s.ch)
		}
	}
}

func (c *Canvas) sceneLocked() []Overlay {
	out := make([]Overlay, 0, len(c.scene))
	for _, o := range c.scene {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func markerOverlay(opts ports.MarkerOptions) *Overlay {
	return &Overlay{
		Kind:     KindMarker,
		Geometry: geojson.NewGeometry(opts.Position.Point()),
		Icon:     opts.Icon,
		Title:    opts.Title,
		ZIndex:   opts.ZIndex,
	}
}

func polylineOverlay(opts ports.PolylineOptions) *Overlay {
	path := append(orb.LineString(nil), opts.Path...)
	return &Overlay{
		Kind:        KindPolyline,
		Geometry:    geojson.NewGeometry(path),
		StrokeColor: opts.StrokeColor,
		StrokeWidth: opts.StrokeWidth,
	}
}

func panelOverlay(opts ports.InfoPanelOptions) *Overlay {
	return &Overlay{
		Kind:   KindInfoPanel,
		Anchor: opts.Anchor,
		Title:  opts.Title,
		Lines:  append([]string(nil), opts.Lines...),
		Open:   opts.Open,
	}
}
