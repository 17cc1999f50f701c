// Package preview keeps a rendered PDF proof in step with the latest saved
// form data. Refreshes triggered while a render is running are folded into
// one follow-up render.
package preview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/clock"
	"github.com/goliatone/go-formwizard/pkg/debounce"
	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/status"
)

// Defaults for the zoom controls and refresh debounce.
const (
	DefaultDelay    = 500 * time.Millisecond
	DefaultScale    = 1.0
	DefaultMinScale = 0.5
	DefaultMaxScale = 3.0
	ZoomStep        = 0.25
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("preview: closed")

// Document is a loaded PDF.
type Document interface {
	NumPages() int
	// PageSize reports the page dimensions in points.
	PageSize(page int) (width, height float64)
	RenderPage(ctx context.Context, page int, scale float64) error
}

// Engine loads PDF bytes. Parsing and rasterising live behind it.
type Engine interface {
	Load(ctx context.Context, data []byte) (Document, error)
}

// View displays the preview.
type View interface {
	ShowLoading()
	ShowError(message string)
	ShowPage(page, pages int, scale float64)
	// DrawOverlays replaces the highlight boxes, in canvas pixels.
	DrawOverlays(boxes []Rect)
}

// State of the preview.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Controller renders the preview for one page.
type Controller struct {
	fetcher    Fetcher
	engine     Engine
	view       View
	bus        *events.Bus
	clock      clock.Clock
	logger     *zap.Logger
	indicator  *status.Indicator
	delay      time.Duration
	minScale   float64
	maxScale   float64
	baseScale  float64
	pixelRatio float64
	fields     map[string][]FieldBox

	ctx      context.Context
	cancel   context.CancelFunc
	debounce *debounce.Handler
	drawMu   sync.Mutex

	mu             sync.Mutex
	state          State
	rendering      bool
	pendingRefresh bool
	closed         bool
	doc            Document
	page           int
	scale          float64
	pinchBase      float64
	pinchDistance  float64
	pinchScale     float64
	highlight      string
	xray           bool
	renders        int
	unsubs         []func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithBus subscribes the controller to form:saved on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithClock overrides the clock used for debouncing.
func WithClock(cl clock.Clock) Option {
	return func(c *Controller) {
		if cl != nil {
			c.clock = cl
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger.Named("preview")
		}
	}
}

// WithIndicator reports refresh progress on ind.
func WithIndicator(ind *status.Indicator) Option {
	return func(c *Controller) { c.indicator = ind }
}

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithZoomLimits sets the scale bounds and the reset scale. Invalid
// combinations are ignored.
func WithZoomLimits(min, max, base float64) Option {
	return func(c *Controller) {
		if min > 0 && max >= min && base >= min && base <= max {
			c.minScale, c.maxScale, c.baseScale = min, max, base
		}
	}
}

// WithPixelRatio sets the device pixel ratio used for overlays.
func WithPixelRatio(ratio float64) Option {
	return func(c *Controller) {
		if ratio > 0 {
			c.pixelRatio = ratio
		}
	}
}

// WithFieldBoxes maps field names to their widgets in the document.
func WithFieldBoxes(fields map[string][]FieldBox) Option {
	return func(c *Controller) { c.fields = fields }
}

// New builds a controller. view may be nil for headless use.
func New(fetcher Fetcher, engine Engine, view View, opts ...Option) *Controller {
	c := &Controller{
		fetcher:    fetcher,
		engine:     engine,
		view:       view,
		clock:      clock.Real(),
		logger:     zap.NewNop(),
		delay:      DefaultDelay,
		minScale:   DefaultMinScale,
		maxScale:   DefaultMaxScale,
		baseScale:  DefaultScale,
		pixelRatio: 1,
		state:      StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.scale = c.baseScale
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.debounce = debounce.New(func() { _ = c.render(c.ctx) }, debounce.WithClock(c.clock))
	return c
}

// Connect subscribes to form:saved and schedules the first render.
func (c *Controller) Connect() {
	unsub := events.Subscribe(c.bus, events.FormSaved, func(events.FormSavedEvent) { c.requestRefresh() })
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	c.debounce.Call(0)
}

// Refresh fetches and renders now. It is the manual retry after an error.
// While a render is running the refresh is queued behind it.
func (c *Controller) Refresh(ctx context.Context) error {
	c.debounce.Cancel()
	return c.render(ctx)
}

// State reports the preview state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Renders counts completed fetch-and-render cycles.
func (c *Controller) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// Scale reports the committed zoom scale.
func (c *Controller) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// Page reports the zero-based current page.
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// ZoomIn adds one zoom step.
func (c *Controller) ZoomIn(ctx context.Context) error {
	return c.setScale(ctx, c.Scale()+ZoomStep)
}

// ZoomOut removes one zoom step.
func (c *Controller) ZoomOut(ctx context.Context) error {
	return c.setScale(ctx, c.Scale()-ZoomStep)
}

// ResetZoom returns to the base scale.
func (c *Controller) ResetZoom(ctx context.Context) error {
	return c.setScale(ctx, c.baseScale)
}

// PinchStart begins a pinch gesture with the distance between touches.
func (c *Controller) PinchStart(distance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinchBase = c.scale
	c.pinchDistance = distance
	c.pinchScale = c.scale
}

// PinchMove updates the provisional scale and returns it. Nothing is
// rendered until PinchEnd.
func (c *Controller) PinchMove(distance float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pinchDistance <= 0 || distance <= 0 {
		return c.scale
	}
	c.pinchScale = clamp(c.pinchBase*distance/c.pinchDistance, c.minScale, c.maxScale)
	return c.pinchScale
}

// PinchEnd commits the provisional scale with a single render.
func (c *Controller) PinchEnd(ctx context.Context) error {
	c.mu.Lock()
	if c.pinchDistance <= 0 {
		c.mu.Unlock()
		return nil
	}
	target := c.pinchScale
	c.pinchDistance = 0
	c.mu.Unlock()
	return c.setScale(ctx, target)
}

// NextPage shows the following page.
func (c *Controller) NextPage(ctx context.Context) error {
	return c.setPage(ctx, c.Page()+1)
}

// PreviousPage shows the preceding page.
func (c *Controller) PreviousPage(ctx context.Context) error {
	return c.setPage(ctx, c.Page()-1)
}

// Highlight outlines the widgets of field, moving to the page holding the
// first one. X-ray mode is switched off.
func (c *Controller) Highlight(ctx context.Context, field string) error {
	c.mu.Lock()
	c.highlight = field
	c.xray = false
	boxes := c.fields[field]
	page := c.page
	if len(boxes) > 0 {
		page = boxes[0].Page
	}
	samePage := page == c.page
	c.mu.Unlock()

	if !samePage {
		return c.setPage(ctx, page)
	}
	c.drawOverlays()
	return nil
}

// ClearHighlight removes the single-field highlight.
func (c *Controller) ClearHighlight() {
	c.mu.Lock()
	c.highlight = ""
	c.mu.Unlock()
	c.drawOverlays()
}

// SetXRay outlines every mapped field on the page.
func (c *Controller) SetXRay(on bool) {
	c.mu.Lock()
	c.xray = on
	c.mu.Unlock()
	c.drawOverlays()
}

// Close cancels pending refreshes and detaches from the bus.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.pendingRefresh = false
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	c.debounce.Cancel()
	for _, unsub := range unsubs {
		unsub()
	}
	c.cancel()
}

func (c *Controller) requestRefresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.rendering {
		c.pendingRefresh = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.debounce.Call(c.delay)
}

func (c *Controller) render(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.rendering {
		c.pendingRefresh = true
		c.mu.Unlock()
		return nil
	}
	c.rendering = true
	c.state = StateLoading
	c.mu.Unlock()

	if c.view != nil {
		c.view.ShowLoading()
	}
	c.indicator.Info("Updating preview")

	err := c.load(ctx)

	c.mu.Lock()
	c.rendering = false
	follow := c.pendingRefresh && !c.closed
	c.pendingRefresh = false
	if err != nil {
		// No automatic retry; the user refreshes manually.
		follow = false
		c.state = StateError
	} else {
		c.state = StateReady
		c.renders++
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("preview failed", zap.Error(err))
		if c.view != nil {
			c.view.ShowError("The preview could not be loaded. Refresh to try again.")
		}
		c.indicator.Error("Preview unavailable")
		return err
	}
	c.indicator.Saved("Preview updated")
	if follow {
		c.debounce.Call(c.delay)
	}
	return nil
}

func (c *Controller) load(ctx context.Context) error {
	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	doc, err := c.engine.Load(ctx, data)
	if err != nil {
		return fmt.Errorf("preview: load document: %w", err)
	}

	c.mu.Lock()
	c.doc = doc
	if pages := doc.NumPages(); c.page >= pages {
		c.page = max(pages-1, 0)
	}
	c.mu.Unlock()
	return c.draw(ctx)
}

// draw renders the current page of the loaded document and its overlays.
func (c *Controller) draw(ctx context.Context) error {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()

	c.mu.Lock()
	doc, page, scale := c.doc, c.page, c.scale
	c.mu.Unlock()
	if doc == nil {
		return nil
	}
	if err := doc.RenderPage(ctx, page, scale); err != nil {
		return fmt.Errorf("preview: render page %d: %w", page+1, err)
	}
	if c.view != nil {
		c.view.ShowPage(page, doc.NumPages(), scale)
	}
	c.drawOverlays()
	return nil
}

func (c *Controller) redraw(ctx context.Context) error {
	if err := c.draw(ctx); err != nil {
		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()
		if c.view != nil {
			c.view.ShowError("The preview could not be rendered. Refresh to try again.")
		}
		return err
	}
	return nil
}

func (c *Controller) setScale(ctx context.Context, scale float64) error {
	c.mu.Lock()
	scale = clamp(scale, c.minScale, c.maxScale)
	if scale == c.scale {
		c.mu.Unlock()
		return nil
	}
	c.scale = scale
	c.mu.Unlock()
	return c.redraw(ctx)
}

func (c *Controller) setPage(ctx context.Context, page int) error {
	c.mu.Lock()
	if c.doc == nil || page < 0 || page >= c.doc.NumPages() || page == c.page {
		c.mu.Unlock()
		return nil
	}
	c.page = page
	c.mu.Unlock()
	return c.redraw(ctx)
}

// Overlays returns the highlight boxes for the current page in canvas
// pixels.
func (c *Controller) Overlays() []Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return nil
	}
	_, pageHeight := c.doc.PageSize(c.page)

	var names []string
	switch {
	case c.xray:
		for name := range c.fields {
			names = append(names, name)
		}
		sort.Strings(names)
	case c.highlight != "":
		names = []string{c.highlight}
	}

	var out []Rect
	for _, name := range names {
		for _, box := range c.fields[name] {
			if box.Page != c.page {
				continue
			}
			out = append(out, ToCanvas(box.Rect, pageHeight, c.scale, c.pixelRatio))
		}
	}
	return out
}

func (c *Controller) drawOverlays() {
	if c.view == nil {
		return
	}
	c.view.DrawOverlays(c.Overlays())
}
