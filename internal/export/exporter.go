package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	ErrEmptyGrid = errors.New("export needs at least one image")
	ErrNotReady  = errors.New("export is not ready")
)

// Options configure an Exporter. Zero values pick the defaults.
type Options struct {
	Layout        imagepkg.Layout
	Scale         int
	SettleDelay   time.Duration
	DecodeTimeout time.Duration
	Concurrency   int
	JPEGQuality   int
	JPEGFill      color.NRGBA
	Background    color.NRGBA
	Now           func() time.Time
}

// DefaultOptions returns the production settings: 3x capture, a 200ms
// settle delay and a 15s decode timeout.
func DefaultOptions() Options {
	return Options{
		Layout:        imagepkg.DefaultLayout(),
		Scale:         3,
		SettleDelay:   200 * time.Millisecond,
		DecodeTimeout: 15 * time.Second,
		Concurrency:   4,
		JPEGQuality:   DefaultJPEGQuality,
		JPEGFill:      imagepkg.White,
		Background:    imagepkg.DefaultBackground,
		Now:           time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Layout == (imagepkg.Layout{}) {
		o.Layout = d.Layout
	}
	if o.Scale <= 0 {
		o.Scale = d.Scale
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.DecodeTimeout <= 0 {
		o.DecodeTimeout = d.DecodeTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = d.JPEGQuality
	}
	if o.JPEGFill.A == 0 {
		o.JPEGFill = d.JPEGFill
	}
	if o.Background.A == 0 {
		o.Background = d.Background
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Config is what the user picks in the export dialog.
type Config struct {
	Format          Format `json:"format"`
	BackgroundColor string `json:"background_color"`
	Transparent     bool   `json:"transparent"`
}

// Exporter runs one export session at a time. Begin snapshots the images
// into an off-screen grid and decodes them; Export captures the grid once
// every decode has been accounted for; Reset abandons the session.
type Exporter struct {
	loader imagepkg.Loader
	opts   Options
	gate   Gate

	mu     sync.Mutex
	grid   *imagepkg.Grid
	ticket Ticket
	ctx    context.Context
	cancel context.CancelFunc
}

func New(loader imagepkg.Loader, opts Options) *Exporter {
	return &Exporter{loader: loader, opts: opts.withDefaults()}
}

// Begin starts a new session for images (storage order) at ratio,
// replacing any session in flight.
func (e *Exporter) Begin(images []grid.Image, ratio grid.AspectRatio) (Progress, error) {
	if len(images) == 0 {
		return e.gate.Progress(), ErrEmptyGrid
	}
	g, err := imagepkg.BuildGrid(images, ratio, e.opts.Layout, "", false)
	if err != nil {
		return e.gate.Progress(), err
	}

	e.mu.Lock()
	e.resetLocked()
	ctx, cancel := context.WithCancel(context.Background())
	t := e.gate.Begin(len(g.Cells))
	e.grid, e.ticket, e.ctx, e.cancel = g, t, ctx, cancel
	e.mu.Unlock()

	klog.Infof("export: loading %d images at %s", len(g.Cells), ratio)
	go e.load(ctx, g, t)
	return e.gate.Progress(), nil
}

func (e *Exporter) load(ctx context.Context, g *imagepkg.Grid, t Ticket) {
	var eg errgroup.Group
	eg.SetLimit(e.opts.Concurrency)
	for _, c := range g.Cells {
		eg.Go(func() error {
			img, err := e.decode(ctx, c.URL)
			c.Image, c.Err = img, err
			if err != nil && ctx.Err() == nil {
				klog.Warningf("export: image %s failed to load: %v", c.ID, err)
			}
			if e.gate.Signal(t) {
				klog.V(1).Infof("export: image %s accounted for", c.ID)
			}
			return nil
		})
	}
	eg.Wait()
}

// decode loads url, giving up after the decode timeout even if the loader
// does not honour its context.
func (e *Exporter) decode(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.DecodeTimeout)
	defer cancel()

	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := e.loader.Load(ctx, url)
		ch <- result{img, err}
	}()

	select {
	case r := <-ch:
		return r.img, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("decode %s: %w", imagepkg.ShortURL(url), ctx.Err())
	}
}

func (e *Exporter) Progress() Progress {
	return e.gate.Progress()
}

// WaitReady blocks until the current session is Ready.
func (e *Exporter) WaitReady(ctx context.Context) error {
	return e.gate.Wait(ctx)
}

// Export captures the Ready session with cfg. The session ends afterwards
// whether or not the capture succeeded; invalid cfg leaves it untouched.
func (e *Exporter) Export(ctx context.Context, cfg Config) (*File, error) {
	format, err := ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}
	bg, err := imagepkg.ColorOrDefault(cfg.BackgroundColor, e.opts.Background)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.gate.State() != Ready || e.grid == nil {
		e.mu.Unlock()
		return nil, ErrNotReady
	}
	g, t, sessCtx := e.grid, e.ticket, e.ctx
	e.grid = nil
	e.mu.Unlock()
	defer e.finish(t)

	if d := e.opts.SettleDelay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-sessCtx.Done():
			timer.Stop()
			return nil, ErrReset
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	f, err := e.capture(g, RasterOptions{
		Format:      format,
		Background:  bg,
		Transparent: cfg.Transparent,
		Scale:       e.opts.Scale,
		JPEGQuality: e.opts.JPEGQuality,
		JPEGFill:    e.opts.JPEGFill,
		Now:         e.opts.Now(),
	})
	if err != nil {
		klog.Errorf("export: %v", err)
		return nil, err
	}
	klog.Infof("export: wrote %s (%dx%d, %d bytes)", f.Name, f.Width, f.Height, len(f.Data))
	return f, nil
}

// capture crops every loaded cell to its pixel size at opts.Scale, then
// rasterizes g.
func (e *Exporter) capture(g *imagepkg.Grid, opts RasterOptions) (f *File, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("%w: %v", ErrRasterize, r)
		}
	}()

	w, h := g.Layout.CellWidth*opts.Scale, g.CellHeight*opts.Scale
	for _, c := range g.Cells {
		if c.Image != nil {
			c.Image = imagepkg.CoverCropImage(c.Image, g.Ratio.Value(), w, h)
		}
	}
	return Rasterize(g, opts)
}

// finish ends session t if it is still the current one.
func (e *Exporter) finish(t Ticket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ticket == t {
		e.resetLocked()
	}
}

// Reset abandons the current session; late decodes become no-ops.
func (e *Exporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Exporter) resetLocked() {
	if e.cancel != nil {
		e.cancel()
	}
	e.grid, e.ticket, e.ctx, e.cancel = nil, Ticket{}, nil, nil
	e.gate.Reset()
}
