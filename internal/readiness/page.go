package readiness

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/readycheck/internal/apiclient"
)

// HealthFunc performs the backend health call.
type HealthFunc func(ctx context.Context) (apiclient.BackendHealth, error)

// Result describes a settled check. HTTPStatus is the status of a failed
// response, or 0.
type Result struct {
	BackendURL string
	View       View
	HTTPStatus int
	Duration   time.Duration
	CheckedAt  time.Time
}

// Option configures a Page.
type Option func(*Page)

// WithSetup sets a function run at the start of every mount, typically
// apiclient.SetupInterceptors bound to the shared client.
func WithSetup(fn func()) Option {
	return func(p *Page) { p.setup = fn }
}

// WithOnSettled sets a callback invoked once per live cycle after its view
// has been updated. An Unmount of that cycle waits for fn to return, so fn
// must not unmount it.
func WithOnSettled(fn func(Result)) Option {
	return func(p *Page) { p.onSettled = fn }
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

// Page is the readiness page state: the backend URL it reports on and the
// view of its current check cycle.
type Page struct {
	baseURL   string
	check     HealthFunc
	setup     func()
	onSettled func(Result)
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	view View
	cur  *Cycle
}

// New returns a Page for baseURL whose checks call check.
func New(baseURL string, check HealthFunc, opts ...Option) *Page {
	p := &Page{
		baseURL: baseURL,
		check:   check,
		logger:  slog.Default(),
		now:     time.Now,
		view:    Checking(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BaseURL returns the backend URL shown on the page.
func (p *Page) BaseURL() string {
	return p.baseURL
}

// View returns the current snapshot.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Cycle is one mount of the page. mu guards alive and is held from the
// moment a live cycle commits its view until its settle callback returns.
type Cycle struct {
	mu    sync.Mutex
	alive bool

	done chan struct{}
	once sync.Once
}

// Done is closed once the cycle can no longer change the page: it settled,
// was unmounted, or was superseded by a newer mount.
func (c *Cycle) Done() <-chan struct{} {
	return c.done
}

// Unmount stops the cycle from updating the page. The in-flight health call
// is not cancelled; its result is discarded. If the cycle is committing its
// result, Unmount waits for the settle callback to return.
func (c *Cycle) Unmount() {
	c.kill()
	c.finish()
}

func (c *Cycle) kill() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}

func (c *Cycle) finish() {
	c.once.Do(func() { close(c.done) })
}

// Mount starts a fresh check cycle: it runs the setup hook, resets the view
// to checking and issues the health call with ctx in the background.
func (p *Page) Mount(ctx context.Context) *Cycle {
	if p.setup != nil {
		p.setup()
	}

	c := &Cycle{alive: true, done: make(chan struct{})}

	p.mu.Lock()
	prev := p.cur
	p.mu.Unlock()
	if prev != nil {
		// Lock order is cycle then page, so prev is killed before the page
		// lock is retaken.
		prev.kill()
		prev.finish()
	}

	p.mu.Lock()
	p.cur = c
	p.view = Checking()
	p.mu.Unlock()

	go p.run(ctx, c)
	return c
}

// Wait blocks until c is done or ctx ends, then returns the current view.
func (p *Page) Wait(ctx context.Context, c *Cycle) View {
	select {
	case <-c.Done():
	case <-ctx.Done():
	}
	return p.View()
}

func (p *Page) run(ctx context.Context, c *Cycle) {
	defer c.finish()

	start := p.now()
	health, err := p.check(ctx)
	elapsed := p.now().Sub(start)

	next := Connected(health)
	status := 0
	if err != nil {
		var apiErr *apiclient.APIError
		if !errors.As(err, &apiErr) {
			apiErr = apiclient.Normalize(err)
		}
		next = Failed(apiErr.Message)
		status = apiErr.HTTPStatus()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p.mu.Lock()
	if !c.alive || p.cur != c {
		p.mu.Unlock()
		p.logger.Debug("check settled after unmount", "backend_url", p.baseURL, "state", next.State())
		return
	}
	p.view = next
	p.mu.Unlock()

	p.logger.Info("check settled",
		"backend_url", p.baseURL,
		"state", next.State(),
		"http_status", status,
		"duration", elapsed,
	)

	if p.onSettled != nil {
		p.onSettled(Result{
			BackendURL: p.baseURL,
			View:       next,
			HTTPStatus: status,
			Duration:   elapsed,
			CheckedAt:  start,
		})
	}
}
