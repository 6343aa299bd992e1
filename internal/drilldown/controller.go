// Package drilldown tracks per-row expansion state for budget lines and loads
// their payroll and vendor detail on demand.
//
// A Controller is owned by one goroutine. Expand and Toggle hand back a Load when
// a fetch must start; the owner runs it elsewhere and applies the Result with
// Resolve. Loads never touch controller state.
package drilldown

import (
	"context"
	"fmt"

	"github.com/theirongolddev/cbudget/internal/model"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxInFlight bounds concurrently executing loads.
const DefaultMaxInFlight = 4

// Status is the visible state of one row.
type Status int

const (
	Collapsed Status = iota
	Loading
	Loaded
	Error
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Error:
		return "error"
	default:
		return "collapsed"
	}
}

// Fetcher loads the two detail sequences beneath a line.
type Fetcher interface {
	Employees(ctx context.Context, key RowKey) ([]model.Employee, error)
	VendorExpenses(ctx context.Context, key RowKey) ([]model.VendorExpense, error)
}

// Result is the outcome of one Load.
type Result struct {
	Key    RowKey
	Detail model.DetailBundle
	Err    error

	attempt int
}

// Load runs one fetch pair. It is safe to call from any goroutine.
type Load func(ctx context.Context) Result

type entry struct {
	status   Status
	detail   *model.DetailBundle
	err      error
	inFlight bool
	attempt  int
}

// Controller owns the drill-down state of every row it has seen.
type Controller struct {
	fetcher Fetcher
	sem     *semaphore.Weighted
	rows    map[RowKey]*entry
	fetches int
}

// Option configures a Controller.
type Option func(*config)

type config struct {
	maxInFlight int64
}

// WithMaxInFlight caps how many loads run their network phase at once.
func WithMaxInFlight(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxInFlight = int64(n)
		}
	}
}

// New creates a controller backed by f.
func New(f Fetcher, opts ...Option) *Controller {
	cfg := config{maxInFlight: DefaultMaxInFlight}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		fetcher: f,
		sem:     semaphore.NewWeighted(cfg.maxInFlight),
		rows:    make(map[RowKey]*entry),
	}
}

func (c *Controller) entry(key RowKey) *entry {
	e, ok := c.rows[key]
	if !ok {
		e = &entry{}
		c.rows[key] = e
	}
	return e
}

// Expand shows the row. It returns a Load only when a fetch pair must start:
// on first expansion and on retry after a failure. Rows with cached detail go
// straight to Loaded; rows with a fetch in flight stay Loading.
func (c *Controller) Expand(key RowKey) Load {
	e := c.entry(key)

	switch {
	case e.detail != nil:
		e.status = Loaded
		return nil
	case e.inFlight:
		e.status = Loading
		return nil
	}

	e.status = Loading
	e.inFlight = true
	e.err = nil
	e.attempt++
	c.fetches++
	log.WithField("row", key.String()).Debug("drilldown: fetching detail")
	return c.load(key, e.attempt)
}

// Collapse hides the row. Cached detail and any in-flight fetch are kept.
func (c *Controller) Collapse(key RowKey) {
	if e, ok := c.rows[key]; ok {
		e.status = Collapsed
	}
}

// Toggle collapses a visible row or expands a hidden one.
func (c *Controller) Toggle(key RowKey) Load {
	if c.State(key).Visible() {
		c.Collapse(key)
		return nil
	}
	return c.Expand(key)
}

// Resolve applies a finished Load. Successful results are cached even when the
// row was collapsed meanwhile. It reports whether the row's visible state changed.
func (c *Controller) Resolve(res Result) bool {
	e, ok := c.rows[res.Key]
	if !ok || !e.inFlight || res.attempt != e.attempt {
		return false
	}
	e.inFlight = false

	if res.Err != nil {
		e.err = res.Err
		log.WithField("row", res.Key.String()).Warnf("drilldown: %v", res.Err)
		if e.status == Loading {
			e.status = Error
			return true
		}
		return false
	}

	detail := res.Detail
	e.detail = &detail
	e.err = nil
	if e.status == Loading {
		e.status = Loaded
		return true
	}
	return false
}

// State returns a snapshot of the row. Unknown rows are Collapsed.
func (c *Controller) State(key RowKey) Row {
	row := Row{Key: key}
	e, ok := c.rows[key]
	if !ok {
		return row
	}
	row.Status = e.status
	row.Cached = e.detail != nil
	if e.detail != nil {
		row.Detail = *e.detail
	}
	row.Err = e.err
	return row
}

// Fetches returns how many fetch pairs the controller has started.
func (c *Controller) Fetches() int { return c.fetches }

// Len returns how many rows the controller tracks.
func (c *Controller) Len() int { return len(c.rows) }

func (c *Controller) load(key RowKey, attempt int) Load {
	return func(ctx context.Context) Result {
		res := Result{Key: key, attempt: attempt}

		if err := c.sem.Acquire(ctx, 1); err != nil {
			res.Err = err
			return res
		}
		defer c.sem.Release(1)

		var (
			employees []model.Employee
			vendors   []model.VendorExpense
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			out, err := c.fetcher.Employees(gctx, key)
			if err != nil {
				return fmt.Errorf("employees: %w", err)
			}
			employees = out
			return nil
		})
		g.Go(func() error {
			out, err := c.fetcher.VendorExpenses(gctx, key)
			if err != nil {
				return fmt.Errorf("vendor expenses: %w", err)
			}
			vendors = out
			return nil
		})
		if err := g.Wait(); err != nil {
			res.Err = err
			return res
		}

		res.Detail = model.DetailBundle{Employees: employees, VendorExpenses: vendors}
		return res
	}
}
