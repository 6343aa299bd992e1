// Package daemon provides the long-running background service that keeps the
// response cache warm and reports budget totals over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/soql"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ViewLoader loads one predefined view. *pipeline.Loader implements it.
type ViewLoader interface {
	LoadView(ctx context.Context, id pipeline.ViewID) (*pipeline.ViewData, error)
}

// Config controls the daemon runtime behavior.
type Config struct {
	Views        []pipeline.ViewID
	Filter       soql.Context
	Interval     time.Duration
	Addr         string
	EventsBuffer int
}

// ViewSnapshot is the root totals of one view at poll time.
type ViewSnapshot struct {
	ID      pipeline.ViewID `json:"id"`
	Title   string          `json:"title"`
	Records int             `json:"records"`
	Actual  float64         `json:"actual"`
	Adopted float64         `json:"adopted"`
	Percent int             `json:"percent"`
	// OverBudget counts top-level sections with actual above adopted.
	OverBudget int    `json:"over_budget"`
	Error      string `json:"error,omitempty"`
}

// Snapshot is the state of every polled view.
type Snapshot struct {
	At    time.Time      `json:"at"`
	Views []ViewSnapshot `json:"views"`
}

func (s Snapshot) view(id pipeline.ViewID) (ViewSnapshot, bool) {
	for _, v := range s.Views {
		if v.ID == id {
			return v, true
		}
	}
	return ViewSnapshot{}, false
}

// ViewDelta captures how one view's totals moved between polls.
type ViewDelta struct {
	ID         pipeline.ViewID `json:"id"`
	Records    int             `json:"records"`
	Actual     float64         `json:"actual"`
	Adopted    float64         `json:"adopted"`
	OverBudget int             `json:"over_budget"`
}

func (d ViewDelta) isZero() bool {
	return d.Records == 0 &&
		d.Actual == 0 &&
		d.Adopted == 0 &&
		d.OverBudget == 0
}

// Event is emitted when the first snapshot lands and whenever totals change.
type Event struct {
	ID        int64       `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Snapshot  Snapshot    `json:"snapshot"`
	Delta     []ViewDelta `json:"delta,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	FiscalYear      string    `json:"fiscal_year"`
	Entity          string    `json:"entity,omitempty"`
	FundGroup       string    `json:"fund_group,omitempty"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	loader ViewLoader

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event
}

// New returns a new daemon service with the provided config.
func New(loader ViewLoader, cfg Config) *Service {
	if cfg.Interval < time.Minute {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8788"
	}
	if len(cfg.Views) == 0 {
		cfg.Views = []pipeline.ViewID{
			pipeline.AppropriationsByType,
			pipeline.AppropriationsByDept,
			pipeline.RevenuesBySource,
			pipeline.RevenuesByDept,
		}
	}

	return &Service{
		cfg:       cfg,
		loader:    loader,
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	return mux
}

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// pollOnce loads every configured view concurrently. A failing view keeps its
// error in the snapshot; the others still report.
func (s *Service) pollOnce(ctx context.Context) {
	start := time.Now()
	views := make([]ViewSnapshot, len(s.cfg.Views))

	var g errgroup.Group
	for i, id := range s.cfg.Views {
		g.Go(func() error {
			vd, err := s.loader.LoadView(ctx, id)
			if err != nil {
				views[i] = ViewSnapshot{ID: id, Error: err.Error()}
				return err
			}
			views[i] = viewSnapshot(vd)
			return nil
		})
	}
	pollErr := g.Wait()

	now := time.Now()
	snap := Snapshot{At: now, Views: views}

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""
	if pollErr != nil {
		s.lastError = pollErr.Error()
	}

	if !prevExists {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "snapshot",
			Timestamp: now,
			Snapshot:  snap,
		}
		publish = true
	} else if delta := diffSnapshots(prev, snap); len(delta) > 0 {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "budget_delta",
			Timestamp: now,
			Snapshot:  snap,
			Delta:     delta,
		}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}

	entry := log.WithFields(log.Fields{
		"views":   len(views),
		"elapsed": time.Since(start),
	})
	if pollErr != nil {
		entry.WithError(pollErr).Warn("daemon: poll failed")
		return
	}
	entry.Debug("daemon: poll complete")
}

func viewSnapshot(vd *pipeline.ViewData) ViewSnapshot {
	root := vd.Root
	over := 0
	for _, c := range root.Children {
		if overage.Describe(c.TotalActual, c.TotalAdopted).OverBudget {
			over++
		}
	}
	return ViewSnapshot{
		ID:         vd.View.ID,
		Title:      vd.View.Title,
		Records:    root.Count(),
		Actual:     root.TotalActual,
		Adopted:    root.TotalAdopted,
		Percent:    overage.Describe(root.TotalActual, root.TotalAdopted).Percent(),
		OverBudget: over,
	}
}

// diffSnapshots returns the non-zero per-view deltas. Views that failed in
// either snapshot are skipped.
func diffSnapshots(prev, curr Snapshot) []ViewDelta {
	var out []ViewDelta
	for _, c := range curr.Views {
		p, ok := prev.view(c.ID)
		if !ok || p.Error != "" || c.Error != "" {
			continue
		}
		d := ViewDelta{
			ID:         c.ID,
			Records:    c.Records - p.Records,
			Actual:     c.Actual - p.Actual,
			Adopted:    c.Adopted - p.Adopted,
			OverBudget: c.OverBudget - p.OverBudget,
		}
		if !d.isZero() {
			out = append(out, d)
		}
	}
	return out
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		FiscalYear:      s.cfg.Filter.FiscalYear,
		Entity:          s.cfg.Filter.Entity,
		FundGroup:       s.cfg.Filter.FundGroup,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}
