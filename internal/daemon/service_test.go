package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
)

type fakeLoader struct {
	mu     sync.Mutex
	actual float64
	fail   map[pipeline.ViewID]bool
}

func (f *fakeLoader) setActual(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actual = v
}

func (f *fakeLoader) LoadView(_ context.Context, id pipeline.ViewID) (*pipeline.ViewData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return nil, errors.New("upstream down")
	}
	v, _ := pipeline.LookupView(id)
	root := pipeline.Aggregate([]model.BudgetRecord{
		{Department: model.Segment{Code: "10", Name: "POLICE"}, ActualToDate: f.actual, AdoptedBudget: 100},
		{Department: model.Segment{Code: "20", Name: "FIRE"}, ActualToDate: 40, AdoptedBudget: 100},
	}, pipeline.DepartmentLevel)
	return &pipeline.ViewData{View: v, Root: root}, nil
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{Views: []ViewSnapshot{
		{ID: pipeline.AppropriationsByDept, Records: 10, Actual: 100, Adopted: 200, OverBudget: 1},
		{ID: pipeline.RevenuesByDept, Records: 5, Actual: 50, Adopted: 50},
		{ID: pipeline.RevenuesBySource, Error: "boom"},
	}}
	curr := Snapshot{Views: []ViewSnapshot{
		{ID: pipeline.AppropriationsByDept, Records: 12, Actual: 130.5, Adopted: 200, OverBudget: 2},
		{ID: pipeline.RevenuesByDept, Records: 5, Actual: 50, Adopted: 50},
		{ID: pipeline.RevenuesBySource, Records: 3, Actual: 1},
	}}

	delta := diffSnapshots(prev, curr)
	if len(delta) != 1 {
		t.Fatalf("got %d deltas, want 1 (unchanged and previously failed views skipped)", len(delta))
	}
	d := delta[0]
	if d.ID != pipeline.AppropriationsByDept {
		t.Fatalf("delta for %s, want %s", d.ID, pipeline.AppropriationsByDept)
	}
	if d.Records != 2 || d.OverBudget != 1 || d.Adopted != 0 {
		t.Fatalf("delta = %+v", d)
	}
	if math.Abs(d.Actual-30.5) > 1e-9 {
		t.Fatalf("Actual delta = %.2f, want 30.50", d.Actual)
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(&fakeLoader{}, Config{
		Interval:     time.Hour,
		EventsBuffer: 2,
	})

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestPollOnceEmitsSnapshotThenDelta(t *testing.T) {
	loader := &fakeLoader{actual: 90}
	s := New(loader, Config{Views: []pipeline.ViewID{pipeline.AppropriationsByDept}})

	s.pollOnce(context.Background())
	s.pollOnce(context.Background()) // unchanged: no event
	loader.setActual(150)
	s.pollOnce(context.Background())

	s.mu.RLock()
	events := append([]Event(nil), s.events...)
	s.mu.RUnlock()

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != "snapshot" || events[1].Type != "budget_delta" {
		t.Fatalf("event types = %q, %q", events[0].Type, events[1].Type)
	}

	v := events[1].Snapshot.Views[0]
	if v.Actual != 190 || v.Adopted != 200 || v.Records != 2 || v.OverBudget != 1 {
		t.Fatalf("view snapshot = %+v", v)
	}
	if v.Percent != 95 {
		t.Fatalf("Percent = %d, want 95", v.Percent)
	}
	if d := events[1].Delta; len(d) != 1 || d[0].Actual != 60 || d[0].OverBudget != 1 {
		t.Fatalf("delta = %+v", d)
	}
}

func TestStatusEndpointReportsFailedView(t *testing.T) {
	loader := &fakeLoader{actual: 10, fail: map[pipeline.ViewID]bool{pipeline.RevenuesBySource: true}}
	s := New(loader, Config{})
	s.pollOnce(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.PollCount != 1 {
		t.Fatalf("PollCount = %d, want 1", st.PollCount)
	}
	if st.LastError == "" {
		t.Fatal("expected LastError for the failing view")
	}
	if len(st.Summary.Views) != 4 {
		t.Fatalf("got %d views, want 4", len(st.Summary.Views))
	}
	failed, ok := st.Summary.view(pipeline.RevenuesBySource)
	if !ok || failed.Error == "" {
		t.Fatalf("failed view = %+v", failed)
	}
	healthy, _ := st.Summary.view(pipeline.AppropriationsByType)
	if healthy.Error != "" || healthy.Records != 2 {
		t.Fatalf("healthy view = %+v", healthy)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New(&fakeLoader{}, Config{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
