package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testQuery = soql.MustBuild(soql.Spec{
	Dataset: "xy5k-883e",
	Context: soql.Context{Entity: "CITY", FundGroup: "GENERAL FUND", FiscalYear: "2025"},
	Select: append(soql.Cols("segment5code", "segment5"),
		soql.Sum("actual", "ytd"), soql.Sum("originalbudget", "adopted")),
	GroupBy: []string{"segment5code", "segment5"},
	OrderBy: []soql.Order{soql.Asc("segment5code")},
})

func TestClient_Fetch(t *testing.T) {
	var gotToken, gotWhere, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-App-Token")
		gotWhere = r.URL.Query().Get("$where")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"segment5code":"41","segment5":"PERSONAL SERVICES","ytd":"150","adopted":"100"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithAppToken(" tok "))
	recs, err := c.FetchBudget(context.Background(), testQuery, Appropriations)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 150.0, recs[0].ActualToDate)

	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "/resource/xy5k-883e.json", gotPath)
	assert.Equal(t, "entity='CITY' AND fundgroup='GENERAL FUND' AND fiscalyear='2025'", gotWhere)
	assert.EqualValues(t, 1, c.Requests())
}

func TestClient_NoTokenHeaderWhenUnset(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["X-App-Token"]
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"query timeout"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Fetch(context.Background(), testQuery)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Contains(t, se.Message, "query timeout")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Fetch(context.Background(), testQuery)
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond)).Fetch(context.Background(), testQuery)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_Cache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[{"segment5code":"41","ytd":"1","adopted":"2"}]`))
	}))
	defer srv.Close()

	cache, err := store.Open(filepath.Join(t.TempDir(), "responses.db"))
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	c := NewClient(srv.URL, WithCache(cache, time.Hour))
	for i := 0; i < 3; i++ {
		recs, err := c.FetchBudget(context.Background(), testQuery, Appropriations)
		require.NoError(t, err)
		require.Len(t, recs, 1)
	}
	assert.EqualValues(t, 1, hits.Load())
	assert.EqualValues(t, 1, c.Requests())
}

func TestClient_DecodeErrorIsNotNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":true}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchBudget(context.Background(), testQuery, Appropriations)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestClient_MalformedBodyIsNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
			return
		}
		_, _ = w.Write([]byte(`[{"segment5code":"41","ytd":"1","adopted":"2"}]`))
	}))
	defer srv.Close()

	cache, err := store.Open(filepath.Join(t.TempDir(), "responses.db"))
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	c := NewClient(srv.URL, WithCache(cache, time.Hour))

	_, err = c.FetchBudget(context.Background(), testQuery, Appropriations)
	require.ErrorIs(t, err, ErrDecode)

	recs, err := c.FetchBudget(context.Background(), testQuery, Appropriations)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.EqualValues(t, 2, hits.Load())

	// The good body is cached.
	_, err = c.FetchBudget(context.Background(), testQuery, Appropriations)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`[]`, true},
		{" [{\"a\":\"1\"}]\n", true},
		{`<html>maintenance</html>`, false},
		{`{"error":true}`, false},
		{`[{"a":`, false},
		{``, false},
	}
	for _, tt := range tests {
		if got := cacheable([]byte(tt.body)); got != tt.want {
			t.Errorf("cacheable(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
