package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockiq/internal/types"
)

func fixedNow() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) }

func aggregatesJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"t":%d,"o":%d,"h":%d,"l":%d,"c":%d,"v":1.5e6,"vw":1,"n":10}`,
			int64(i)*86_400_000, 100+i, 101+i, 99+i, 100+i)
	}
	return `{"status":"OK","results":[` + strings.Join(parts, ",") + `]}`
}

func newServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		for prefix, h := range handlers {
			if strings.HasPrefix(r.URL.Path, prefix) {
				h(w, r)
				return
			}
		}
		http.NotFound(w, r)
	}))
}

func newProvider(srv *httptest.Server) *Provider {
	p := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	p.now = fixedNow
	return p
}

func TestFetchSnapshot(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/v3/reference/tickers/AAPL": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":{"ticker":"AAPL","name":"Apple Inc.","market_cap":3.1e12,"homepage_url":null,"locale":"us"}}`))
		},
		"/v2/aggs/ticker/AAPL/range/1/day/": func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/2025-03-07/2026-03-02"), r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("adjusted"))
			assert.Equal(t, "asc", r.URL.Query().Get("sort"))
			assert.Equal(t, "50000", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(aggregatesJSON(200)))
		},
		"/vX/reference/financials": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "AAPL", r.URL.Query().Get("ticker"))
			_, _ = w.Write([]byte(`{"results":[{"metrics":{"price_to_earnings_ratio":31.5,"earnings_per_share":6.1}}]}`))
		},
	})
	defer srv.Close()

	snap, err := newProvider(srv).FetchSnapshot(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc.", snap.Company["name"])
	assert.NotContains(t, snap.Company, "homepage_url")
	assert.NotContains(t, snap.Company, "locale")

	require.Len(t, snap.Bars, DefaultTradingDays)
	assert.Equal(t, 120.0, snap.Bars[0].Close)
	assert.Equal(t, 299.0, snap.Bars[len(snap.Bars)-1].Close)
	assert.Equal(t, 1.5e6, snap.Bars[0].Volume)

	assert.Equal(t, map[string]float64{"pe_ratio": 31.5, "eps": 6.1}, snap.Financials)
	assert.Equal(t, Name, snap.Provider)
}

func TestFetchSnapshotUnknownTicker(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/v3/reference/tickers/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"OK","results":null}`))
		},
	})
	defer srv.Close()

	_, err := newProvider(srv).FetchSnapshot(context.Background(), "ZZZZ")
	require.ErrorIs(t, err, types.ErrTickerNotFound)
	assert.Contains(t, err.Error(), "ZZZZ")
}

func TestFetchSnapshotNoAggregates(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/v3/reference/tickers/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":{"ticker":"NEW"}}`))
		},
		"/v2/aggs/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[]}`))
		},
	})
	defer srv.Close()

	_, err := newProvider(srv).FetchSnapshot(context.Background(), "NEW")
	require.ErrorIs(t, err, types.ErrTickerNotFound)
}

func TestFetchSnapshotProviderError(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/v3/reference/tickers/": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"status":"ERROR","error":"Unknown API Key"}`, http.StatusUnauthorized)
		},
	})
	defer srv.Close()

	_, err := newProvider(srv).FetchSnapshot(context.Background(), "AAPL")
	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.False(t, errors.Is(err, types.ErrTickerNotFound))
}

func TestFinancialsFailureIsNotFatal(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/v3/reference/tickers/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":{"ticker":"AAPL"}}`))
		},
		"/v2/aggs/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(aggregatesJSON(3)))
		},
		"/vX/reference/financials": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		},
	})
	defer srv.Close()

	snap, err := newProvider(srv).FetchSnapshot(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, snap.Financials)
	assert.Len(t, snap.Bars, 3)
}

func TestMissingKey(t *testing.T) {
	_, err := New(Config{}).FetchSnapshot(context.Background(), "AAPL")
	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "POLYGON_API_KEY")
}
