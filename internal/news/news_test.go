package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>search</title>
<item><title>Apple beats estimates on services growth - Reuters</title><source>Reuters</source></item>
<item><title>Apple beats estimates on services growth - Reuters</title></item>
<item><title>Apple &amp;amp; &lt;b&gt;Google&lt;/b&gt; extend search deal</title></item>
<item><title>  </title></item>
<item><title>iPhone shipments slow in China</title></item>
</channel></rss>`

func TestHeadlines(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/rss/search", r.URL.Path)
		assert.Equal(t, `"Apple Inc." stock`, r.URL.Query().Get("q"))
		assert.Equal(t, "US:en", r.URL.Query().Get("ceid"))
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Max: 2})
	got, err := c.Headlines(context.Background(), "AAPL", map[string]any{"name": "Apple Inc."})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Apple beats estimates on services growth - Reuters",
		"Apple & Google extend search deal",
	}, got)

	_, err = c.Headlines(context.Background(), "AAPL", map[string]any{"name": "Apple Inc."})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHeadlinesFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Headlines(context.Background(), "AAPL", nil)
	assert.Error(t, err)
}

func TestSearchQueryFallsBackToTicker(t *testing.T) {
	assert.Equal(t, "MSFT stock", searchQuery("MSFT", nil))
	assert.Equal(t, "MSFT stock", searchQuery("MSFT", map[string]any{"name": " "}))
}

func TestHeadlineCacheExpiry(t *testing.T) {
	hc := newHeadlineCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hc.now = func() time.Time { return now }

	hc.set("q", []string{"a"})
	got, ok := hc.get("q")
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, got)

	now = now.Add(2 * time.Minute)
	_, ok = hc.get("q")
	assert.False(t, ok)
}
