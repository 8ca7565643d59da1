package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockiq/internal/types"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"MSFT","longName":"Microsoft Corporation","exchangeName":"NMS","currency":"USD","instrumentType":"EQUITY","shortName":""},
  "timestamp":[1700179200,1700092800,1700265600],
  "indicators":{"quote":[{
    "open":[11,10,null],
    "high":[12,11,null],
    "low":[10,9,null],
    "close":[11.5,10.5,null],
    "volume":[2000,1000,null]
  }]}
}],"error":null}}`

func newProvider(srv *httptest.Server) *Provider {
	p := New(Config{BaseURL: srv.URL})
	p.now = func() time.Time { return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/MSFT", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	snap, err := newProvider(srv).FetchSnapshot(context.Background(), "MSFT")
	require.NoError(t, err)

	require.Len(t, snap.Bars, 2)
	assert.Equal(t, int64(1700092800000), snap.Bars[0].Time)
	assert.Equal(t, 10.5, snap.Bars[0].Close)
	assert.Equal(t, 11.5, snap.Bars[1].Close)
	assert.Equal(t, 2000.0, snap.Bars[1].Volume)

	assert.Equal(t, "Microsoft Corporation", snap.Company["name"])
	assert.Equal(t, "MSFT", snap.Company["ticker"])
	assert.Equal(t, "USD", snap.Company["currency"])
	assert.NotContains(t, snap.Company, "short_name")
	assert.Nil(t, snap.Financials)
	assert.Equal(t, Name, snap.Provider)
}

func TestFetchSnapshotChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := newProvider(srv).FetchSnapshot(context.Background(), "GONE")
	require.ErrorIs(t, err, types.ErrTickerNotFound)
	assert.Contains(t, err.Error(), "delisted")
}

func TestFetchSnapshot404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"chart":{"result":null}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newProvider(srv).FetchSnapshot(context.Background(), "GONE")
	require.ErrorIs(t, err, types.ErrTickerNotFound)
}

func TestFetchSnapshotServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newProvider(srv).FetchSnapshot(context.Background(), "MSFT")
	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
}

func TestChartRange(t *testing.T) {
	assert.Equal(t, "1mo", chartRange(20))
	assert.Equal(t, "6mo", chartRange(100))
	assert.Equal(t, "1y", chartRange(180))
	assert.Equal(t, "2y", chartRange(400))
}
