package kite

import (
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// instrumentMap resolves trading symbols to Kite instrument tokens. The Kite
// instrument dump is large and changes once a day, so it is loaded lazily and
// refreshed after ttl.
type instrumentMap struct {
	mu       sync.RWMutex
	bySymbol map[string]kiteconnect.Instrument
	loadedAt time.Time
	ttl      time.Duration
}

func newInstrumentMap(ttl time.Duration) *instrumentMap {
	return &instrumentMap{
		bySymbol: make(map[string]kiteconnect.Instrument),
		ttl:      ttl,
	}
}

func (m *instrumentMap) stale(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySymbol) == 0 || now.Sub(m.loadedAt) > m.ttl
}

// replace swaps in a fresh dump, keeping equities only.
func (m *instrumentMap) replace(instruments kiteconnect.Instruments, now time.Time) {
	bySymbol := make(map[string]kiteconnect.Instrument, len(instruments))
	for _, in := range instruments {
		if in.InstrumentType != "" && in.InstrumentType != "EQ" {
			continue
		}
		bySymbol[strings.ToUpper(in.Tradingsymbol)] = in
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySymbol = bySymbol
	m.loadedAt = now
}

func (m *instrumentMap) lookup(symbol string) (kiteconnect.Instrument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.bySymbol[symbol]
	return in, ok
}

func (m *instrumentMap) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySymbol)
}
