// Package news collects recent headlines for a listing from the Google News
// RSS search feed. Headlines are optional prompt context: callers treat any
// failure as "no headlines".
package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
)

const DefaultBaseURL = "https://news.google.com"

type Config struct {
	BaseURL  string
	Max      int
	Language string
	Region   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Collector implements interfaces.HeadlineSource.
type Collector struct {
	cfg   Config
	cache *headlineCache
}

var _ interfaces.HeadlineSource = (*Collector)(nil)

func New(cfg Config) *Collector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Max <= 0 {
		cfg.Max = 8
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Region == "" {
		cfg.Region = "US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	return &Collector{cfg: cfg, cache: newHeadlineCache(cfg.CacheTTL)}
}

// Headlines returns up to Max distinct headlines mentioning the company, newest
// first as the feed orders them.
func (c *Collector) Headlines(ctx context.Context, ticker string, company map[string]any) ([]string, error) {
	query := searchQuery(ticker, company)
	if cached, ok := c.cache.get(query); ok {
		return cached, nil
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(hostname(c.cfg.BaseURL)),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	})

	seen := map[string]struct{}{}
	var headlines []string
	collector.OnXML("//item", func(e *colly.XMLElement) {
		if len(headlines) >= c.cfg.Max {
			return
		}
		title := plainText(e.ChildText("title"))
		if title == "" {
			return
		}
		key := strings.ToLower(title)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		headlines = append(headlines, title)
	})

	feedURL := c.feedURL(query)
	if err := collector.Visit(feedURL); err != nil {
		return nil, fmt.Errorf("headline feed %s: %w", feedURL, err)
	}
	collector.Wait()

	logger.Debug(ctx, "Headlines collected", "ticker", ticker, "query", query, "count", len(headlines))
	c.cache.set(query, headlines)
	return headlines, nil
}

func (c *Collector) feedURL(query string) string {
	lang := strings.SplitN(c.cfg.Language, "-", 2)[0]
	params := url.Values{
		"q":    {query},
		"hl":   {c.cfg.Language},
		"gl":   {c.cfg.Region},
		"ceid": {c.cfg.Region + ":" + lang},
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/rss/search?" + params.Encode()
}

func searchQuery(ticker string, company map[string]any) string {
	if name, ok := company["name"].(string); ok && strings.TrimSpace(name) != "" {
		return fmt.Sprintf("%q stock", strings.TrimSpace(name))
	}
	return ticker + " stock"
}

// plainText drops any markup the feed left inside a title.
func plainText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

type headlineCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	headlines []string
	storedAt  time.Time
}

func newHeadlineCache(ttl time.Duration) *headlineCache {
	return &headlineCache{data: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func (hc *headlineCache) get(key string) ([]string, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	entry, ok := hc.data[key]
	if !ok || hc.now().Sub(entry.storedAt) > hc.ttl {
		return nil, false
	}
	return entry.headlines, true
}

func (hc *headlineCache) set(key string, headlines []string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	now := hc.now()
	for k, e := range hc.data {
		if now.Sub(e.storedAt) > hc.ttl {
			delete(hc.data, k)
		}
	}
	hc.data[key] = cacheEntry{headlines: headlines, storedAt: now}
}
