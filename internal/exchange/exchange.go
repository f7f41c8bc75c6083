// Package exchange resolves currency conversion rates.  Live rates come from
// the payment gateway and are cached for a TTL; when no live rate is
// available the service falls back to fixed rates so pricing never fails.
package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Fallback rates used when the provider cannot be reached.
var fallbackRates = map[string]decimal.Decimal{
	"USD:ETB": decimal.RequireFromString("55.0"),
	"ETB:USD": decimal.RequireFromString("0.018"),
}

// Fetcher is the live rate source (the Chapa adapter).
type Fetcher interface {
	FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Cache stores rates by pair key for a bounded time.
type Cache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool)
	Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration)
}

// Service answers Rate lookups through the cache.
type Service struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	log     zerolog.Logger
}

// NewService wires a fetcher and cache.  A nil fetcher means fallback rates
// only.
func NewService(f Fetcher, c Cache, ttl time.Duration, log zerolog.Logger) *Service {
	if c == nil {
		c = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{fetcher: f, cache: c, ttl: ttl, log: log.With().Str("component", "exchange").Logger()}
}

func pairKey(from, to string) string {
	return strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

// Rate returns the from→to conversion rate.  Identical currencies convert at 1.
func (s *Service) Rate(ctx context.Context, from, to string) decimal.Decimal {
	key := pairKey(from, to)
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1)
	}
	if r, ok := s.cache.Get(ctx, key); ok {
		return r
	}
	if r, ok := s.refresh(ctx, from, to); ok {
		return r
	}
	if r, ok := fallbackRates[key]; ok {
		return r
	}
	s.log.Warn().Str("pair", key).Msg("no rate available, using 1")
	return decimal.NewFromInt(1)
}

// Convert multiplies amount by the from→to rate, rounded to two places.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal) {
	rate := s.Rate(ctx, from, to)
	return amount.Mul(rate).Round(2), rate
}

// Warm refreshes every pair that has a fallback.  Used by cmd/cronjob.
func (s *Service) Warm(ctx context.Context) int {
	n := 0
	for key := range fallbackRates {
		parts := strings.SplitN(key, ":", 2)
		if _, ok := s.refresh(ctx, parts[0], parts[1]); ok {
			n++
		}
	}
	return n
}

func (s *Service) refresh(ctx context.Context, from, to string) (decimal.Decimal, bool) {
	if s.fetcher == nil {
		return decimal.Zero, false
	}
	r, err := s.fetcher.FetchExchangeRate(ctx, from, to)
	if err != nil || !r.IsPositive() {
		s.log.Debug().Err(err).Str("pair", pairKey(from, to)).Msg("live rate unavailable")
		return decimal.Zero, false
	}
	s.cache.Set(ctx, pairKey(from, to), r, s.ttl)
	return r, true
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	rate    decimal.Decimal
	expires time.Time
}

// NewMemoryCache returns an empty in-process rate cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memEntry{}, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return decimal.Zero, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return decimal.Zero, false
	}
	return e.rate, true
}

func (m *MemoryCache) Set(_ context.Context, key string, rate decimal.Decimal, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = memEntry{rate: rate, expires: m.now().Add(ttl)}
	m.mu.Unlock()
}
