package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubFetcher struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (s *stubFetcher) FetchExchangeRate(context.Context, string, string) (decimal.Decimal, error) {
	s.calls++
	return s.rate, s.err
}

func TestRateFallsBackWhenProviderDown(t *testing.T) {
	svc := NewService(&stubFetcher{err: errors.New("down")}, nil, time.Hour, zerolog.Nop())
	assert.True(t, svc.Rate(context.Background(), "USD", "ETB").Equal(decimal.RequireFromString("55")))
	assert.True(t, svc.Rate(context.Background(), "ETB", "USD").Equal(decimal.RequireFromString("0.018")))
	assert.True(t, svc.Rate(context.Background(), "ETB", "ETB").Equal(decimal.NewFromInt(1)))
}

func TestRateCachesLiveValue(t *testing.T) {
	f := &stubFetcher{rate: decimal.RequireFromString("57.1")}
	svc := NewService(f, nil, time.Hour, zerolog.Nop())
	for i := 0; i < 3; i++ {
		assert.True(t, svc.Rate(context.Background(), "usd", "etb").Equal(f.rate))
	}
	assert.Equal(t, 1, f.calls)
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	c.Set(context.Background(), "USD:ETB", decimal.NewFromInt(60), time.Minute)

	_, ok := c.Get(context.Background(), "USD:ETB")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get(context.Background(), "USD:ETB")
	assert.False(t, ok)
}

func TestConvertRoundsToCents(t *testing.T) {
	svc := NewService(nil, nil, 0, zerolog.Nop())
	amt, rate := svc.Convert(context.Background(), decimal.RequireFromString("10.99"), "USD", "ETB")
	assert.True(t, rate.Equal(decimal.NewFromInt(55)))
	assert.Equal(t, "604.45", amt.StringFixed(2))
}

func TestWarmCountsRefreshedPairs(t *testing.T) {
	f := &stubFetcher{rate: decimal.NewFromInt(2)}
	svc := NewService(f, nil, time.Hour, zerolog.Nop())
	assert.Equal(t, 2, svc.Warm(context.Background()))
	assert.Equal(t, 2, f.calls)
}
