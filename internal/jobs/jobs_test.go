package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muluken16/E-liberary/internal/config"
)

type stubExpirer struct {
	ttl   time.Duration
	calls int
	err   error
}

func (s *stubExpirer) ExpireStale(_ context.Context, olderThan time.Duration) (int64, error) {
	s.calls++
	s.ttl = olderThan
	return 3, s.err
}

type stubWarmer struct{ calls int }

func (s *stubWarmer) Warm(context.Context) int { s.calls++; return 2 }

func cfg() config.JobsConfig {
	return config.JobsConfig{ExpireSpec: "0 */15 * * * *", RateWarmupSpec: "0 0 * * * *", PendingTTL: 24 * time.Hour}
}

func TestRunnerPassesTTL(t *testing.T) {
	e := &stubExpirer{}
	r := NewRunner(e, &stubWarmer{}, cfg(), zerolog.Nop())
	r.ExpirePendingPayments()
	assert.Equal(t, 1, e.calls)
	assert.Equal(t, 24*time.Hour, e.ttl)

	e.err = errors.New("db down")
	r.ExpirePendingPayments()
	assert.Equal(t, 2, e.calls)
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s, err := NewScheduler(NewRunner(&stubExpirer{}, &stubWarmer{}, cfg(), zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	c := cfg()
	c.ExpireSpec = "every now and then"
	_, err := NewScheduler(NewRunner(&stubExpirer{}, nil, c, zerolog.Nop()))
	assert.Error(t, err)
}
