// Package jobs schedules the periodic maintenance run by cmd/cronjob.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/muluken16/E-liberary/internal/config"
)

// Expirer fails stale pending payments (service.Ledger).
type Expirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RateWarmer refreshes cached exchange rates (exchange.Service).
type RateWarmer interface {
	Warm(ctx context.Context) int
}

// Runner holds the job bodies.
type Runner struct {
	expirer Expirer
	rates   RateWarmer
	cfg     config.JobsConfig
	log     zerolog.Logger
	timeout time.Duration
}

// NewRunner wires the job bodies to their dependencies.
func NewRunner(expirer Expirer, rates RateWarmer, cfg config.JobsConfig, log zerolog.Logger) *Runner {
	return &Runner{expirer: expirer, rates: rates, cfg: cfg, log: log.With().Str("component", "jobs").Logger(), timeout: time.Minute}
}

// ExpirePendingPayments fails pending payments older than the configured TTL.
func (r *Runner) ExpirePendingPayments() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n, err := r.expirer.ExpireStale(ctx, r.cfg.PendingTTL)
	if err != nil {
		r.log.Error().Err(err).Msg("expire pending payments failed")
		return
	}
	r.log.Info().Int64("failed", n).Msg("expire pending payments done")
}

// WarmExchangeRates refreshes the rate cache.
func (r *Runner) WarmExchangeRates() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n := r.rates.Warm(ctx)
	r.log.Info().Int("pairs", n).Msg("exchange rates refreshed")
}

// Scheduler wraps a seconds-precision UTC cron.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler registers the runner's jobs.  An invalid spec is returned as
// an error rather than skipped.
func NewScheduler(r *Runner) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)
	if _, err := c.AddFunc(r.cfg.ExpireSpec, r.ExpirePendingPayments); err != nil {
		return nil, err
	}
	if r.rates != nil {
		if _, err := c.AddFunc(r.cfg.RateWarmupSpec, r.WarmExchangeRates); err != nil {
			return nil, err
		}
	}
	return &Scheduler{cron: c, log: r.log}, nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", s.Entries()).Msg("starting cron scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("cron scheduler stopped")
}
