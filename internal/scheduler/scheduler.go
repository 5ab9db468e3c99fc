// Package scheduler runs the periodic sweeps that move time forward
// for the engine: expiring stale holds and lapsed waitlist claims.
// Sweeps are scheduled and executed through asynq on top of Redis so a
// multi-instance deployment runs each sweep once per tick rather than
// once per instance.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/trailpass/experience-booking/internal/service"
)

// Task types handled by the sweeper.
const (
	TypeExpireHolds          = "sweep:expire_holds"
	TypeExpireWaitlistClaims = "sweep:expire_waitlist_claims"
)

// Sweeper owns the asynq server, mux and periodic scheduler for the
// engine's background sweeps.
type Sweeper struct {
	redis        asynq.RedisClientOpt
	interval     time.Duration
	reservations *service.ReservationService
	waitlist     *service.WaitlistService
	log          zerolog.Logger
}

// NewSweeper builds a Sweeper. interval controls how often both sweeps
// fire; it must be positive.
func NewSweeper(redis asynq.RedisClientOpt, interval time.Duration, reservations *service.ReservationService, waitlist *service.WaitlistService, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		redis:        redis,
		interval:     interval,
		reservations: reservations,
		waitlist:     waitlist,
		log:          log,
	}
}

// Run starts the task server and the periodic scheduler and blocks
// until either returns.  Both sweeps are registered with the same
// interval; asynq deduplicates execution across instances.
func (s *Sweeper) Run() error {
	srv := asynq.NewServer(s.redis, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"default": 10,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExpireHolds, s.handleExpireHolds)
	mux.HandleFunc(TypeExpireWaitlistClaims, s.handleExpireWaitlistClaims)

	sched := asynq.NewScheduler(s.redis, &asynq.SchedulerOpts{Location: time.UTC})
	cron := fmt.Sprintf("@every %s", s.interval)
	if _, err := sched.Register(cron, asynq.NewTask(TypeExpireHolds, nil)); err != nil {
		return fmt.Errorf("register %s: %w", TypeExpireHolds, err)
	}
	if _, err := sched.Register(cron, asynq.NewTask(TypeExpireWaitlistClaims, nil)); err != nil {
		return fmt.Errorf("register %s: %w", TypeExpireWaitlistClaims, err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(mux) }()
	go func() { errCh <- sched.Run() }()

	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	return <-errCh
}

func (s *Sweeper) handleExpireHolds(ctx context.Context, _ *asynq.Task) error {
	n, err := s.reservations.ExpireStaleHolds(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expire holds sweep failed")
		return err
	}
	if n > 0 {
		s.log.Info().Int("expired_groups", n).Msg("expired stale holds")
	}
	return nil
}

func (s *Sweeper) handleExpireWaitlistClaims(ctx context.Context, _ *asynq.Task) error {
	n, err := s.waitlist.ExpireLapsedClaims(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expire waitlist claims sweep failed")
		return err
	}
	if n > 0 {
		s.log.Info().Int("expired_entries", n).Msg("expired lapsed waitlist claims")
	}
	return nil
}
