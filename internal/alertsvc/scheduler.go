package alertsvc

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs RunOnce on a cron schedule.
type Scheduler struct {
	svc  *Service
	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// Start registers the schedule, optionally runs once immediately, and
// returns a started Scheduler. Stop it with Stop or by cancelling ctx.
func (s *Service) Start(ctx context.Context) (*Scheduler, error) {
	sch := &Scheduler{svc: s, cron: cron.New()}

	if _, err := sch.cron.AddFunc(s.cfg.Schedule, func() { sch.tick(ctx) }); err != nil {
		return nil, fmt.Errorf("alertsvc: register schedule %q: %w", s.cfg.Schedule, err)
	}

	if s.cfg.RunOnStart {
		sch.tick(ctx)
	}
	sch.cron.Start()
	if h := s.deps.Health; h != nil {
		h.SetSchedulerOK(true)
	}
	log.Printf("[alertsvc] scheduler started (%s)", s.cfg.Schedule)

	go func() {
		<-ctx.Done()
		sch.Stop()
	}()
	return sch, nil
}

// Stop halts the schedule and waits for a running check to finish.
func (sch *Scheduler) Stop() {
	<-sch.cron.Stop().Done()
	if h := sch.svc.deps.Health; h != nil {
		h.SetSchedulerOK(false)
	}
	log.Println("[alertsvc] scheduler stopped")
}

// tick runs one check unless today is not a trading day or a previous check
// is still running.
func (sch *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	svc := sch.svc
	if cal := svc.deps.Calendar; cal != nil && svc.cfg.SkipNonTrading {
		now := svc.now()
		if !cal.IsTradingDay(now) {
			log.Printf("[alertsvc] %s is not a trading day, next is %s",
				now.In(cal.Location()).Format("2006-01-02"),
				cal.NextTradingDay(now).Format("2006-01-02"))
			return
		}
	}

	sch.mu.Lock()
	if sch.running {
		sch.mu.Unlock()
		log.Println("[alertsvc] previous check still running, skipping tick")
		return
	}
	sch.running = true
	sch.mu.Unlock()

	defer func() {
		sch.mu.Lock()
		sch.running = false
		sch.mu.Unlock()
	}()

	if _, err := svc.RunOnce(ctx); err != nil {
		log.Printf("[alertsvc] run aborted: %v", err)
	}
}
