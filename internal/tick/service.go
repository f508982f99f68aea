// Package tick drives the periodic voice-credit pass. One pass runs at a
// fixed interval; if a pass is still in flight when the next interval
// elapses, the next run is delayed until it finishes, never run
// concurrently.
package tick

import (
	"context"
	"fmt"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/stellarlinkco/levelbot/internal/engine"
)

// Service schedules engine.Tick on a cron. The OnResult hook receives every
// non-empty pass so the gateway can announce level-ups and log failures.
type Service struct {
	engine   *engine.Engine
	interval time.Duration
	cron     *rcron.Cron

	OnResult func(res engine.TickResult)
}

func NewService(eng *engine.Engine) *Service {
	return &Service{
		engine:   eng,
		interval: eng.TickInterval(),
	}
}

func (s *Service) Start(ctx context.Context) error {
	logger := rcron.PrintfLogger(log.New(log.Writer(), "[tick] ", log.LstdFlags))
	s.cron = rcron.New(rcron.WithChain(rcron.DelayIfStillRunning(logger)))

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}

	s.cron.Start()
	log.Printf("[tick] started, interval %s", s.interval)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) run() {
	res := s.engine.Tick(time.Now())
	if res.Credited == 0 && len(res.Errors) == 0 && res.PersistErr == nil {
		return
	}
	log.Printf("[tick] credited %d users", res.Credited)
	for _, err := range res.Errors {
		log.Printf("[tick] credit warning: %v", err)
	}
	if res.PersistErr != nil {
		log.Printf("[tick] persist warning (memory stays authoritative): %v", res.PersistErr)
	}
	if s.OnResult != nil {
		s.OnResult(res)
	}
}

func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[tick] stop timeout waiting for running pass")
	}
	log.Printf("[tick] stopped")
}
