// Package scheduler fires refresh triggers and housekeeping jobs on fixed
// intervals.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unkn0wn-root/catalogcache/logging"
)

// Trigger is called on every tick; TryStartRefresh fits.
type Trigger func(trigger string) bool

type Scheduler struct {
	c    *cron.Cron
	fire Trigger
	log  logging.Logger

	mu       sync.Mutex
	entry    cron.EntryID
	interval time.Duration
}

func New(fire Trigger, log logging.Logger) *Scheduler {
	return &Scheduler{
		c:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		fire: fire,
		log:  logging.OrNop(log),
	}
}

func (s *Scheduler) Start() { s.c.Start() }

// Reschedule replaces the current interval. Zero or negative disables
// scheduled refreshes. Same interval is a no-op.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval == s.interval {
		return nil
	}
	if s.entry != 0 {
		s.c.Remove(s.entry)
		s.entry = 0
	}
	s.interval = interval
	if interval <= 0 {
		s.log.Info("scheduled refresh disabled", nil)
		return nil
	}
	id, err := s.c.AddFunc("@every "+interval.String(), s.tick)
	if err != nil {
		return err
	}
	s.entry = id
	s.log.Info("scheduled refresh", logging.Fields{"every": interval.String()})
	return nil
}

// Every runs fn on a fixed interval for the life of the scheduler, e.g.
// picking up generation bumps made by other processes.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: %s: interval must be positive", name)
	}
	_, err := s.c.AddFunc("@every "+interval.String(), fn)
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}
	s.log.Debug("periodic job added", logging.Fields{"job": name, "every": interval.String()})
	return nil
}

// Next reports the next scheduled fire time, zero when disabled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.c.Entry(id).Next
}

func (s *Scheduler) tick() {
	if !s.fire("scheduled") {
		s.log.Debug("scheduled refresh skipped", nil)
	}
}

// Stop stops firing and waits for a running tick, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
