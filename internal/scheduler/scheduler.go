package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// Resetter zeroes a tenant's queue counts. Implemented by the queue engine.
type Resetter interface {
	ResetCounts(ctx context.Context, tenantID, updaterName string) (int, error)
}

// Scheduler fires a daily count reset per registered tenant at a fixed
// local wall-clock time. Each firing re-arms the tenant's timer for the
// next day.
type Scheduler struct {
	resetter Resetter
	clock    clock.Clock
	hour     int
	minute   int
	updater  string

	mu      sync.Mutex
	timers  map[string]*clock.Timer
	stopped bool
}

// New creates a scheduler firing at resetTime, given as "HH:MM".
func New(resetter Resetter, clk clock.Clock, resetTime, updaterName string) (*Scheduler, error) {
	hour, minute, err := parseResetTime(resetTime)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		resetter: resetter,
		clock:    clk,
		hour:     hour,
		minute:   minute,
		updater:  updaterName,
		timers:   make(map[string]*clock.Timer),
	}, nil
}

func parseResetTime(value string) (int, int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid reset time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid reset hour %q", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid reset minute %q", parts[1])
	}
	return hour, minute, nil
}

// Register arms the daily reset timer for a tenant. Registering an already
// registered tenant is a no-op.
func (s *Scheduler) Register(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if _, ok := s.timers[tenantID]; ok {
		return
	}
	s.arm(tenantID)
}

// arm schedules the next firing. Callers must hold s.mu.
func (s *Scheduler) arm(tenantID string) {
	delay := s.nextDelay(s.clock.Now())
	s.timers[tenantID] = s.clock.AfterFunc(delay, func() {
		s.fire(tenantID)
	})

	log.Debug().
		Str("tenant_id", tenantID).
		Dur("delay", delay).
		Msg("Armed daily reset timer")
}

// nextDelay returns the time until the next reset instant: today's HH:MM if
// still ahead, otherwise the same time tomorrow.
func (s *Scheduler) nextDelay(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func (s *Scheduler) fire(tenantID string) {
	count, err := s.resetter.ResetCounts(context.Background(), tenantID, s.updater)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("Daily reset failed")
	} else {
		log.Info().
			Str("tenant_id", tenantID).
			Int("arcades", count).
			Msg("Daily reset completed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, ok := s.timers[tenantID]; !ok {
		// Cancelled while firing.
		return
	}
	s.arm(tenantID)
}

// Cancel disarms a tenant's timer.
func (s *Scheduler) Cancel(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[tenantID]; ok {
		timer.Stop()
		delete(s.timers, tenantID)
	}
}

// Stop disarms every timer. The scheduler accepts no registrations after.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for tenantID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, tenantID)
	}
}
