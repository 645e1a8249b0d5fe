package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contentpilot/contentpilot/internal/agent"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
)

// Scheduler polls for elapsed schedules and fires automated runs. Runs
// are serialized through the orchestrator, so a tick that lands while a
// run is in flight simply retries on the next poll.
type Scheduler struct {
	Store    *store.Store
	Stop     chan struct{}
	Rdb      *redis.Client
	Orch     *agent.Orchestrator
	Interval time.Duration

	logger *log.Logger
}

func (s *Scheduler) Start() {
	if s.Interval <= 0 {
		s.Interval = 45 * time.Second
	}
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(s.Interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	due, err := s.Store.DueSchedules(ctx, time.Now())
	if err != nil {
		s.logger.Printf("load due schedules: %v", err)
		return
	}
	for _, d := range due {
		// distributed lock to avoid duplicate runs across replicas
		lockKey := "sched:lock:" + d.UserID
		if s.Rdb != nil {
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}
		s.fire(ctx, d)
		if s.Rdb != nil {
			s.Rdb.Del(ctx, lockKey)
		}
	}
}

// fire resolves the topic and channel for one elapsed schedule and
// triggers a run. A user with no topics is skipped without advancing
// the schedule, so the slot fires as soon as a topic appears.
func (s *Scheduler) fire(ctx context.Context, d store.DueSchedule) {
	topic, ok, err := s.Store.SelectedTopic(ctx, d.UserID)
	if err != nil {
		s.logger.Printf("resolve topic for %s: %v", d.UserID, err)
		return
	}
	if !ok {
		s.logger.Printf("schedule elapsed for %s but no topic available, skipping", d.UserID)
		return
	}

	var channel *models.Channel
	if ch, found, err := s.Store.GetChannel(ctx, d.UserID); err != nil {
		s.logger.Printf("load channel for %s: %v", d.UserID, err)
		return
	} else if found {
		channel = &ch
	}

	res, err := s.Orch.Trigger(ctx, d.UserID, topic, channel, true)
	if errors.Is(err, agent.ErrRunInFlight) {
		return
	}
	if res.Status == models.RunStatusFailed {
		s.logger.Printf("automated run %s for %s failed: %s", res.RunID, d.UserID, res.Error)
		return
	}
	if err != nil {
		s.logger.Printf("trigger run for %s: %v", d.UserID, err)
		return
	}
	s.logger.Printf("automated run %s for %s posted to %s", res.RunID, d.UserID, res.Destination)
}
