// Package agent drives the generate-and-publish sequence for a single
// trigger and owns all run ledger writes.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/contentpilot/contentpilot/internal/helpers"
	"github.com/contentpilot/contentpilot/internal/publish"
	"github.com/contentpilot/contentpilot/internal/schedule"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
	"github.com/contentpilot/contentpilot/provider"
)

// ErrRunInFlight is returned when a trigger arrives while another run
// has not finished. No run record is created in that case.
var ErrRunInFlight = errors.New("a run is already in flight")

// TriggerResult summarizes the outcome of one trigger sequence.
type TriggerResult struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	Summary     string `json:"summary,omitempty"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Orchestrator is the only writer to the run ledger and to the
// schedule's next_run_at. Both the manual API trigger and the poller
// converge on Trigger, guarded by a single in-flight flag.
type Orchestrator struct {
	store        *store.Store
	provider     provider.Provider
	dispatcher   publish.Dispatcher
	rdb          *redis.Client
	logger       *log.Logger
	historyLimit int
	previewTTL   time.Duration

	busy atomic.Bool
	now  func() time.Time
}

func NewOrchestrator(st *store.Store, prov provider.Provider, disp publish.Dispatcher, rdb *redis.Client, historyLimit int, previewTTL time.Duration) *Orchestrator {
	if historyLimit <= 0 {
		historyLimit = 30
	}
	if previewTTL <= 0 {
		previewTTL = 24 * time.Hour
	}
	return &Orchestrator{
		store:        st,
		provider:     prov,
		dispatcher:   disp,
		rdb:          rdb,
		logger:       log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		historyLimit: historyLimit,
		previewTTL:   previewTTL,
		now:          time.Now,
	}
}

// PreviewKey is the redis key holding a preview-only run's article body.
func PreviewKey(runID string) string { return "preview:" + runID }

// Trigger runs the full sequence for one topic: append a generating run
// record, generate the article, dispatch it when an active channel is
// supplied, write the terminal status, and advance the schedule. The
// schedule is advanced even when the run fails so a bad run cannot
// stall future automated triggers. At most one trigger sequence runs at
// a time; concurrent callers get ErrRunInFlight without any ledger
// write.
func (o *Orchestrator) Trigger(ctx context.Context, userID string, topic models.Topic, channel *models.Channel, automated bool) (TriggerResult, error) {
	if !o.busy.CompareAndSwap(false, true) {
		triggersRejected.Inc()
		return TriggerResult{}, ErrRunInFlight
	}
	defer o.busy.Store(false)
	defer o.advanceSchedule(context.WithoutCancel(ctx), userID)

	run := models.Run{
		ID:         uuid.NewString(),
		TopicID:    topic.ID,
		TopicTitle: topic.Title,
		Status:     models.RunStatusGenerating,
		StartedAt:  o.now(),
	}
	if err := o.store.CreateRun(ctx, userID, run); err != nil {
		return TriggerResult{}, fmt.Errorf("create run: %w", err)
	}
	if err := o.store.PruneRuns(ctx, userID, o.historyLimit); err != nil {
		o.logger.Printf("prune runs: %v", err)
	}

	profile, ok, err := o.store.GetProfile(ctx, userID)
	if err == nil && !ok {
		err = errors.New("business profile not configured")
	}
	if err != nil {
		return o.fail(ctx, run.ID, automated, fmt.Errorf("load profile: %w", err))
	}

	article, err := o.provider.GenerateArticle(ctx, profile, topic)
	if err != nil {
		return o.fail(ctx, run.ID, automated, fmt.Errorf("generate article: %w", err))
	}
	article = helpers.CleanArticle(article)

	destination := models.PreviewOnlyDestination
	if channel != nil && channel.Active() {
		started := o.now()
		err := o.dispatcher.Dispatch(ctx, *channel, article)
		dispatchSeconds.Observe(o.now().Sub(started).Seconds())
		if err != nil {
			return o.fail(ctx, run.ID, automated, err)
		}
		destination = channel.Name
		if destination == "" {
			destination = channel.EndpointURL
		}
	} else {
		o.storePreview(ctx, run.ID, article)
	}

	summary := article.Summary
	if err := o.store.FinishRun(ctx, run.ID, models.RunStatusPosted, &summary, &destination, nil); err != nil {
		return TriggerResult{}, fmt.Errorf("finish run: %w", err)
	}
	runsTotal.WithLabelValues(models.RunStatusPosted).Inc()
	return TriggerResult{
		RunID:       run.ID,
		Status:      models.RunStatusPosted,
		Summary:     summary,
		Destination: destination,
	}, nil
}

// fail writes the terminal failed state and returns the triggering
// error. Automated failures are only logged; manual callers surface the
// message to the operator.
func (o *Orchestrator) fail(ctx context.Context, runID string, automated bool, cause error) (TriggerResult, error) {
	msg := cause.Error()
	if err := o.store.FinishRun(ctx, runID, models.RunStatusFailed, nil, nil, &msg); err != nil {
		o.logger.Printf("finish run %s: %v", runID, err)
	}
	runsTotal.WithLabelValues(models.RunStatusFailed).Inc()
	if automated {
		o.logger.Printf("automated run %s failed: %v", runID, cause)
	}
	return TriggerResult{RunID: runID, Status: models.RunStatusFailed, Error: msg}, cause
}

// storePreview keeps the article body for later retrieval when no
// channel received it.
func (o *Orchestrator) storePreview(ctx context.Context, runID string, article models.Article) {
	if o.rdb == nil {
		return
	}
	payload, err := json.Marshal(article)
	if err != nil {
		o.logger.Printf("encode preview for run %s: %v", runID, err)
		return
	}
	if err := o.rdb.Set(ctx, PreviewKey(runID), payload, o.previewTTL).Err(); err != nil {
		o.logger.Printf("store preview for run %s: %v", runID, err)
	}
}

// advanceSchedule recomputes next_run_at from the user's policy. Errors
// are logged, never propagated: the run outcome is already terminal by
// the time this executes.
func (o *Orchestrator) advanceSchedule(ctx context.Context, userID string) {
	sched, ok, err := o.store.GetSchedule(ctx, userID)
	if err != nil {
		o.logger.Printf("load schedule: %v", err)
		return
	}
	if !ok {
		return
	}
	next, err := schedule.NextRun(schedule.Policy{
		Cadence:     sched.Cadence,
		PublishHour: sched.PublishHour,
		Timezone:    sched.Timezone,
	}, o.now())
	if err != nil {
		o.logger.Printf("compute next run: %v", err)
		return
	}
	if err := o.store.SetNextRun(ctx, userID, next); err != nil {
		o.logger.Printf("persist next run: %v", err)
	}
}
