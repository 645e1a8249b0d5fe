package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/contentpilot/contentpilot/models"
)

func mustTime(t *testing.T, value, tz string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load location %s: %v", tz, err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return ts
}

func TestNextRunDailyBeforeHour(t *testing.T) {
	now := mustTime(t, "2025-03-10 08:55", "America/New_York")
	got, err := NextRun(Policy{Cadence: models.CadenceDaily, PublishHour: 9, Timezone: "America/New_York"}, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := mustTime(t, "2025-03-10 09:00", "America/New_York")
	if !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestNextRunDailyAfterHour(t *testing.T) {
	now := mustTime(t, "2025-03-10 09:05", "America/New_York")
	got, err := NextRun(Policy{Cadence: models.CadenceDaily, PublishHour: 9, Timezone: "America/New_York"}, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := mustTime(t, "2025-03-11 09:00", "America/New_York")
	if !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestNextRunWeeklyElapsed(t *testing.T) {
	now := mustTime(t, "2025-03-10 10:00", "UTC")
	got, err := NextRun(Policy{Cadence: models.CadenceWeekly, PublishHour: 9, Timezone: "UTC"}, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := mustTime(t, "2025-03-17 09:00", "UTC")
	if !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestNextRunWeeklyStillAhead(t *testing.T) {
	now := mustTime(t, "2025-03-10 05:00", "UTC")
	got, err := NextRun(Policy{Cadence: models.CadenceWeekly, PublishHour: 9, Timezone: "UTC"}, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := mustTime(t, "2025-03-10 09:00", "UTC")
	if !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestNextRunMonthlyClampsDay(t *testing.T) {
	now := mustTime(t, "2025-01-31 12:00", "UTC")
	got, err := NextRun(Policy{Cadence: models.CadenceMonthly, PublishHour: 9, Timezone: "UTC"}, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := mustTime(t, "2025-02-28 09:00", "UTC")
	if !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestNextRunMonthlyDecemberWraps(t *testing.T) {
	now := mustTime(t, "2025-12-15 23:00", "UTC")
	got, err := NextRun(Policy{Cadence: models.CadenceMonthly, PublishHour: 9, Timezone: "UTC"}, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := mustTime(t, "2026-01-15 09:00", "UTC")
	if !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestNextRunAlwaysInFuture(t *testing.T) {
	cadences := []models.Cadence{models.CadenceDaily, models.CadenceWeekly, models.CadenceMonthly}
	instants := []string{"2025-06-01 00:00", "2025-06-01 08:59", "2025-06-01 09:00", "2025-06-01 23:59"}
	for _, cadence := range cadences {
		for _, at := range instants {
			now := mustTime(t, at, "UTC")
			got, err := NextRun(Policy{Cadence: cadence, PublishHour: 9, Timezone: "UTC"}, now)
			if err != nil {
				t.Fatalf("NextRun(%s, %s): %v", cadence, at, err)
			}
			if !got.After(now) {
				t.Fatalf("NextRun(%s, %s) = %s, not after now", cadence, at, got)
			}
		}
	}
}

func TestNextRunDeterministic(t *testing.T) {
	now := mustTime(t, "2025-06-01 10:00", "UTC")
	p := Policy{Cadence: models.CadenceWeekly, PublishHour: 9, Timezone: "UTC"}
	first, err := NextRun(p, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	second, err := NextRun(p, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("expected identical results, got %s and %s", first, second)
	}
}

func TestNextRunHourOutOfRange(t *testing.T) {
	_, err := NextRun(Policy{Cadence: models.CadenceDaily, PublishHour: 24, Timezone: "UTC"}, time.Now())
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	_, err = NextRun(Policy{Cadence: models.CadenceDaily, PublishHour: -1, Timezone: "UTC"}, time.Now())
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestNextRunBadTimezone(t *testing.T) {
	_, err := NextRun(Policy{Cadence: models.CadenceDaily, PublishHour: 9, Timezone: "Mars/Olympus"}, time.Now())
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestNextRunUnknownCadence(t *testing.T) {
	_, err := NextRun(Policy{Cadence: "fortnightly", PublishHour: 9, Timezone: "UTC"}, time.Now())
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}
