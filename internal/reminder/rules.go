// Package reminder holds the pure rule engine that expands a domain event
// into time-offset reminder specifications. Functions here have no side
// effects and no clock of their own: the caller supplies the processing
// instant, which makes the offset tables directly testable.
package reminder

import (
	"time"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
)

// Spec is a single reminder candidate produced by the rule engine before
// persistence: what kind of reminder, and when it becomes due.
type Spec struct {
	Type         model.Type
	ScheduledFor time.Time
}

// at returns the given day at hour:min in the day's location.
func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
}

// keepFuture appends to specs every candidate whose instant is strictly
// after now. Past-due offsets are dropped one by one, never back-filled.
func keepFuture(specs []Spec, now time.Time, candidates ...Spec) []Spec {
	for _, c := range candidates {
		if c.ScheduledFor.After(now) {
			specs = append(specs, c)
		}
	}
	return specs
}

// ForExam expands an exam reference instant into the exam offset table:
// an immediate creation notice, then 7 days before, 3 days before, 20:00 the
// previous day, 07:00 the day of, and one hour before the exact time.
func ForExam(examAt, now time.Time) []Spec {
	specs := []Spec{{Type: model.TypeExamCreated, ScheduledFor: now}}

	return keepFuture(specs, now,
		Spec{Type: model.TypeExamWeekReminder, ScheduledFor: examAt.AddDate(0, 0, -7)},
		Spec{Type: model.TypeExam3DayReminder, ScheduledFor: examAt.AddDate(0, 0, -3)},
		Spec{Type: model.TypeExam1DayReminder, ScheduledFor: at(examAt.AddDate(0, 0, -1), 20, 0)},
		Spec{Type: model.TypeExamToday, ScheduledFor: at(examAt, 7, 0)},
		Spec{Type: model.TypeExam1Hour, ScheduledFor: examAt.Add(-time.Hour)},
	)
}

// ForEvent expands a calendar event instant: an immediate creation notice,
// 3 days before, and 08:00 the day of.
func ForEvent(eventAt, now time.Time) []Spec {
	specs := []Spec{{Type: model.TypeEventCreated, ScheduledFor: now}}

	return keepFuture(specs, now,
		Spec{Type: model.TypeEvent3DayReminder, ScheduledFor: eventAt.AddDate(0, 0, -3)},
		Spec{Type: model.TypeEventToday, ScheduledFor: at(eventAt, 8, 0)},
	)
}

// ForSession expands a study session with a known start and end.
//
// Beyond the immediate creation notice, reminders are only scheduled when the
// start is still in the future: a prepare reminder (3h ahead for sessions of
// an hour or more, 30min otherwise, and only when that still leaves margin),
// a final warning 15 minutes ahead (only when more than 15 minutes remain),
// a reminder at the exact start, and a midpoint break for sessions longer
// than two hours.
func ForSession(start, end, now time.Time) []Spec {
	specs := []Spec{{Type: model.TypeSessionCreated, ScheduledFor: now}}

	if !start.After(now) {
		return specs
	}

	duration := end.Sub(start)

	prep := 30 * time.Minute
	if duration >= time.Hour {
		prep = 3 * time.Hour
	}
	specs = keepFuture(specs, now,
		Spec{Type: model.TypeSessionPrepare, ScheduledFor: start.Add(-prep)},
		Spec{Type: model.TypeSessionFinalWarning, ScheduledFor: start.Add(-15 * time.Minute)},
	)

	specs = append(specs, Spec{Type: model.TypeSessionStart, ScheduledFor: start})

	if duration > 2*time.Hour {
		specs = append(specs, Spec{Type: model.TypeSessionMidpointBreak, ScheduledFor: start.Add(duration / 2)})
	}

	return specs
}

// ForSessionFinished produces the single immediate notice for a completed
// session.
func ForSessionFinished(now time.Time) []Spec {
	return []Spec{{Type: model.TypeSessionFinished, ScheduledFor: now}}
}

// ForStreak produces the single streak warning at 20:00 local time today, or
// tomorrow if today's 20:00 has already passed. The result is always strictly
// in the future.
func ForStreak(now time.Time) []Spec {
	warnAt := at(now, 20, 0)
	if !warnAt.After(now) {
		warnAt = warnAt.AddDate(0, 0, 1)
	}
	return []Spec{{Type: model.TypeStreakWarning, ScheduledFor: warnAt}}
}
