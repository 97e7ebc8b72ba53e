package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
)

func TestRender_CoversClosedTypeSet(t *testing.T) {
	snap := model.EntitySnapshot{
		Title:        "Linear Algebra",
		Date:         "2026-03-12",
		Time:         "14:30",
		Location:     "Room 301",
		Topics:       []string{"matrices", "eigenvalues"},
		Name:         "Math streak",
		CurrentCount: 12,
	}

	all := []model.Type{
		model.TypeExamCreated, model.TypeExamWeekReminder, model.TypeExam3DayReminder,
		model.TypeExam1DayReminder, model.TypeExamToday, model.TypeExam1Hour,
		model.TypeEventCreated, model.TypeEvent3DayReminder, model.TypeEventToday,
		model.TypeSessionCreated, model.TypeSessionPrepare, model.TypeSessionFinalWarning,
		model.TypeSessionStart, model.TypeSessionMidpointBreak, model.TypeSessionFinished,
		model.TypeStreakWarning, model.TypeStreakExpired,
	}

	for _, typ := range all {
		title, body := Render(typ, snap)
		assert.NotEmpty(t, title, "title for %s", typ)
		assert.NotEmpty(t, body, "body for %s", typ)
		assert.NotEqual(t, fallbackTitle, title, "type %s must not fall through to the default arm", typ)
	}
}

func TestRender_UnknownTypeFallsBack(t *testing.T) {
	title, body := Render(model.Type("SOMETHING_ELSE"), model.EntitySnapshot{})
	assert.Equal(t, "Notification", title)
	assert.Equal(t, "You have a new notification", body)
}

func TestRender_DegradesOnMissingFields(t *testing.T) {
	// Every render must succeed on an empty snapshot.
	title, body := Render(model.TypeExamToday, model.EntitySnapshot{})
	assert.Equal(t, "Exam today", title)
	assert.Contains(t, body, "(untitled)")
	assert.NotContains(t, body, " at ")

	_, body = Render(model.TypeExamCreated, model.EntitySnapshot{Title: "Physics", Date: "2026-04-01"})
	assert.Contains(t, body, "2026-04-01")

	_, body = Render(model.TypeStreakWarning, model.EntitySnapshot{})
	assert.Equal(t, "Study today to keep your streak alive!", body)
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		target time.Time
		want   int
	}{
		{"exact days", now.AddDate(0, 0, 3), 3},
		{"partial day rounds up", now.Add(25 * time.Hour), 2},
		{"under a day rounds to one", now.Add(2 * time.Hour), 1},
		{"same instant", now, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(tt.target, now))
		})
	}
}

func TestHoursUntilMidnight(t *testing.T) {
	now := time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)
	assert.Equal(t, 2, HoursUntilMidnight(now))

	now = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 24, HoursUntilMidnight(now))
}
