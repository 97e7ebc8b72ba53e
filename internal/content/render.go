// Package content turns a notification type and its entity snapshot into the
// title and body shown to the user.
package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
)

const (
	fallbackTitle = "Notification"
	fallbackBody  = "You have a new notification"
)

// Render produces the push title and body for a notification. It is total
// over the closed type set: unrecognized types get a generic fallback, and a
// snapshot with missing optional fields renders a degraded but valid string
// rather than failing.
func Render(t model.Type, snap model.EntitySnapshot) (title, body string) {
	switch t {
	case model.TypeExamCreated:
		return "Exam scheduled", fmt.Sprintf("Your exam %s has been scheduled for %s", quoted(snap.Title), when(snap))
	case model.TypeExamWeekReminder:
		return "Exam in one week", fmt.Sprintf("Your exam %s is one week away, on %s", quoted(snap.Title), when(snap))
	case model.TypeExam3DayReminder:
		return "Exam in 3 days", fmt.Sprintf("Only 3 days left until your exam %s on %s", quoted(snap.Title), when(snap))
	case model.TypeExam1DayReminder:
		return "Exam tomorrow", fmt.Sprintf("Your exam %s is tomorrow. Time for a final review!", quoted(snap.Title))
	case model.TypeExamToday:
		return "Exam today", fmt.Sprintf("Your exam %s is today%s. Good luck!", quoted(snap.Title), atTime(snap))
	case model.TypeExam1Hour:
		return "Exam in 1 hour", fmt.Sprintf("Your exam %s starts in one hour%s", quoted(snap.Title), atPlace(snap))

	case model.TypeEventCreated:
		return "Event scheduled", fmt.Sprintf("%s has been added to your calendar for %s", titled(snap, "An event"), when(snap))
	case model.TypeEvent3DayReminder:
		return "Event in 3 days", fmt.Sprintf("%s is coming up in 3 days, on %s", titled(snap, "An event"), when(snap))
	case model.TypeEventToday:
		return "Event today", fmt.Sprintf("%s is today%s", titled(snap, "An event"), atTime(snap))

	case model.TypeSessionCreated:
		return "Study session scheduled", fmt.Sprintf("Your study session%s has been scheduled", onTopics(snap))
	case model.TypeSessionPrepare:
		return "Get ready to study", fmt.Sprintf("Your study session%s starts soon. Time to prepare your materials", onTopics(snap))
	case model.TypeSessionFinalWarning:
		return "Study session in 15 minutes", fmt.Sprintf("Your study session%s starts in 15 minutes", onTopics(snap))
	case model.TypeSessionStart:
		return "Study session starting", fmt.Sprintf("Your study session%s starts now", onTopics(snap))
	case model.TypeSessionMidpointBreak:
		return "Break time", "You are halfway through your session. Take a short break!"
	case model.TypeSessionFinished:
		return "Study session finished", fmt.Sprintf("Well done! You completed your study session%s", onTopics(snap))

	case model.TypeStreakWarning:
		return "Your streak is at risk", streakBody(snap, "Study today to keep your %d-day streak %s alive!", "Study today to keep your streak alive!")
	case model.TypeStreakExpired:
		return "Streak lost", streakBody(snap, "Your %d-day streak %s has expired. Start a new one today!", "Your streak has expired. Start a new one today!")

	default:
		return fallbackTitle, fallbackBody
	}
}

// DaysUntil returns the number of days until target, rounded up: any partial
// day counts as a full one.
func DaysUntil(target, now time.Time) int {
	d := target.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// HoursUntilMidnight returns the whole hours remaining until local midnight.
func HoursUntilMidnight(now time.Time) int {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return int(midnight.Sub(now) / time.Hour)
}

func quoted(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return fmt.Sprintf("%q", title)
}

func titled(snap model.EntitySnapshot, fallback string) string {
	if snap.Title == "" {
		return fallback
	}
	return fmt.Sprintf("%q", snap.Title)
}

// when renders "date at time", degrading to just the date or a generic
// phrase when fields are absent.
func when(snap model.EntitySnapshot) string {
	switch {
	case snap.Date != "" && snap.Time != "":
		return fmt.Sprintf("%s at %s", snap.Date, snap.Time)
	case snap.Date != "":
		return snap.Date
	default:
		return "the scheduled date"
	}
}

func atTime(snap model.EntitySnapshot) string {
	if snap.Time == "" {
		return ""
	}
	return " at " + snap.Time
}

func atPlace(snap model.EntitySnapshot) string {
	if snap.Location == "" {
		return ""
	}
	return " at " + snap.Location
}

func onTopics(snap model.EntitySnapshot) string {
	if len(snap.Topics) == 0 {
		return ""
	}
	return " on " + strings.Join(snap.Topics, ", ")
}

func streakBody(snap model.EntitySnapshot, withCount, without string) string {
	if snap.CurrentCount > 0 {
		name := snap.Name
		if name == "" {
			name = "streak"
		}
		return fmt.Sprintf(withCount, snap.CurrentCount, fmt.Sprintf("%q", name))
	}
	return without
}
