package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/consumer"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/handlers/payload"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/reminder"
	notifsvc "github.com/edgargavioli/pi5-app-estudo-sub001/internal/service/notification"
)

const entityType = "event"

// Data is the calendar event snapshot carried by event.created.
type Data struct {
	ID       string `json:"id" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Date     string `json:"date" validate:"required"` // 2006-01-02
	Time     string `json:"time"`                     // 15:04, optional
	Location string `json:"location"`
}

// CreatedPayload is the body of event.created.
type CreatedPayload struct {
	UserID      string `json:"userId" validate:"required_without=DeviceToken"`
	DeviceToken string `json:"deviceToken" validate:"required_without=UserID"`
	EventData   Data   `json:"eventData"`
}

type notificationService interface {
	ResolveUser(ctx context.Context, userID, deviceToken string) (model.User, error)
	ScheduleReminders(ctx context.Context, strategy retry.Strategy, userID, entityID, entityType string, snapshot model.EntitySnapshot, specs []reminder.Spec) (int, error)
}

// Handler consumes generic calendar event messages.
type Handler struct {
	service   notificationService
	validator *validator.Validate
	strategy  retry.Strategy
}

func NewHandler(s notificationService, v *validator.Validate, strategy retry.Strategy) *Handler {
	return &Handler{service: s, validator: v, strategy: strategy}
}

// HandleCreated schedules the calendar event reminder set.
func (h *Handler) HandleCreated(ctx context.Context, raw json.RawMessage) error {
	var req CreatedPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: decode event payload: %v", consumer.ErrReject, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: validate event payload: %v", consumer.ErrReject, err)
	}

	eventAt, err := payload.DateTime(req.EventData.Date, req.EventData.Time)
	if err != nil {
		return fmt.Errorf("%w: event %s: %v", consumer.ErrReject, req.EventData.ID, err)
	}

	user, err := h.service.ResolveUser(ctx, req.UserID, req.DeviceToken)
	if err != nil {
		if errors.Is(err, notifsvc.ErrNoUserReference) {
			return fmt.Errorf("%w: event %s: %v", consumer.ErrReject, req.EventData.ID, err)
		}
		return fmt.Errorf("resolve event owner: %w", err)
	}

	specs := reminder.ForEvent(eventAt, time.Now())
	snapshot := model.EntitySnapshot{
		Title:    req.EventData.Title,
		Date:     req.EventData.Date,
		Time:     req.EventData.Time,
		Location: req.EventData.Location,
	}

	created, err := h.service.ScheduleReminders(ctx, h.strategy, user.ID, req.EventData.ID, entityType, snapshot, specs)
	if err != nil {
		return fmt.Errorf("schedule event reminders: %w", err)
	}

	zlog.Logger.Info().
		Str("event_id", req.EventData.ID).
		Str("user_id", user.ID).
		Int("reminders", created).
		Msg("scheduled event reminders")

	return nil
}
