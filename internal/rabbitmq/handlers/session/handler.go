package session

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

const entityType = "session"

// Data is the study session snapshot carried by session lifecycle events.
type Data struct {
	ID        string   `json:"id" validate:"required"`
	Content   string   `json:"content"`
	Topics    []string `json:"topics"`
	StartTime string   `json:"startTime" validate:"required"` // RFC3339
	EndTime   string   `json:"endTime" validate:"required"`   // RFC3339
}

// LifecyclePayload is the body of session.created and session.finished.
type LifecyclePayload struct {
	UserID      string `json:"userId" validate:"required_without=DeviceToken"`
	DeviceToken string `json:"deviceToken" validate:"required_without=UserID"`
	SessionData Data   `json:"sessionData"`
}

type notificationService interface {
	ResolveUser(ctx context.Context, userID, deviceToken string) (model.User, error)
	ScheduleReminders(ctx context.Context, strategy retry.Strategy, userID, entityID, entityType string, snapshot model.EntitySnapshot, specs []reminder.Spec) (int, error)
}

// Handler consumes study session lifecycle events.
type Handler struct {
	service   notificationService
	validator *validator.Validate
	strategy  retry.Strategy
}

func NewHandler(s notificationService, v *validator.Validate, strategy retry.Strategy) *Handler {
	return &Handler{service: s, validator: v, strategy: strategy}
}

// HandleCreated schedules the reminder set for an ad-hoc study session.
func (h *Handler) HandleCreated(ctx context.Context, raw json.RawMessage) error {
	req, start, end, err := h.decode(raw)
	if err != nil {
		return err
	}

	specs := reminder.ForSession(start, end, time.Now())
	return h.schedule(ctx, req, specs)
}

// HandleFinished emits the immediate completion notice.
func (h *Handler) HandleFinished(ctx context.Context, raw json.RawMessage) error {
	req, _, _, err := h.decode(raw)
	if err != nil {
		return err
	}

	return h.schedule(ctx, req, reminder.ForSessionFinished(time.Now()))
}

func (h *Handler) decode(raw json.RawMessage) (LifecyclePayload, time.Time, time.Time, error) {
	var req LifecyclePayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, time.Time{}, time.Time{}, fmt.Errorf("%w: decode session payload: %v", consumer.ErrReject, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return req, time.Time{}, time.Time{}, fmt.Errorf("%w: validate session payload: %v", consumer.ErrReject, err)
	}

	start, err := payload.Instant(req.SessionData.StartTime)
	if err != nil {
		return req, time.Time{}, time.Time{}, fmt.Errorf("%w: session %s start: %v", consumer.ErrReject, req.SessionData.ID, err)
	}
	end, err := payload.Instant(req.SessionData.EndTime)
	if err != nil {
		return req, time.Time{}, time.Time{}, fmt.Errorf("%w: session %s end: %v", consumer.ErrReject, req.SessionData.ID, err)
	}

	return req, start, end, nil
}

func (h *Handler) schedule(ctx context.Context, req LifecyclePayload, specs []reminder.Spec) error {
	user, err := h.service.ResolveUser(ctx, req.UserID, req.DeviceToken)
	if err != nil {
		if errors.Is(err, notifsvc.ErrNoUserReference) {
			return fmt.Errorf("%w: session %s: %v", consumer.ErrReject, req.SessionData.ID, err)
		}
		return fmt.Errorf("resolve session owner: %w", err)
	}

	snapshot := model.EntitySnapshot{
		Content:   req.SessionData.Content,
		Topics:    req.SessionData.Topics,
		StartTime: req.SessionData.StartTime,
		EndTime:   req.SessionData.EndTime,
	}

	created, err := h.service.ScheduleReminders(ctx, h.strategy, user.ID, req.SessionData.ID, entityType, snapshot, specs)
	if err != nil {
		return fmt.Errorf("schedule session reminders: %w", err)
	}

	zlog.Logger.Info().
		Str("session_id", req.SessionData.ID).
		Str("user_id", user.ID).
		Int("reminders", created).
		Msg("scheduled session reminders")

	return nil
}
