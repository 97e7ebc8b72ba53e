package streak

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
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/reminder"
	notifsvc "github.com/edgargavioli/pi5-app-estudo-sub001/internal/service/notification"
)

const entityType = "streak"

// Data is the streak snapshot carried by streak.created.
type Data struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name"`
	CurrentCount int    `json:"currentCount"`
}

// CreatedPayload is the body of streak.created.
type CreatedPayload struct {
	UserID      string `json:"userId" validate:"required_without=DeviceToken"`
	DeviceToken string `json:"deviceToken" validate:"required_without=UserID"`
	StreakData  Data   `json:"streakData"`
}

type notificationService interface {
	ResolveUser(ctx context.Context, userID, deviceToken string) (model.User, error)
	ScheduleReminders(ctx context.Context, strategy retry.Strategy, userID, entityID, entityType string, snapshot model.EntitySnapshot, specs []reminder.Spec) (int, error)
}

// Handler consumes streak-at-risk events.
type Handler struct {
	service   notificationService
	validator *validator.Validate
	strategy  retry.Strategy
}

func NewHandler(s notificationService, v *validator.Validate, strategy retry.Strategy) *Handler {
	return &Handler{service: s, validator: v, strategy: strategy}
}

// HandleCreated schedules the single 20:00 streak warning.
func (h *Handler) HandleCreated(ctx context.Context, raw json.RawMessage) error {
	var req CreatedPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: decode streak payload: %v", consumer.ErrReject, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: validate streak payload: %v", consumer.ErrReject, err)
	}

	user, err := h.service.ResolveUser(ctx, req.UserID, req.DeviceToken)
	if err != nil {
		if errors.Is(err, notifsvc.ErrNoUserReference) {
			return fmt.Errorf("%w: streak %s: %v", consumer.ErrReject, req.StreakData.ID, err)
		}
		return fmt.Errorf("resolve streak owner: %w", err)
	}

	specs := reminder.ForStreak(time.Now())
	snapshot := model.EntitySnapshot{
		Name:         req.StreakData.Name,
		CurrentCount: req.StreakData.CurrentCount,
	}

	created, err := h.service.ScheduleReminders(ctx, h.strategy, user.ID, req.StreakData.ID, entityType, snapshot, specs)
	if err != nil {
		return fmt.Errorf("schedule streak warning: %w", err)
	}

	zlog.Logger.Info().
		Str("streak_id", req.StreakData.ID).
		Str("user_id", user.ID).
		Int("reminders", created).
		Msg("scheduled streak warning")

	return nil
}
