package exam

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

const entityType = "exam"

// Data is the exam snapshot carried by lifecycle events.
type Data struct {
	ID       string `json:"id" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Date     string `json:"date" validate:"required"` // 2006-01-02
	Time     string `json:"time"`                     // 15:04, optional
	Location string `json:"location"`
}

// LifecyclePayload is the body of exam.created and exam.updated.
type LifecyclePayload struct {
	UserID      string `json:"userId" validate:"required_without=DeviceToken"`
	DeviceToken string `json:"deviceToken" validate:"required_without=UserID"`
	ExamData    Data   `json:"examData"`
}

// DeletedPayload is the body of exam.deleted.
type DeletedPayload struct {
	ExamID string `json:"examId" validate:"required"`
}

//go:generate mockgen -source=handler.go -destination=../../../mocks/rabbitmq/handlers/exam/mock.go -package=mocks
type notificationService interface {
	ResolveUser(ctx context.Context, userID, deviceToken string) (model.User, error)
	ScheduleReminders(ctx context.Context, strategy retry.Strategy, userID, entityID, entityType string, snapshot model.EntitySnapshot, specs []reminder.Spec) (int, error)
	InvalidateEntity(ctx context.Context, entityID string) error
}

// Handler consumes exam lifecycle events.
type Handler struct {
	service   notificationService
	validator *validator.Validate
	strategy  retry.Strategy
}

func NewHandler(s notificationService, v *validator.Validate, strategy retry.Strategy) *Handler {
	return &Handler{service: s, validator: v, strategy: strategy}
}

// HandleCreated schedules the full exam reminder set for a new exam.
func (h *Handler) HandleCreated(ctx context.Context, raw json.RawMessage) error {
	req, examAt, err := h.decode(raw)
	if err != nil {
		return err
	}

	return h.schedule(ctx, req, examAt)
}

// HandleUpdated invalidates every reminder of the old snapshot and schedules
// a fresh set from the new one.
func (h *Handler) HandleUpdated(ctx context.Context, raw json.RawMessage) error {
	req, examAt, err := h.decode(raw)
	if err != nil {
		return err
	}

	if err := h.service.InvalidateEntity(ctx, req.ExamData.ID); err != nil {
		return fmt.Errorf("invalidate exam %s: %w", req.ExamData.ID, err)
	}

	return h.schedule(ctx, req, examAt)
}

// HandleDeleted drops every reminder tied to the exam.
func (h *Handler) HandleDeleted(ctx context.Context, raw json.RawMessage) error {
	var req DeletedPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: decode exam.deleted payload: %v", consumer.ErrReject, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: validate exam.deleted payload: %v", consumer.ErrReject, err)
	}

	if err := h.service.InvalidateEntity(ctx, req.ExamID); err != nil {
		return fmt.Errorf("invalidate exam %s: %w", req.ExamID, err)
	}

	return nil
}

func (h *Handler) decode(raw json.RawMessage) (LifecyclePayload, time.Time, error) {
	var req LifecyclePayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, time.Time{}, fmt.Errorf("%w: decode exam payload: %v", consumer.ErrReject, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return req, time.Time{}, fmt.Errorf("%w: validate exam payload: %v", consumer.ErrReject, err)
	}

	examAt, err := payload.DateTime(req.ExamData.Date, req.ExamData.Time)
	if err != nil {
		return req, time.Time{}, fmt.Errorf("%w: exam %s: %v", consumer.ErrReject, req.ExamData.ID, err)
	}

	return req, examAt, nil
}

func (h *Handler) schedule(ctx context.Context, req LifecyclePayload, examAt time.Time) error {
	user, err := h.service.ResolveUser(ctx, req.UserID, req.DeviceToken)
	if err != nil {
		if errors.Is(err, notifsvc.ErrNoUserReference) {
			return fmt.Errorf("%w: exam %s: %v", consumer.ErrReject, req.ExamData.ID, err)
		}
		return fmt.Errorf("resolve exam owner: %w", err)
	}

	specs := reminder.ForExam(examAt, time.Now())
	snapshot := model.EntitySnapshot{
		Title:    req.ExamData.Title,
		Date:     req.ExamData.Date,
		Time:     req.ExamData.Time,
		Location: req.ExamData.Location,
	}

	created, err := h.service.ScheduleReminders(ctx, h.strategy, user.ID, req.ExamData.ID, entityType, snapshot, specs)
	if err != nil {
		return fmt.Errorf("schedule exam reminders: %w", err)
	}

	zlog.Logger.Info().
		Str("exam_id", req.ExamData.ID).
		Str("user_id", user.ID).
		Int("reminders", created).
		Msg("scheduled exam reminders")

	return nil
}
