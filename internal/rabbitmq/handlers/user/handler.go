package user

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/consumer"
)

// CreatedPayload is the body of user.created.
type CreatedPayload struct {
	UserID      string `json:"userId" validate:"required"`
	DeviceToken string `json:"deviceToken" validate:"required"`
}

type notificationService interface {
	RegisterDevice(ctx context.Context, userID, deviceToken string) error
}

// Handler consumes user registration events. No reminders are scheduled;
// the only side effect is the directory upsert.
type Handler struct {
	service   notificationService
	validator *validator.Validate
}

func NewHandler(s notificationService, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

// HandleCreated upserts the user into the device directory.
func (h *Handler) HandleCreated(ctx context.Context, raw json.RawMessage) error {
	var req CreatedPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: decode user payload: %v", consumer.ErrReject, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: validate user payload: %v", consumer.ErrReject, err)
	}

	if err := h.service.RegisterDevice(ctx, req.UserID, req.DeviceToken); err != nil {
		return fmt.Errorf("register device: %w", err)
	}

	zlog.Logger.Info().Str("user_id", req.UserID).Msg("registered user device")
	return nil
}
