package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/content"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/repository/notification"
	userrepo "github.com/edgargavioli/pi5-app-estudo-sub001/internal/repository/user"
	"github.com/edgargavioli/pi5-app-estudo-sub001/pkg/push"
)

//go:generate mockgen -source=scheduler.go -destination=../mocks/worker/mock.go -package=mocks

type notificationService interface {
	Due(ctx context.Context, now time.Time) ([]model.Notification, error)
	StatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	SetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status model.Status) error
}

type gateway interface {
	Send(ctx context.Context, deviceToken string, note push.Note, data map[string]string) error
}

// Scheduler is the delivery loop: on every tick it drains the due set and
// attempts delivery once per record, transitioning each to SENT or FAILED.
// Ticks run on a single goroutine, so two ticks never overlap and a slow
// batch simply delays the next poll.
type Scheduler struct {
	service     notificationService
	gateway     gateway
	interval    time.Duration
	sendTimeout time.Duration
	strategy    retry.Strategy
}

func NewScheduler(s notificationService, g gateway, interval, sendTimeout time.Duration, strategy retry.Strategy) *Scheduler {
	return &Scheduler{
		service:     s,
		gateway:     g,
		interval:    interval,
		sendTimeout: sendTimeout,
		strategy:    strategy,
	}
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	zlog.Logger.Info().Dur("interval", s.interval).Msg("delivery scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("delivery scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes the current due set. Each record's outcome is independent:
// a failure marks that record FAILED and moves on.
func (s *Scheduler) Tick(ctx context.Context) {
	due, err := s.service.Due(ctx, time.Now())
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to fetch due notifications")
		return
	}

	for _, n := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.deliver(ctx, n)
	}
}

func (s *Scheduler) deliver(ctx context.Context, n model.Notification) {
	// Optimistic check: FindDue only returns PENDING rows, but another
	// instance may have finalized the record since the query ran.
	if status, err := s.service.StatusByID(ctx, s.strategy, n.ID); err == nil && status.Terminal() {
		zlog.Logger.Warn().Str("id", n.ID.String()).Str("status", string(status)).Msg("record already finalized, skipping")
		return
	}

	recipient, err := s.service.UserByID(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			zlog.Logger.Warn().Str("id", n.ID.String()).Str("user_id", n.UserID).Msg("recipient not found")
			s.resolve(ctx, n.ID, model.StatusFailed)
			return
		}

		// Directory unavailable: leave the record PENDING for the next tick.
		zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to resolve recipient")
		return
	}

	title, body := n.EntityData.NotificationTitle, n.EntityData.NotificationBody
	if title == "" || body == "" {
		title, body = content.Render(n.Type, n.EntityData)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	err = s.gateway.Send(sendCtx, recipient.DeviceToken, push.Note{Title: title, Body: body}, map[string]string{
		"notificationId": n.ID.String(),
		"entityId":       n.EntityID,
		"entityType":     n.EntityType,
		"type":           string(n.Type),
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Str("type", string(n.Type)).Msg("delivery failed")
		s.resolve(ctx, n.ID, model.StatusFailed)
		return
	}

	zlog.Logger.Info().Str("id", n.ID.String()).Str("type", string(n.Type)).Msg("notification delivered")
	s.resolve(ctx, n.ID, model.StatusSent)
}

func (s *Scheduler) resolve(ctx context.Context, id uuid.UUID, status model.Status) {
	if err := s.service.SetStatus(ctx, s.strategy, id, status); err != nil {
		if errors.Is(err, notification.ErrTerminalState) {
			// Another actor already finalized the record. That breaks the
			// at-most-one-attempt contract and deserves a loud signal.
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("terminal state conflict")
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msgf("failed to set status=%s", status)
	}
}
