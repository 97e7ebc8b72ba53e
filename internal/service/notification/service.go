package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/reminder"
	userrepo "github.com/edgargavioli/pi5-app-estudo-sub001/internal/repository/user"
)

// ErrNoUserReference is returned when a caller supplies neither a user id
// nor a device token that resolves to a known user.
var ErrNoUserReference = errors.New("no resolvable user reference")

//go:generate mockgen -source=service.go -destination=../../mocks/service/notification/mock.go -package=mocks

type notificationRepository interface {
	Create(context.Context, model.Notification) (model.Notification, error)
	FindDue(context.Context, time.Time) ([]model.Notification, error)
	UpdateStatus(context.Context, uuid.UUID, model.Status) error
	GetStatusByID(context.Context, uuid.UUID) (model.Status, error)
	DeleteByEntity(context.Context, string) (int64, error)
	DeleteTerminalBefore(context.Context, time.Time) (int64, error)
}

type userRepository interface {
	Upsert(context.Context, model.User) error
	GetByID(context.Context, string) (model.User, error)
	GetByDeviceToken(context.Context, string) (model.User, error)
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// Service orchestrates the notification store, the user directory, and the
// status cache. It is the single write path for notification records.
type Service struct {
	repo  notificationRepository
	users userRepository
	cache cache
}

func NewService(repo notificationRepository, users userRepository, cache cache) *Service {
	return &Service{repo: repo, users: users, cache: cache}
}

// RegisterDevice upserts a user into the device directory.
func (s *Service) RegisterDevice(ctx context.Context, userID, deviceToken string) error {
	if err := s.users.Upsert(ctx, model.User{ID: userID, DeviceToken: deviceToken}); err != nil {
		return fmt.Errorf("register device: %w", err)
	}

	return nil
}

// ResolveUser resolves the owning user for an inbound event: an explicit
// user id wins, a device token lookup is the fallback. ErrNoUserReference
// means the event cannot be attributed to anyone.
func (s *Service) ResolveUser(ctx context.Context, userID, deviceToken string) (model.User, error) {
	if userID != "" {
		u, err := s.users.GetByID(ctx, userID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, userrepo.ErrUserNotFound) {
			return model.User{}, fmt.Errorf("resolve user by id: %w", err)
		}
	}

	if deviceToken != "" {
		u, err := s.users.GetByDeviceToken(ctx, deviceToken)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, userrepo.ErrUserNotFound) {
			return model.User{}, fmt.Errorf("resolve user by device token: %w", err)
		}
	}

	return model.User{}, ErrNoUserReference
}

// UserByID resolves a delivery recipient.
func (s *Service) UserByID(ctx context.Context, id string) (model.User, error) {
	return s.users.GetByID(ctx, id)
}

// ScheduleReminders persists one notification record per reminder spec,
// sharing the same frozen entity snapshot. Creates are best-effort: a failure
// partway through returns the error along with the count already created, so
// the caller can request redelivery.
func (s *Service) ScheduleReminders(
	ctx context.Context,
	strategy retry.Strategy,
	userID, entityID, entityType string,
	snapshot model.EntitySnapshot,
	specs []reminder.Spec,
) (int, error) {
	created := 0
	for _, spec := range specs {
		n, err := s.repo.Create(ctx, model.Notification{
			UserID:       userID,
			Type:         spec.Type,
			EntityID:     entityID,
			EntityType:   entityType,
			EntityData:   snapshot,
			ScheduledFor: spec.ScheduledFor,
		})
		if err != nil {
			return created, fmt.Errorf("create %s reminder for %s %s: %w", spec.Type, entityType, entityID, err)
		}
		created++

		if err := s.cache.SetWithRetry(ctx, strategy, n.ID.String(), string(n.Status)); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to cache notification status")
		}
	}

	return created, nil
}

// InvalidateEntity removes every notification tied to a source entity.
func (s *Service) InvalidateEntity(ctx context.Context, entityID string) error {
	deleted, err := s.repo.DeleteByEntity(ctx, entityID)
	if err != nil {
		return fmt.Errorf("invalidate entity %s: %w", entityID, err)
	}

	zlog.Logger.Info().Str("entity_id", entityID).Int64("deleted", deleted).Msg("invalidated entity notifications")
	return nil
}

// Due returns the set of PENDING notifications eligible for delivery at now.
func (s *Service) Due(ctx context.Context, now time.Time) ([]model.Notification, error) {
	due, err := s.repo.FindDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find due notifications: %w", err)
	}

	return due, nil
}

// SetStatus transitions a notification and refreshes the cached status.
func (s *Service) SetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status model.Status) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}

	return nil
}

// StatusByID returns the notification status, cache-aside over the store.
func (s *Service) StatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error) {
	cached, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err == nil {
		return model.Status(cached), nil
	}
	if !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status from cache")
	}

	status, err := s.repo.GetStatusByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get notification status: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}

	return status, nil
}

// PurgeExpired removes terminal notifications older than the retention
// window and returns how many were dropped.
func (s *Service) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	purged, err := s.repo.DeleteTerminalBefore(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge expired notifications: %w", err)
	}

	return purged, nil
}
