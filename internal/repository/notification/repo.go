package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrMissingFields        = errors.New("notification is missing required fields")

	// ErrTerminalState signals an attempt to move a record out of SENT or
	// FAILED. That is a contract violation by the caller, not a storage
	// failure, and must surface loudly.
	ErrTerminalState = errors.New("notification already in a terminal state")
)

// Repository provides access to the notifications table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new notification. Status defaults to PENDING and the id
// and bookkeeping timestamps are assigned by the database. ScheduledFor is
// written once here and never updated afterwards.
func (r *Repository) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.UserID == "" || n.Type == "" || n.ScheduledFor.IsZero() {
		return model.Notification{}, ErrMissingFields
	}

	query := `
		INSERT INTO notifications (
		    user_id, type, entity_id, entity_type, entity_data, scheduled_for, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at;
    `

	n.Status = model.StatusPending
	err := r.db.Master.QueryRowContext(
		ctx, query, n.UserID, n.Type, n.EntityID, n.EntityType, n.EntityData, n.ScheduledFor, n.Status,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	return n, nil
}

// FindDue returns all PENDING notifications whose scheduled_for has passed.
// No ordering is guaranteed.
func (r *Repository) FindDue(ctx context.Context, now time.Time) ([]model.Notification, error) {
	query := `
		SELECT id, user_id, type, entity_id, entity_type, entity_data, scheduled_for, status, created_at, updated_at
		FROM notifications
		WHERE status = $1 AND scheduled_for <= $2;
    `

	rows, err := r.db.QueryContext(ctx, query, model.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find due notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.EntityID, &n.EntityType,
			&n.EntityData, &n.ScheduledFor, &n.Status, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// UpdateStatus transitions a notification to the given status. Re-applying
// the same terminal status is a no-op; moving from one terminal status to a
// different one returns ErrTerminalState.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE id = $2 AND (status = $3 OR status = $1);
    `

	res, err := r.db.ExecContext(ctx, query, status, id, model.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows > 0 {
		return nil
	}

	// Nothing matched: the record is either missing or sitting in a
	// different terminal state.
	current, err := r.GetStatusByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Terminal() {
		return fmt.Errorf("%w: %s -> %s for %s", ErrTerminalState, current, status, id)
	}

	return ErrNotificationNotFound
}

// GetStatusByID retrieves the status of a notification by its ID.
func (r *Repository) GetStatusByID(ctx context.Context, id uuid.UUID) (model.Status, error) {
	query := `
		SELECT status
		FROM notifications
		WHERE id = $1;
    `

	var status model.Status
	err := r.db.Master.QueryRowContext(ctx, query, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotificationNotFound
		}

		return "", fmt.Errorf("failed to get notification status: %w", err)
	}

	return status, nil
}

// DeleteByEntity removes every notification tied to a source entity. Used
// when the entity is edited or deleted upstream.
func (r *Repository) DeleteByEntity(ctx context.Context, entityID string) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE entity_id = $1;
    `

	res, err := r.db.ExecContext(ctx, query, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications for entity %s: %w", entityID, err)
	}

	rows, _ := res.RowsAffected()
	return rows, nil
}

// DeleteTerminalBefore removes SENT and FAILED notifications last updated
// before the cutoff. Retention housekeeping only; PENDING rows are never
// touched.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE status IN ($1, $2) AND updated_at < $3;
    `

	res, err := r.db.ExecContext(ctx, query, model.StatusSent, model.StatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal notifications: %w", err)
	}

	rows, _ := res.RowsAffected()
	return rows, nil
}
