package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

// Repository provides access to the user device directory.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new user directory repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Upsert registers a user with their device token, replacing any token
// already stored for the same user.
func (r *Repository) Upsert(ctx context.Context, u model.User) error {
	query := `
		INSERT INTO users (id, device_token)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET device_token = EXCLUDED.device_token;
    `

	if _, err := r.db.ExecContext(ctx, query, u.ID, u.DeviceToken); err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}

	return nil
}

// GetByID resolves a user by their identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (model.User, error) {
	query := `
		SELECT id, device_token
		FROM users
		WHERE id = $1;
    `

	return r.get(ctx, query, id)
}

// GetByDeviceToken resolves a user by an installed device token.
func (r *Repository) GetByDeviceToken(ctx context.Context, token string) (model.User, error) {
	query := `
		SELECT id, device_token
		FROM users
		WHERE device_token = $1;
    `

	return r.get(ctx, query, token)
}

func (r *Repository) get(ctx context.Context, query, arg string) (model.User, error) {
	var u model.User
	err := r.db.Master.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.DeviceToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}

		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}
