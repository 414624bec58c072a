package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clinic-chat-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserDirectory resolves user ids to identity and display fields. The rows
// are owned by the account service; this view is read-only.
type UserDirectory interface {
	Get(ctx context.Context, userID int) (models.User, error)
	BulkGet(ctx context.Context, ids []int) ([]models.User, error)
}

// UserDirectoryRepo is a sqlx implementation of UserDirectory.
type UserDirectoryRepo struct {
	db *sqlx.DB
}

// NewUserDirectoryRepo constructs a UserDirectoryRepo.
func NewUserDirectoryRepo(db *sqlx.DB) *UserDirectoryRepo {
	return &UserDirectoryRepo{db: db}
}

// Get fetches one user.
func (r *UserDirectoryRepo) Get(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, display_name, image_path FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkGet fetches multiple users in one query. Unknown ids are omitted.
func (r *UserDirectoryRepo) BulkGet(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	id64s := make([]int64, 0, len(ids))
	for _, id := range ids {
		id64s = append(id64s, int64(id))
	}

	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, display_name, image_path FROM users WHERE id = ANY($1)`, pq.Array(id64s))
	return users, err
}
