package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"chatwire/internal/app/user"
)

// GetUser fetches a user's display fields by id.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	id, err := parseID(userID)
	if err != nil {
		return user.User{}, err
	}

	var u user.User
	err = s.pool.QueryRow(ctx, `
		SELECT id::text, nickname, avatar_url, role
		FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Nickname, &u.Avatar, &u.Role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("store: get user: %w", err)
	}

	return u, nil
}
