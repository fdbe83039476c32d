/*
Package store implements persistence for users, rooms, conversations, and
messages on PostgreSQL via pgx. The message tables form an opaque ordered
store keyed by room or conversation, with insertion-ordered retrieval; the
rest backs the HTTP collaborator surfaces and the join authorizer.
*/
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatwire/internal/app/chat"
	"chatwire/internal/pkg/logx"
)

// Sentinel errors returned by store operations. Handlers map these onto
// application error codes.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrInvalidID = errors.New("store: invalid id")
	ErrBanned    = errors.New("store: user is banned from the room")
)

// Store bundles all query methods over a shared connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store over the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// parseID validates a client-supplied identifier before it reaches a query.
func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return parsed, nil
}

// uuidString renders a non-null pgtype.UUID in canonical form.
func uuidString(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}

// CanJoin is the membership-checked join authorizer wired into the Hub: a
// connection may subscribe to a room channel only as an unbanned member, and
// to a conversation channel only as a member. Store failures deny the join;
// the client can retry once the store recovers.
func (s *Store) CanJoin(ctx context.Context, userID string, ch chat.Channel) bool {
	var (
		allowed bool
		err     error
	)

	switch {
	case ch.IsRoom():
		allowed, err = s.CanAccessRoom(ctx, ch.ScopeID(), userID)
	case ch.IsConversation():
		allowed, err = s.IsConversationMember(ctx, ch.ScopeID(), userID)
	default:
		return false
	}

	if err != nil {
		if !errors.Is(err, ErrInvalidID) {
			logx.Error(err, "Join authorization check failed", "channel", string(ch), "user_id", userID)
		}
		return false
	}

	return allowed
}
