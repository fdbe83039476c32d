/*
Package presence tracks user online state from periodic client heartbeats.

Presence is computed, not stored: a heartbeat writes the user's last-seen
timestamp to Redis, and a user counts as online while that timestamp is
younger than the configured timeout. No sweep process ever has to flip an
online flag back to false, and a delivery path never consults presence.
*/
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTimeout is the window after the last heartbeat during which a user
// is still considered online. Clients send heartbeats roughly every 30s, so
// one missed beat keeps a user online and two drop them.
const DefaultTimeout = 60 * time.Second

const keyPrefix = "presence:"

// Status is one user's computed presence.
type Status struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen"`
}

// Tracker records heartbeats and answers presence queries.
type Tracker struct {
	rdb     *redis.Client
	timeout time.Duration
	now     func() time.Time
}

// NewTracker constructs a Tracker over the given Redis client. A timeout of
// zero falls back to DefaultTimeout.
func NewTracker(rdb *redis.Client, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Tracker{
		rdb:     rdb,
		timeout: timeout,
		now:     time.Now,
	}
}

// Heartbeat records that the user was seen now. The key carries a TTL well
// past the timeout so Redis reclaims entries for users who never return.
func (t *Tracker) Heartbeat(ctx context.Context, userID string) error {
	stamp := t.now().UTC().Format(time.RFC3339Nano)

	if err := t.rdb.Set(ctx, keyPrefix+userID, stamp, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("presence: record heartbeat: %w", err)
	}

	return nil
}

// Statuses returns the computed presence for each of the given users, in the
// same order. Users with no recorded heartbeat report offline with a nil
// LastSeen.
func (t *Tracker) Statuses(ctx context.Context, userIDs []string) ([]Status, error) {
	if len(userIDs) == 0 {
		return []Status{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = keyPrefix + id
	}

	values, err := t.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: fetch heartbeats: %w", err)
	}

	now := t.now()
	statuses := make([]Status, len(userIDs))
	for i, id := range userIDs {
		statuses[i] = Status{UserID: id}

		raw, ok := values[i].(string)
		if !ok {
			continue
		}

		lastSeen, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}

		statuses[i].LastSeen = &lastSeen
		statuses[i].IsOnline = OnlineWithin(lastSeen, now, t.timeout)
	}

	return statuses, nil
}

// OnlineWithin reports whether a last-seen timestamp still counts as online
// at the reference time.
func OnlineWithin(lastSeen, now time.Time, timeout time.Duration) bool {
	return now.Sub(lastSeen) < timeout
}
