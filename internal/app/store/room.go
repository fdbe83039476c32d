package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Room member roles. Room-level moderation is separate from the global user
// role carried in the credential.
const (
	RoomRoleMember    = "member"
	RoomRoleModerator = "moderator"
	RoomRoleAdmin     = "admin"
)

// Room is a named channel with persistent membership and moderation roles.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateRoom inserts a room and enrolls the creator as its admin.
func (s *Store) CreateRoom(ctx context.Context, name, creatorID string) (Room, error) {
	creator, err := parseID(creatorID)
	if err != nil {
		return Room{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Room{}, fmt.Errorf("store: begin create room: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		room      Room
		createdAt pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		INSERT INTO rooms (name, created_by)
		VALUES ($1, $2)
		RETURNING id::text, name, created_by::text, created_at`,
		name, creator,
	).Scan(&room.ID, &room.Name, &room.CreatedBy, &createdAt)
	if err != nil {
		return Room{}, fmt.Errorf("store: insert room: %w", err)
	}
	room.CreatedAt = createdAt.Time

	_, err = tx.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id, role)
		VALUES ($1, $2, $3)`,
		room.ID, creator, RoomRoleAdmin,
	)
	if err != nil {
		return Room{}, fmt.Errorf("store: insert room creator: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Room{}, fmt.Errorf("store: commit create room: %w", err)
	}

	return room, nil
}

// GetRoom fetches a room by id.
func (s *Store) GetRoom(ctx context.Context, roomID string) (Room, error) {
	id, err := parseID(roomID)
	if err != nil {
		return Room{}, err
	}

	var (
		room      Room
		createdAt pgtype.Timestamptz
	)
	err = s.pool.QueryRow(ctx, `
		SELECT id::text, name, created_by::text, created_at
		FROM rooms WHERE id = $1`,
		id,
	).Scan(&room.ID, &room.Name, &room.CreatedBy, &createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("store: get room: %w", err)
	}

	room.CreatedAt = createdAt.Time
	return room, nil
}

// JoinRoom enrolls the user as a member. Joining is idempotent; a banned
// membership row blocks re-entry.
func (s *Store) JoinRoom(ctx context.Context, roomID, userID string) error {
	rID, err := parseID(roomID)
	if err != nil {
		return err
	}
	uID, err := parseID(userID)
	if err != nil {
		return err
	}

	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return err
	}

	var banned bool
	err = s.pool.QueryRow(ctx, `
		SELECT banned FROM room_members
		WHERE room_id = $1 AND user_id = $2`,
		rID, uID,
	).Scan(&banned)
	switch {
	case err == pgx.ErrNoRows:
		// not yet a member
	case err != nil:
		return fmt.Errorf("store: join room: %w", err)
	case banned:
		return ErrBanned
	default:
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING`,
		rID, uID,
	)
	if err != nil {
		return fmt.Errorf("store: join room: %w", err)
	}

	return nil
}

// LeaveRoom drops the user's membership. Banned rows are kept so the ban
// survives leave/rejoin.
func (s *Store) LeaveRoom(ctx context.Context, roomID, userID string) error {
	rID, err := parseID(roomID)
	if err != nil {
		return err
	}
	uID, err := parseID(userID)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		DELETE FROM room_members
		WHERE room_id = $1 AND user_id = $2 AND NOT banned`,
		rID, uID,
	)
	if err != nil {
		return fmt.Errorf("store: leave room: %w", err)
	}

	return nil
}

// CanAccessRoom reports whether the user is an unbanned member of the room.
func (s *Store) CanAccessRoom(ctx context.Context, roomID, userID string) (bool, error) {
	rID, err := parseID(roomID)
	if err != nil {
		return false, err
	}
	uID, err := parseID(userID)
	if err != nil {
		return false, err
	}

	var allowed bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM room_members
			WHERE room_id = $1 AND user_id = $2 AND NOT banned
		)`,
		rID, uID,
	).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("store: room access: %w", err)
	}

	return allowed, nil
}

// SetRoomBan flips a member's banned flag. Banning a non-member inserts a
// banned membership row so the ban holds if they later try to join.
func (s *Store) SetRoomBan(ctx context.Context, roomID, userID string, banned bool) error {
	rID, err := parseID(roomID)
	if err != nil {
		return err
	}
	uID, err := parseID(userID)
	if err != nil {
		return err
	}

	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id, banned)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO UPDATE SET banned = $3`,
		rID, uID, banned,
	)
	if err != nil {
		return fmt.Errorf("store: set room ban: %w", err)
	}

	return nil
}

// ListRoomsForUser returns the rooms the user is an unbanned member of.
func (s *Store) ListRoomsForUser(ctx context.Context, userID string) ([]Room, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.id::text, r.name, r.created_by::text, r.created_at
		FROM rooms r
		JOIN room_members rm ON rm.room_id = r.id
		WHERE rm.user_id = $1 AND NOT rm.banned
		ORDER BY r.created_at`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		var (
			room      Room
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan room: %w", err)
		}
		room.CreatedAt = createdAt.Time
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// IsRoomModerator reports whether the user holds a room-level moderation role.
func (s *Store) IsRoomModerator(ctx context.Context, roomID, userID string) (bool, error) {
	rID, err := parseID(roomID)
	if err != nil {
		return false, err
	}
	uID, err := parseID(userID)
	if err != nil {
		return false, err
	}

	var moderator bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM room_members
			WHERE room_id = $1 AND user_id = $2
			  AND NOT banned
			  AND role IN ($3, $4)
		)`,
		rID, uID, RoomRoleModerator, RoomRoleAdmin,
	).Scan(&moderator)
	if err != nil {
		return false, fmt.Errorf("store: room moderator check: %w", err)
	}

	return moderator, nil
}
