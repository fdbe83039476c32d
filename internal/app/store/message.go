package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"chatwire/internal/app/chat"
	"chatwire/internal/app/user"
)

// messageViewColumns is the denormalized select shared by single-message
// reads and history pages: the message row joined with the sender's display
// fields and the aggregated read set.
const messageViewColumns = `
	m.id::text,
	m.room_id,
	m.conversation_id,
	m.sender_id::text,
	u.nickname,
	u.avatar_url,
	u.role,
	m.content,
	m.attachments,
	m.created_at,
	COALESCE(array_agg(r.user_id::text) FILTER (WHERE r.user_id IS NOT NULL), '{}')
`

const messageViewJoins = `
	JOIN users u ON u.id = m.sender_id
	LEFT JOIN message_reads r ON r.message_id = m.id
`

// Insert persists a message and returns its assigned id. The store assigns
// the creation timestamp, which orders the message within its scope.
func (s *Store) Insert(ctx context.Context, msg chat.NewMessage) (string, error) {
	senderID, err := parseID(msg.SenderID)
	if err != nil {
		return "", err
	}

	var roomID, conversationID pgtype.UUID
	switch {
	case msg.RoomID != "":
		parsed, err := parseID(msg.RoomID)
		if err != nil {
			return "", err
		}
		roomID = pgtype.UUID{Bytes: parsed, Valid: true}
	case msg.ConversationID != "":
		parsed, err := parseID(msg.ConversationID)
		if err != nil {
			return "", err
		}
		conversationID = pgtype.UUID{Bytes: parsed, Valid: true}
	default:
		return "", fmt.Errorf("store: message must name a room or a conversation")
	}

	attachments := msg.Attachments
	if attachments == nil {
		attachments = []chat.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return "", fmt.Errorf("store: marshal attachments: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (room_id, conversation_id, sender_id, content, attachments)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text`,
		roomID, conversationID, senderID, msg.Content, attachmentsJSON,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store: insert message: %w", err)
	}

	return id, nil
}

// GetView re-reads a persisted message joined with sender display fields.
func (s *Store) GetView(ctx context.Context, messageID string) (chat.Message, error) {
	id, err := parseID(messageID)
	if err != nil {
		return chat.Message{}, err
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+messageViewColumns+`
		FROM messages m`+messageViewJoins+`
		WHERE m.id = $1
		GROUP BY m.id, u.id`,
		id,
	)

	msg, err := scanMessageView(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return chat.Message{}, ErrNotFound
		}
		return chat.Message{}, fmt.Errorf("store: get message view: %w", err)
	}

	return msg, nil
}

// MarkRead adds the user to each named message's read set, skipping messages
// the user authored. The primary key on message_reads makes repeated calls a
// no-op set-union; only newly marked ids are returned.
func (s *Store) MarkRead(ctx context.Context, userID string, messageIDs []string) ([]string, error) {
	readerID, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	ids := make([]pgtype.UUID, 0, len(messageIDs))
	for _, raw := range messageIDs {
		parsed, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, pgtype.UUID{Bytes: parsed, Valid: true})
	}

	rows, err := s.pool.Query(ctx, `
		INSERT INTO message_reads (message_id, user_id)
		SELECT m.id, $1
		FROM messages m
		WHERE m.id = ANY($2) AND m.sender_id <> $1
		ON CONFLICT DO NOTHING
		RETURNING message_id::text`,
		readerID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("store: mark read: %w", err)
	}
	defer rows.Close()

	var marked []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan marked id: %w", err)
		}
		marked = append(marked, id)
	}

	return marked, rows.Err()
}

// DeleteMessage hard-deletes a message. Moderation only; the realtime layer
// never mutates stored messages beyond read-set growth.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	id, err := parseID(messageID)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// HistoryQuery names the parameters of one history page fetch. Limit must
// already be clamped by the caller; Before == zero time means "from the
// newest end".
type HistoryQuery struct {
	RoomID         string
	ConversationID string
	Before         time.Time
	Limit          int
}

// Page is one backward-pagination result. Messages run oldest→newest;
// HasMore is the returned-count-equals-limit heuristic; NextCursor is the
// creation time of the oldest returned message, nil when the page is empty.
type Page struct {
	Messages   []chat.Message `json:"messages"`
	HasMore    bool           `json:"hasMore"`
	NextCursor *time.Time     `json:"nextCursor"`
}

// ListMessagePage fetches one page of history for a scope: messages strictly
// older than the cursor, newest-first internally, reversed so the caller
// receives oldest→newest. Ordering ties on created_at break by id, keeping
// in-scope order total.
func (s *Store) ListMessagePage(ctx context.Context, q HistoryQuery) (Page, error) {
	var (
		scopeColumn string
		scopeValue  string
	)
	switch {
	case q.RoomID != "":
		scopeColumn, scopeValue = "room_id", q.RoomID
	case q.ConversationID != "":
		scopeColumn, scopeValue = "conversation_id", q.ConversationID
	default:
		return Page{}, fmt.Errorf("store: history query must name a room or a conversation")
	}

	scopeID, err := parseID(scopeValue)
	if err != nil {
		return Page{}, err
	}

	var before pgtype.Timestamptz
	if !q.Before.IsZero() {
		before = pgtype.Timestamptz{Time: q.Before, Valid: true}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageViewColumns+`
		FROM messages m`+messageViewJoins+`
		WHERE m.`+scopeColumn+` = $1
		  AND ($2::timestamptz IS NULL OR m.created_at < $2)
		GROUP BY m.id, u.id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3`,
		scopeID, before, q.Limit,
	)
	if err != nil {
		return Page{}, fmt.Errorf("store: list message page: %w", err)
	}
	defer rows.Close()

	var newestFirst []chat.Message
	for rows.Next() {
		msg, err := scanMessageView(rows)
		if err != nil {
			return Page{}, fmt.Errorf("store: scan message view: %w", err)
		}
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("store: list message page: %w", err)
	}

	return BuildPage(newestFirst, q.Limit), nil
}

// BuildPage assembles the pagination response from a newest-first row slice.
func BuildPage(newestFirst []chat.Message, limit int) Page {
	messages := make([]chat.Message, len(newestFirst))
	for i, msg := range newestFirst {
		messages[len(newestFirst)-1-i] = msg
	}

	page := Page{
		Messages: messages,
		HasMore:  len(messages) == limit && limit > 0,
	}

	if len(messages) > 0 {
		oldest := messages[0].CreatedAt
		page.NextCursor = &oldest
	}

	return page
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMessageView decodes one denormalized message row.
func scanMessageView(row rowScanner) (chat.Message, error) {
	var (
		msg             chat.Message
		roomID          pgtype.UUID
		conversationID  pgtype.UUID
		senderID        string
		nickname        string
		avatarURL       string
		role            string
		attachmentsJSON []byte
		createdAt       pgtype.Timestamptz
		readBy          []string
	)

	err := row.Scan(
		&msg.ID,
		&roomID,
		&conversationID,
		&senderID,
		&nickname,
		&avatarURL,
		&role,
		&msg.Content,
		&attachmentsJSON,
		&createdAt,
		&readBy,
	)
	if err != nil {
		return chat.Message{}, err
	}

	if roomID.Valid {
		msg.RoomID = uuidString(roomID)
	}
	if conversationID.Valid {
		msg.ConversationID = uuidString(conversationID)
	}

	msg.Sender = user.User{
		ID:       senderID,
		Nickname: nickname,
		Avatar:   avatarURL,
		Role:     role,
	}

	if err := json.Unmarshal(attachmentsJSON, &msg.Attachments); err != nil {
		return chat.Message{}, fmt.Errorf("decode attachments: %w", err)
	}
	if msg.Attachments == nil {
		msg.Attachments = []chat.Attachment{}
	}

	msg.CreatedAt = createdAt.Time
	msg.ReadBy = readBy
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}

	return msg, nil
}
