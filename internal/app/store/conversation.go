package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"chatwire/internal/app/chat"
	"chatwire/internal/app/db"
)

// Conversation is a private channel between a fixed set of members, created
// lazily on first message between two users. LastMessage is a derived cache
// for list previews; it may transiently lag the message store.
type Conversation struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	MemberIDs   []string     `json:"memberIds"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// LastMessage is the denormalized preview stored on a conversation.
type LastMessage struct {
	Content  string    `json:"content"`
	SenderID string    `json:"senderId"`
	SentAt   time.Time `json:"sentAt"`
}

// PairKey canonicalizes a two-member conversation into a single comparable
// key, so the same pair always maps to the same row regardless of who
// initiated. The unique index on pair_key enforces uniqueness under races.
func PairKey(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

// FindOrCreateDirect returns the direct conversation between the two users,
// creating it if none exists. Creation is idempotent: a concurrent insert of
// the same pair surfaces as a unique violation, and the existing row wins.
func (s *Store) FindOrCreateDirect(ctx context.Context, userA, userB string) (Conversation, bool, error) {
	idA, err := parseID(userA)
	if err != nil {
		return Conversation{}, false, err
	}
	idB, err := parseID(userB)
	if err != nil {
		return Conversation{}, false, err
	}
	if idA == idB {
		return Conversation{}, false, fmt.Errorf("store: conversation requires two distinct users")
	}

	pairKey := PairKey(idA.String(), idB.String())

	existing, err := s.getConversationByPairKey(ctx, pairKey)
	if err == nil {
		return existing, false, nil
	}
	if err != ErrNotFound {
		return Conversation{}, false, err
	}

	created, err := s.createDirect(ctx, pairKey, idA.String(), idB.String())
	if err != nil {
		if db.IsUniqueViolation(err) {
			existing, err := s.getConversationByPairKey(ctx, pairKey)
			return existing, false, err
		}
		return Conversation{}, false, err
	}

	return created, true, nil
}

func (s *Store) createDirect(ctx context.Context, pairKey, idA, idB string) (Conversation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Conversation{}, fmt.Errorf("store: begin create conversation: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id        string
		createdAt pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (pair_key)
		VALUES ($1)
		RETURNING id::text, created_at`,
		pairKey,
	).Scan(&id, &createdAt)
	if err != nil {
		return Conversation{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_members (conversation_id, user_id)
		VALUES ($1, $2), ($1, $3)`,
		id, idA, idB,
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("store: insert conversation members: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Conversation{}, fmt.Errorf("store: commit create conversation: %w", err)
	}

	return Conversation{
		ID:        id,
		MemberIDs: []string{idA, idB},
		CreatedAt: createdAt.Time,
	}, nil
}

func (s *Store) getConversationByPairKey(ctx context.Context, pairKey string) (Conversation, error) {
	rows, err := s.pool.Query(ctx, conversationSelect+`WHERE c.pair_key = $1 GROUP BY c.id`, pairKey)
	if err != nil {
		return Conversation{}, fmt.Errorf("store: get conversation by pair: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Conversation{}, fmt.Errorf("store: get conversation by pair: %w", err)
		}
		return Conversation{}, ErrNotFound
	}

	return scanConversation(rows)
}

const conversationSelect = `
	SELECT c.id::text,
	       c.name,
	       COALESCE(array_agg(cm.user_id::text) FILTER (WHERE cm.user_id IS NOT NULL), '{}'),
	       c.last_message_content,
	       c.last_message_sender_id,
	       c.last_message_at,
	       c.created_at
	FROM conversations c
	LEFT JOIN conversation_members cm ON cm.conversation_id = c.id
`

// GetConversation fetches a single conversation with its member list.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (Conversation, error) {
	id, err := parseID(conversationID)
	if err != nil {
		return Conversation{}, err
	}

	rows, err := s.pool.Query(ctx, conversationSelect+`WHERE c.id = $1 GROUP BY c.id`, id)
	if err != nil {
		return Conversation{}, fmt.Errorf("store: get conversation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Conversation{}, fmt.Errorf("store: get conversation: %w", err)
		}
		return Conversation{}, ErrNotFound
	}

	return scanConversation(rows)
}

// ListConversationsForUser returns the user's conversations, most recently
// active first, for the conversation list with previews.
func (s *Store) ListConversationsForUser(ctx context.Context, userID string) ([]Conversation, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, conversationSelect+`
		WHERE c.id IN (SELECT conversation_id FROM conversation_members WHERE user_id = $1)
		GROUP BY c.id
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	return conversations, rows.Err()
}

// IsConversationMember reports whether the user belongs to the conversation.
func (s *Store) IsConversationMember(ctx context.Context, conversationID, userID string) (bool, error) {
	convID, err := parseID(conversationID)
	if err != nil {
		return false, err
	}
	uID, err := parseID(userID)
	if err != nil {
		return false, err
	}

	var member bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_members
			WHERE conversation_id = $1 AND user_id = $2
		)`,
		convID, uID,
	).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("store: conversation membership: %w", err)
	}

	return member, nil
}

// TouchLastMessage recomputes the conversation's denormalized preview from
// the given message.
func (s *Store) TouchLastMessage(ctx context.Context, conversationID string, msg chat.Message) error {
	id, err := parseID(conversationID)
	if err != nil {
		return err
	}
	senderID, err := parseID(msg.Sender.ID)
	if err != nil {
		return err
	}

	preview := msg.Content
	if preview == "" && len(msg.Attachments) > 0 {
		preview = msg.Attachments[0].Name
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE conversations
		SET last_message_content = $2,
		    last_message_sender_id = $3,
		    last_message_at = $4
		WHERE id = $1`,
		id, preview, senderID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: touch last message: %w", err)
	}

	return nil
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		conversation  Conversation
		name          pgtype.Text
		lastContent   pgtype.Text
		lastSenderID  pgtype.UUID
		lastMessageAt pgtype.Timestamptz
		createdAt     pgtype.Timestamptz
	)

	err := row.Scan(
		&conversation.ID,
		&name,
		&conversation.MemberIDs,
		&lastContent,
		&lastSenderID,
		&lastMessageAt,
		&createdAt,
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("store: scan conversation: %w", err)
	}

	conversation.Name = name.String
	conversation.CreatedAt = createdAt.Time

	if lastMessageAt.Valid && lastSenderID.Valid {
		conversation.LastMessage = &LastMessage{
			Content:  lastContent.String,
			SenderID: uuidString(lastSenderID),
			SentAt:   lastMessageAt.Time,
		}
	}

	return conversation, nil
}
