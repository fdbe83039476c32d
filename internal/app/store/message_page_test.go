package store

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/app/chat"
)

// snapshotMessages builds n messages with strictly increasing creation times,
// ids m0..m(n-1), oldest first.
func snapshotMessages(n int) []chat.Message {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msgs := make([]chat.Message, n)
	for i := range msgs {
		msgs[i] = chat.Message{
			ID:        fmt.Sprintf("m%d", i),
			RoomID:    "r1",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return msgs
}

// queryNewestFirst mimics the history query over an in-memory snapshot:
// strictly older than the cursor, newest first, capped at limit.
func queryNewestFirst(snapshot []chat.Message, before *time.Time, limit int) []chat.Message {
	var rows []chat.Message
	for _, msg := range snapshot {
		if before == nil || msg.CreatedAt.Before(*before) {
			rows = append(rows, msg)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func TestBuildPageEmpty(t *testing.T) {
	page := BuildPage(nil, 20)

	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)
}

func TestBuildPagePartialPage(t *testing.T) {
	snapshot := snapshotMessages(5)
	page := BuildPage(queryNewestFirst(snapshot, nil, 20), 20)

	require.Len(t, page.Messages, 5)
	assert.False(t, page.HasMore, "a short page means history is exhausted")

	// oldest to newest
	assert.Equal(t, "m0", page.Messages[0].ID)
	assert.Equal(t, "m4", page.Messages[4].ID)

	require.NotNil(t, page.NextCursor)
	assert.Equal(t, snapshot[0].CreatedAt, *page.NextCursor)
}

func TestBuildPageFullPageSignalsMore(t *testing.T) {
	snapshot := snapshotMessages(30)
	page := BuildPage(queryNewestFirst(snapshot, nil, 20), 20)

	require.Len(t, page.Messages, 20)
	assert.True(t, page.HasMore)

	// the newest 20, oldest first
	assert.Equal(t, "m10", page.Messages[0].ID)
	assert.Equal(t, "m29", page.Messages[19].ID)

	require.NotNil(t, page.NextCursor)
	assert.Equal(t, snapshot[10].CreatedAt, *page.NextCursor)
}

// Walking backward through a fixed snapshot with the returned cursor must
// visit every message exactly once.
func TestBackwardPaginationCoversSnapshotExactlyOnce(t *testing.T) {
	snapshot := snapshotMessages(25)
	const limit = 10

	seen := map[string]int{}
	var cursor *time.Time
	pages := 0

	for {
		page := BuildPage(queryNewestFirst(snapshot, cursor, limit), limit)
		pages++

		for _, msg := range page.Messages {
			seen[msg.ID]++
		}

		if !page.HasMore {
			break
		}
		require.NotNil(t, page.NextCursor)
		cursor = page.NextCursor
		require.Less(t, pages, 10, "pagination did not terminate")
	}

	assert.Len(t, seen, len(snapshot))
	for id, count := range seen {
		assert.Equal(t, 1, count, "message %s appeared %d times", id, count)
	}
}

func TestBuildPageExactMultipleEndsWithEmptyPage(t *testing.T) {
	snapshot := snapshotMessages(20)
	const limit = 10

	first := BuildPage(queryNewestFirst(snapshot, nil, limit), limit)
	require.True(t, first.HasMore)

	second := BuildPage(queryNewestFirst(snapshot, first.NextCursor, limit), limit)
	require.True(t, second.HasMore, "a full page reports more even when the snapshot is exhausted")

	third := BuildPage(queryNewestFirst(snapshot, second.NextCursor, limit), limit)
	assert.Empty(t, third.Messages)
	assert.False(t, third.HasMore)
	assert.Nil(t, third.NextCursor)
}
