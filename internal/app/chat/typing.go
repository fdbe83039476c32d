package chat

import (
	"sync"
	"time"
)

// TypingExpiry is how long a typing indicator survives without renewal.
// A client that vanishes mid-keystroke would otherwise leave other clients'
// "is typing" indicator stuck forever, so the gateway clears it server-side.
const TypingExpiry = 6 * time.Second

type typingKey struct {
	userID  string
	channel Channel
}

// typingState holds one live indicator: its expiry timer and the connection
// that last renewed it, so an expiry broadcast can exclude the typist just
// like an explicit typing_stop does.
type typingState struct {
	timer  *time.Timer
	client *Client
}

// typingTracker maintains a bounded timer per (user, channel) typing state.
// When a timer fires without renewal, the expire callback is invoked so the
// gateway can emit user_stopped_typing on the user's behalf.
type typingTracker struct {
	mu     sync.Mutex
	states map[typingKey]*typingState
	expiry time.Duration
	expire func(c *Client, ch Channel)
}

func newTypingTracker(expiry time.Duration, expire func(c *Client, ch Channel)) *typingTracker {
	return &typingTracker{
		states: make(map[typingKey]*typingState),
		expiry: expiry,
		expire: expire,
	}
}

// Start records that the client's user is typing in the channel, renewing
// the expiry timer if one is already running.
func (t *typingTracker) Start(c *Client, ch Channel) {
	key := typingKey{userID: c.user.ID, channel: ch}

	t.mu.Lock()
	defer t.mu.Unlock()

	if state, ok := t.states[key]; ok {
		state.client = c
		state.timer.Reset(t.expiry)
		return
	}

	state := &typingState{client: c}
	state.timer = time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		fired, live := t.states[key]
		delete(t.states, key)
		t.mu.Unlock()

		// a Stop racing the firing timer wins: it already announced the stop
		if live {
			t.expire(fired.client, ch)
		}
	})
	t.states[key] = state
}

// Stop cancels the typing state. It reports whether the user was considered
// typing, so callers can suppress duplicate stopped-typing events.
func (t *typingTracker) Stop(userID string, ch Channel) bool {
	key := typingKey{userID: userID, channel: ch}

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[key]
	if !ok {
		return false
	}

	state.timer.Stop()
	delete(t.states, key)
	return true
}

// StopAll cancels every typing state for the user and returns the channels
// that were active. Used on disconnect.
func (t *typingTracker) StopAll(userID string) []Channel {
	t.mu.Lock()
	defer t.mu.Unlock()

	var channels []Channel
	for key, state := range t.states {
		if key.userID == userID {
			state.timer.Stop()
			delete(t.states, key)
			channels = append(channels, key.channel)
		}
	}
	return channels
}
