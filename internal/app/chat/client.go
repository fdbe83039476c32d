/*
Package chat contains the realtime messaging core.

This file defines the Client struct, representing an authenticated WebSocket
connection. It manages the connection's lifecycle and message communication
loops (ReadPump and WritePump), delegating event handling to the Gateway.
*/
package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatwire/internal/app/user"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 16384

	// sendQueueSize is the per-connection outbound buffer. A client that
	// cannot drain this many events is considered slow and starts dropping.
	sendQueueSize = 256
)

// Client represents an active WebSocket connection and its authenticated user.
// A connection is associated with exactly one user id for its whole lifetime;
// unauthenticated connections never reach this struct.
type Client struct {
	// gateway handles every event the connection produces.
	gateway *Gateway

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// the authenticated user bound to this connection.
	user user.User

	// a buffered channel used to queue events waiting to be sent to the client.
	send chan []byte

	// sendMu and sendClosed guard the send channel against teardown races:
	// hub shutdown can close the queue while the read pump is still
	// dispatching events, and a send on a closed channel panics.
	sendMu     sync.RWMutex
	sendClosed bool

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance for an already
// authenticated connection.
func NewClient(gateway *Gateway, wsConn *websocket.Conn, u user.User) *Client {
	clientLogger := logx.Logger().With().
		Str("client_id", u.ID).
		Logger()

	return &Client{
		gateway: gateway,
		conn:    wsConn,
		user:    u,
		send:    make(chan []byte, sendQueueSize),
		logger:  clientLogger,
	}
}

// User returns the identity bound to the connection.
func (c *Client) User() user.User {
	return c.user
}

// ReadPump handles reading events from the WebSocket connection.
// It handles heartbeats (Pong), envelope parsing, and performs cleanup upon
// connection closure. A client disconnecting only aborts its own state; no
// other connection is affected.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.gateway.dispatch(c, messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.gateway.clientClosed(c)

	c.closeSend()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump handles writing events from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles events pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// enqueue places raw wire bytes on the send queue without blocking. Events
// arriving after the queue is closed are dropped, not panicked on.
func (c *Client) enqueue(messageBytes []byte) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.sendClosed {
		return fmt.Errorf("client send queue closed")
	}

	select {
	case c.send <- messageBytes:
		return nil
	default:
		return fmt.Errorf("client send queue full")
	}
}

// Send marshals the event into an envelope and queues it for this connection only.
func (c *Client) Send(event string, payload any) {
	messageBytes, err := EncodeEnvelope(event, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event for client")
		return
	}

	if err := c.enqueue(messageBytes); err != nil {
		c.logger.Warn().Int("queue_len", len(c.send)).Str("event", event).Msg("Client send queue full, dropping event")
	}
}

// SendError delivers a message_error event to this connection only.
func (c *Client) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	c.Send(EventMessageError, ErrorPayload{
		Code:  customErr.Code,
		Error: customErr.Message,
	})
}

// closeSend closes the outbound queue exactly once, signalling WritePump to
// flush and terminate. The write lock excludes in-flight enqueues, so the
// channel is never closed under a sender.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}
