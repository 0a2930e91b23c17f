package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

const (
	writeWait = 10 * time.Second

	// pongWait is the idle timeout; clients ping more often than this.
	pongWait = 90 * time.Second

	maxMessageSize = 4096

	sendBufferSize = 64
)

// Client is one WebSocket connection of a user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	user     *models.User
	userID   string
	commands CallCommands
	logger   zerolog.Logger

	// ctx is cancelled when the connection goes away, aborting running
	// commands together with their outbound BBB requests.
	ctx    context.Context
	cancel context.CancelFunc

	send   chan []byte
	sendMu sync.Mutex
	closed bool

	writeMu sync.Mutex
	running sync.WaitGroup
}

func newClient(hub *Hub, conn *websocket.Conn, user *models.User, commands CallCommands) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		conn:     conn,
		user:     user,
		userID:   user.ID,
		commands: commands,
		logger:   log.With().Str("user_id", user.ID).Str("event_id", user.EventID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendBufferSize),
	}
}

// ReadPump reads commands until the connection fails. Each command runs in
// its own goroutine so a slow BBB server does not hold up the others.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.drop(c)
		c.cancel()
		c.running.Wait()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn().Err(err).Msg("failed to set ws read deadline")
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected ws close")
			}
			return
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.logger.Debug().Err(err).Msg("invalid ws frame")
			continue
		}

		if cmd.Action == ActionPing {
			c.reply(Event{Action: ActionPong, ID: cmd.ID})
			continue
		}

		c.running.Add(1)
		go func() {
			defer c.running.Done()
			c.handleCommand(cmd)
		}()
	}
}

func (c *Client) handleCommand(cmd Command) {
	switch cmd.Action {
	case ActionRoomURL:
		var p RoomPayload
		if !c.decode(cmd, &p) {
			return
		}
		joinURL, err := c.commands.RoomURL(c.ctx, c.user, p.Room)
		if err != nil {
			c.fail(cmd, err, pkg.CodeRoomUnknown)
			return
		}
		c.succeed(cmd, URLBody{URL: joinURL})

	case ActionCallURL:
		var p CallPayload
		if !c.decode(cmd, &p) {
			return
		}
		joinURL, err := c.commands.CallURL(c.ctx, c.user, p.Call)
		if err != nil {
			c.fail(cmd, err, pkg.CodeCallUnknown)
			return
		}
		c.succeed(cmd, URLBody{URL: joinURL})

	case ActionRecordings:
		var p RoomPayload
		if !c.decode(cmd, &p) {
			return
		}
		result, err := c.commands.Recordings(c.ctx, c.user, p.Room)
		if err != nil {
			c.fail(cmd, err, pkg.CodeRoomUnknown)
			return
		}
		c.succeed(cmd, result)

	default:
		c.reply(Event{Action: ActionError, ID: cmd.ID, Data: ErrorBody{Code: pkg.CodeUnknownCommand}})
	}
}

func (c *Client) decode(cmd Command, dst any) bool {
	if len(cmd.Payload) == 0 {
		c.reply(Event{Action: ActionError, ID: cmd.ID, Data: ErrorBody{Code: pkg.CodeBadRequest}})
		return false
	}
	if err := json.Unmarshal(cmd.Payload, dst); err != nil {
		c.reply(Event{Action: ActionError, ID: cmd.ID, Data: ErrorBody{Code: pkg.CodeBadRequest}})
		return false
	}
	return true
}

func (c *Client) succeed(cmd Command, body any) {
	c.reply(Event{Action: ActionSuccess, ID: cmd.ID, Data: body})
}

func (c *Client) fail(cmd Command, err error, unknownCode string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	code := pkg.ErrorCode(err, unknownCode)
	if code == pkg.CodeInternal {
		c.logger.Error().Err(err).Str("action", cmd.Action).Msg("ws command failed")
	}
	c.reply(Event{Action: ActionError, ID: cmd.ID, Data: ErrorBody{Code: code}})
}

func (c *Client) reply(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Str("action", event.Action).Msg("failed to marshal ws reply")
		return
	}
	if !c.enqueue(data) {
		c.logger.Warn().Msg("ws send buffer full, dropping connection")
		go c.hub.drop(c)
	}
}

// enqueue queues data for WritePump. It reports false when the buffer is
// full; a closed client silently discards.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops running commands and ends WritePump. Safe to call twice.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}

// WritePump drains the send buffer into the connection.
func (c *Client) WritePump() {
	defer func() { _ = c.conn.Close() }()

	for message := range c.send {
		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.writeMessage(websocket.CloseMessage, nil)
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
