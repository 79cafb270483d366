// Package network carries chunk records between a chunk server and its
// clients over websocket.
package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/internal/network/packets"
)

// ErrNotConnected is returned when sending without a connection.
var ErrNotConnected = errors.New("not connected")

const writeTimeout = 5 * time.Second

// Client handles network communication.
type Client struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	writeMu  sync.Mutex
	handlers map[uint16]PacketHandler
	onClose  func()
	log      *zap.Logger

	// Connection state
	connected bool
	done      chan struct{}
}

// PacketHandler handles one incoming packet, header included.
type PacketHandler func(data []byte) error

// New creates a new network client.
func New() *Client {
	return &Client{
		handlers: make(map[uint16]PacketHandler),
		log:      logger.Named("network"),
	}
}

// Connect dials a chunk server and starts reading packets in the background.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}

	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})
	go c.process(conn, c.done)

	c.log.Info("connected to chunk server", zap.String("url", url))
	return nil
}

// Disconnect closes the connection and waits for the read loop to exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	conn.Close()
	<-done
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// RegisterHandler registers a packet handler.
func (c *Client) RegisterHandler(packetID uint16, handler PacketHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[packetID] = handler
}

// SetDisconnectHandler registers fn to run once the read loop of a
// connection has exited, whether the server closed it or Disconnect did.
func (c *Client) SetDisconnectHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// Send sends a packet to the server.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// process reads packets and dispatches them to handlers until the
// connection fails.
func (c *Client) process(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.connected = false
			c.conn = nil
		}
		onClose := c.onClose
		c.mu.Unlock()

		conn.Close()
		if onClose != nil {
			onClose()
		}
	}()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.Debug("chunk connection closed", zap.Error(err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		packetID, _, err := packets.PeekHeader(msg)
		if err != nil {
			c.log.Warn("dropping packet", zap.Error(err))
			continue
		}

		c.mu.Lock()
		handler := c.handlers[packetID]
		c.mu.Unlock()
		if handler == nil {
			c.log.Debug("no handler for packet", zap.Uint16("packet", packetID))
			continue
		}
		if err := handler(msg); err != nil {
			c.log.Warn("packet handler failed", zap.Uint16("packet", packetID), zap.Error(err))
		}
	}
}
