package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var (
	errClientClosed = errors.New("ws: client closed")
	errSlowConsumer = errors.New("ws: subscriber buffer full")
)

// Client pushes feed frames to one websocket peer. Outbound frames are
// buffered and written by a dedicated goroutine so a stalling peer never
// blocks the hub; a peer whose buffer fills up is dropped instead.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient wraps an upgraded connection. The buffer bounds how many frames
// a slow peer may fall behind before it is dropped.
func NewClient(conn *websocket.Conn, logger *slog.Logger, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	c := &Client{
		conn: conn,
		log:  logger,
		out:  make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send enqueues a frame. An error means the peer is gone or too far behind;
// the hub removes the subscription on any error.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.out <- payload:
		return nil
	default:
		c.log.Warn("feed subscriber too slow, dropping")
		c.Close()
		return errSlowConsumer
	}
}

func (c *Client) writePump() {
	for {
		select {
		case payload := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("feed write failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close terminates the connection and stops the write pump. Safe to call
// more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
