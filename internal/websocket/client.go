package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one subscriber connection. An empty site set receives every site.
type Client struct {
	hub   *Hub
	conn  *ws.Conn
	send  chan []byte
	sites map[string]struct{}
}

func NewClient(hub *Hub, conn *ws.Conn, sites []string) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if len(sites) > 0 {
		c.sites = make(map[string]struct{}, len(sites))
		for _, s := range sites {
			c.sites[s] = struct{}{}
		}
	}
	return c
}

// wants reports whether a change on site should reach this client. Messages
// without a site go to everyone.
func (c *Client) wants(site string) bool {
	if c.sites == nil || site == "" {
		return true
	}
	_, ok := c.sites[site]
	return ok
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump discards incoming frames; the stream is server to client only.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
