package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lxzan/gws"

	"github.com/soar/joyctrl/internal/ipc"
)

var errDisconnected = errors.New("disconnected from joyctrl")

// client multiplexes ipc streams over one websocket.
type client struct {
	gws.BuiltinEventHandler

	conn *gws.Conn

	mu      sync.Mutex
	streams map[string]chan ipc.Reply
	closed  chan struct{}
}

func dial(addr string) (*client, error) {
	c := &client{
		streams: make(map[string]chan ipc.Reply),
		closed:  make(chan struct{}),
	}
	conn, _, err := gws.NewClient(c, &gws.ClientOption{Addr: addr})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	c.conn = conn
	go conn.ReadLoop()
	return c, nil
}

func (c *client) Close() error {
	return c.conn.WriteClose(1000, nil)
}

func (c *client) OnClose(*gws.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

func (c *client) OnMessage(_ *gws.Conn, message *gws.Message) {
	defer message.Close()
	var r ipc.Reply
	if err := json.Unmarshal(message.Bytes(), &r); err != nil {
		return
	}
	c.mu.Lock()
	ch, ok := c.streams[r.StreamID]
	if ok && r.Type == ipc.TypeClose {
		delete(c.streams, r.StreamID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- r:
	default:
		// Slow watcher: drop data, never the end of the stream.
		if r.Type != ipc.TypeData {
			ch <- r
		}
	}
}

func (c *client) open(channel string, data any) (string, <-chan ipc.Reply, error) {
	req := ipc.Request{Channel: channel, StreamID: uuid.NewString()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return "", nil, err
		}
		req.Data = raw
	}
	msg, err := json.Marshal(req)
	if err != nil {
		return "", nil, err
	}
	ch := make(chan ipc.Reply, 64)
	c.mu.Lock()
	c.streams[req.StreamID] = ch
	c.mu.Unlock()
	if err := c.conn.WriteMessage(gws.OpcodeText, msg); err != nil {
		c.forget(req.StreamID)
		return "", nil, err
	}
	return req.StreamID, ch, nil
}

func (c *client) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streams, id)
}

func (c *client) teardown(id string) {
	c.forget(id)
	msg, _ := json.Marshal(ipc.Request{Channel: ipc.TeardownChannel, StreamID: id})
	c.conn.WriteMessage(gws.OpcodeText, msg)
}

// call sends a one-shot request and returns its payload.
func (c *client) call(ctx context.Context, channel string, data any) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.watch(ctx, channel, data, func(p json.RawMessage) bool {
		result = p
		return true
	})
	return result, err
}

// watch delivers every data payload of the stream to fn until fn returns
// false, the stream closes, or ctx ends.
func (c *client) watch(ctx context.Context, channel string, data any, fn func(json.RawMessage) bool) error {
	id, replies, err := c.open(channel, data)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			c.teardown(id)
			return ctx.Err()
		case <-c.closed:
			return errDisconnected
		case r := <-replies:
			switch r.Type {
			case ipc.TypeData:
				if !fn(r.Payload) {
					c.teardown(id)
					return nil
				}
			case ipc.TypeError:
				var p ipc.ErrorPayload
				_ = json.Unmarshal(r.Payload, &p)
				c.forget(id)
				return fmt.Errorf("%s: %s", channel, p.Message)
			case ipc.TypeClose:
				return nil
			}
		}
	}
}
