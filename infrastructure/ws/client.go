package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
)

var _ contract.Opener = (*Client)(nil)

// Client is one process-side gateway connection. Conduits opened from
// it share the connection; a lost connection fails every in-flight and
// future operation with ErrQueueRemoved, which is exactly how a
// destroyed queue looks to its holders.
type Client struct {
	log     *slog.Logger
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan Response
	closed  bool

	nextID atomic.Uint64
	done   chan struct{}
}

func Dial(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		log:     log,
		conn:    conn,
		pending: make(map[uint64]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Open binds a conduit to a queue handle over this connection.
func (c *Client) Open(handle domain.QueueHandle) contract.Conduit {
	return &remoteConduit{client: c, handle: handle}
}

// Close tears the connection down; the read loop then fails every
// pending operation.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			break
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	req.ID = c.nextID.Add(1)
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, errors.ErrQueueRemoved
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return Response{}, errors.ErrQueueRemoved
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, errors.ErrQueueRemoved
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return Response{}, ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

type remoteConduit struct {
	client *Client
	handle domain.QueueHandle
}

func (r *remoteConduit) exec(ctx context.Context, req Request) (domain.Envelope, error) {
	req.Queue = r.handle
	resp, err := r.client.roundTrip(ctx, req)
	if err != nil {
		return domain.Envelope{}, err
	}
	if !resp.OK {
		return domain.Envelope{}, errors.FromWireCode(resp.Code)
	}
	if resp.Envelope != nil {
		return *resp.Envelope, nil
	}
	return domain.Envelope{}, nil
}

func (r *remoteConduit) Send(ctx context.Context, env domain.Envelope) error {
	_, err := r.exec(ctx, Request{Op: OpSend, Envelope: &env})
	return err
}

func (r *remoteConduit) TrySend(env domain.Envelope) error {
	_, err := r.exec(context.Background(), Request{Op: OpTrySend, Envelope: &env})
	return err
}

func (r *remoteConduit) Receive(ctx context.Context, selector int64) (domain.Envelope, error) {
	return r.exec(ctx, Request{Op: OpReceive, Selector: selector})
}

func (r *remoteConduit) TryReceive(selector int64) (domain.Envelope, error) {
	return r.exec(context.Background(), Request{Op: OpTryReceive, Selector: selector})
}
