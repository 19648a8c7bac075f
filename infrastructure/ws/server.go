package ws

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"salachat/contract"
	"salachat/domain"
	"salachat/errors"
)

const (
	handshakeTimeout = 3 * time.Second
	readBufferSize   = 4096
	writeBufferSize  = 4096
	writeDeadline    = 5 * time.Second
	shutdownDeadline = 5 * time.Second
)

var _ contract.Worker = (*Gateway)(nil)

// Gateway exposes the queue arena to client processes. Each connection
// multiplexes queue operations as correlated frames; blocking send and
// receive run in their own goroutine so a parked receive never stalls
// the other operations of the same connection.
type Gateway struct {
	log    *slog.Logger
	opener contract.Opener
	ws     *websocket.Upgrader
	srv    *http.Server
}

func NewGateway(log *slog.Logger, opener contract.Opener, addr string) *Gateway {
	g := &Gateway{
		log:    log,
		opener: opener,
		ws: &websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   readBufferSize,
			WriteBufferSize:  writeBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ipc", g.handle)
	g.srv = &http.Server{Addr: addr, Handler: mux}
	return g
}

// Handler exposes the routing for in-process test servers.
func (g *Gateway) Handler() http.Handler {
	return g.srv.Handler
}

// Run serves until the context is canceled. It satisfies the worker
// contract so the gateway lives under the same supervisor as the queue
// workers.
func (g *Gateway) Run(ctx context.Context) error {
	g.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errSrv := make(chan error, 1)
	go func() {
		errSrv <- g.srv.ListenAndServe()
	}()
	g.log.Info("Gateway listening", "addr", g.srv.Addr)

	select {
	case err := <-errSrv:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		if err := g.srv.Shutdown(shCtx); err != nil {
			g.log.Warn("Graceful shutdown failed, closing", "error", err)
		}
		// Shutdown does not touch hijacked connections.
		return g.srv.Close()
	}
}

func (g *Gateway) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := g.ws.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error("Websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	log := g.log.With("conn", connID)
	log.Debug("Client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writes := make(chan Response, 16)
	writerDone := make(chan struct{})
	go g.writer(conn, writes, writerDone, log)

	var ops sync.WaitGroup
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Connection lost", "error", err)
			} else {
				log.Debug("Client disconnected")
			}
			break
		}

		switch req.Op {
		case OpSend, OpReceive:
			// Blocking operations park on the queue; the connection
			// context releases them when the client goes away.
			ops.Add(1)
			go func(req Request) {
				defer ops.Done()
				g.deliver(ctx, writes, g.execute(ctx, req))
			}(req)
		default:
			g.deliver(ctx, writes, g.execute(ctx, req))
		}
	}

	cancel()
	ops.Wait()
	close(writes)
	<-writerDone
	_ = conn.Close()
}

func (g *Gateway) writer(conn *websocket.Conn, writes <-chan Response, done chan<- struct{}, log *slog.Logger) {
	defer close(done)
	for resp := range writes {
		if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
			log.Warn("Failed to set write deadline", "error", err)
			continue
		}
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn("Failed to write response", "id", resp.ID, "error", err)
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (g *Gateway) deliver(ctx context.Context, writes chan<- Response, resp Response) {
	select {
	case writes <- resp:
	case <-ctx.Done():
	}
}

func (g *Gateway) execute(ctx context.Context, req Request) Response {
	conduit := g.opener.Open(req.Queue)

	var (
		env domain.Envelope
		err error
	)
	switch req.Op {
	case OpSend:
		if req.Envelope == nil {
			return Response{ID: req.ID, Code: errors.CodeInternal}
		}
		err = conduit.Send(ctx, *req.Envelope)
	case OpTrySend:
		if req.Envelope == nil {
			return Response{ID: req.ID, Code: errors.CodeInternal}
		}
		err = conduit.TrySend(*req.Envelope)
	case OpReceive:
		env, err = conduit.Receive(ctx, req.Selector)
	case OpTryReceive:
		env, err = conduit.TryReceive(req.Selector)
	default:
		g.log.Warn("Unknown operation", "op", req.Op)
		return Response{ID: req.ID, Code: errors.CodeInternal}
	}

	if err != nil {
		return Response{ID: req.ID, Code: errors.MapToWireCode(err)}
	}
	resp := Response{ID: req.ID, OK: true}
	if req.Op == OpReceive || req.Op == OpTryReceive {
		resp.Envelope = &env
	}
	return resp
}
