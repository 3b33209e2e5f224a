package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sbl8/rowlife/core"
)

const (
	// HaloPath is the route a participant exposes for its upper neighbour.
	HaloPath = "/halo"

	// RankHeader carries the dialling participant's identity.
	RankHeader = "X-Rowlife-Rank"
)

// WebSocketOptions configures a WebSocket transport.
type WebSocketOptions struct {
	// DialInterval is the pause between connection attempts while the
	// lower neighbour is not yet listening.
	DialInterval time.Duration

	// HandshakeTimeout bounds a single websocket handshake.
	HandshakeTimeout time.Duration

	// Listener, if set, is used instead of listening on peers[rank].
	Listener net.Listener

	Logger *slog.Logger
}

// DefaultWebSocketOptions returns the options used when none are given.
func DefaultWebSocketOptions() WebSocketOptions {
	return WebSocketOptions{
		DialInterval:     200 * time.Millisecond,
		HandshakeTimeout: 5 * time.Second,
	}
}

// WebSocket is a Transport for one participant of a multi-process run.
// Participant i dials i+1 and accepts i; each pair shares one
// connection used in both directions.
type WebSocket struct {
	rank  int
	peers []string
	opts  WebSocketOptions

	log      *slog.Logger
	upgrader websocket.Upgrader
	ln       net.Listener
	srv      *http.Server

	mu      sync.Mutex
	conns   map[int]*websocket.Conn
	arrived chan int
	buf     []byte

	closed    chan struct{}
	closeOnce sync.Once
}

// NewWebSocket creates the transport for participant rank. peers lists
// the host:port of every participant, indexed by identity.
func NewWebSocket(rank int, peers []string, opts *WebSocketOptions) (*WebSocket, error) {
	if rank < 0 || rank >= len(peers) {
		return nil, fmt.Errorf("transport: rank %d outside %d peers", rank, len(peers))
	}
	o := DefaultWebSocketOptions()
	if opts != nil {
		o = *opts
		if o.DialInterval <= 0 {
			o.DialInterval = DefaultWebSocketOptions().DialInterval
		}
	}
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}

	return &WebSocket{
		rank:  rank,
		peers: peers,
		opts:  o,
		log:   log.With("component", "transport", "rank", rank),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: o.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ln:      o.Listener,
		conns:   make(map[int]*websocket.Conn, 2),
		arrived: make(chan int, 1),
		closed:  make(chan struct{}),
	}, nil
}

// Start begins accepting the upper neighbour's connection.
func (w *WebSocket) Start() error {
	if w.ln == nil {
		ln, err := net.Listen("tcp", w.peers[w.rank])
		if err != nil {
			return fmt.Errorf("transport: listen %s: %w", w.peers[w.rank], err)
		}
		w.ln = ln
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET(HaloPath, w.handleHalo)
	w.srv = &http.Server{Handler: router}

	go func() {
		if err := w.srv.Serve(w.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("halo listener stopped", "error", err)
		}
	}()
	w.log.Debug("listening", "addr", w.ln.Addr().String())
	return nil
}

// Addr returns the listening address, or nil before Start.
func (w *WebSocket) Addr() net.Addr {
	if w.ln == nil {
		return nil
	}
	return w.ln.Addr()
}

func (w *WebSocket) handleHalo(c *gin.Context) {
	from, err := strconv.Atoi(c.GetHeader(RankHeader))
	if err != nil || from != w.rank-1 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": fmt.Sprintf("rank %q is not the upper neighbour of %d", c.GetHeader(RankHeader), w.rank),
		})
		return
	}

	conn, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		w.log.Error("failed to upgrade the websocket", "from", from, "error", err)
		return
	}

	w.mu.Lock()
	if _, dup := w.conns[from]; dup {
		w.mu.Unlock()
		w.log.Warn("duplicate neighbour connection dropped", "from", from)
		conn.Close()
		return
	}
	w.conns[from] = conn
	w.mu.Unlock()

	w.log.Debug("neighbour connected", "from", from)
	select {
	case w.arrived <- from:
	default:
	}
}

// Connect dials the lower neighbour and waits for the upper one. It
// returns once every neighbour link is established.
func (w *WebSocket) Connect(ctx context.Context) error {
	if lower := w.rank + 1; lower < len(w.peers) {
		if err := w.dial(ctx, lower); err != nil {
			return err
		}
	}
	if upper := w.rank - 1; upper >= 0 {
		if err := w.await(ctx, upper); err != nil {
			return err
		}
	}
	return nil
}

func (w *WebSocket) dial(ctx context.Context, to int) error {
	dialer := websocket.Dialer{HandshakeTimeout: w.opts.HandshakeTimeout}
	header := http.Header{}
	header.Set(RankHeader, strconv.Itoa(w.rank))
	url := "ws://" + w.peers[to] + HaloPath

	for attempt := 1; ; attempt++ {
		conn, resp, err := dialer.DialContext(ctx, url, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			w.mu.Lock()
			w.conns[to] = conn
			w.mu.Unlock()
			w.log.Debug("dialled neighbour", "to", to, "attempts", attempt)
			return nil
		}
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("transport: dial %s: neighbour %d refused rank %d", url, to, w.rank)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("transport: dial %s: %w", url, errors.Join(ctx.Err(), err))
		case <-w.closed:
			return ErrClosed
		case <-time.After(w.opts.DialInterval):
		}
	}
}

func (w *WebSocket) await(ctx context.Context, from int) error {
	for {
		w.mu.Lock()
		_, ok := w.conns[from]
		w.mu.Unlock()
		if ok {
			return nil
		}

		select {
		case <-w.arrived:
		case <-ctx.Done():
			return fmt.Errorf("transport: waiting for neighbour %d: %w", from, ctx.Err())
		case <-w.closed:
			return ErrClosed
		}
	}
}

func (w *WebSocket) conn(peer int) (*websocket.Conn, error) {
	if !adjacent(w.rank, peer) || peer < 0 || peer >= len(w.peers) {
		return nil, fmt.Errorf("%w: %d -> %d", ErrUnknownPeer, w.rank, peer)
	}
	select {
	case <-w.closed:
		return nil, ErrClosed
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	conn, ok := w.conns[peer]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotConnected, peer)
	}
	return conn, nil
}

// Send writes row as one binary frame to participant to.
func (w *WebSocket) Send(ctx context.Context, to int, row core.Row) error {
	conn, err := w.conn(to)
	if err != nil {
		return err
	}

	// Only the context trips the socket deadline, so a timed-out
	// write always reports ctx.Err().
	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	// Send is never called concurrently for one participant, so the
	// encode buffer is shared between both neighbours.
	w.buf = core.EncodeRow(w.buf[:0], row)
	if err := conn.WriteMessage(websocket.BinaryMessage, w.buf); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("transport: send to %d: %w", to, err)
	}
	return nil
}

// Recv reads one binary frame from participant from into dst.
func (w *WebSocket) Recv(ctx context.Context, from int, dst core.Row) error {
	conn, err := w.conn(from)
	if err != nil {
		return err
	}

	// Only the context trips the socket deadline, so a timed-out
	// read always reports ctx.Err().
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	kind, payload, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("transport: recv from %d: %w", from, err)
	}
	if kind != websocket.BinaryMessage {
		return fmt.Errorf("%w: message type %d from %d", ErrMalformed, kind, from)
	}
	if err := core.DecodeRow(dst, payload); err != nil {
		return fmt.Errorf("transport: recv from %d: %w", from, err)
	}
	return nil
}

// Close shuts the listener and every neighbour connection.
func (w *WebSocket) Close() error {
	var errs []error
	w.closeOnce.Do(func() {
		close(w.closed)

		w.mu.Lock()
		for peer, conn := range w.conns {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			if err := conn.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close link to %d: %w", peer, err))
			}
			delete(w.conns, peer)
		}
		w.mu.Unlock()

		if w.srv != nil {
			if err := w.srv.Close(); err != nil {
				errs = append(errs, err)
			}
		} else if w.ln != nil {
			if err := w.ln.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
