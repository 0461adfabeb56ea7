// Package server exposes local peripherals to remote clients over TCP.
//
// A Server accepts connections, decodes length-prefixed JSON requests, executes them
// against a Registry of device bindings, and writes one response per request carrying
// the request's id. Requests of one connection are handled concurrently up to a bound,
// so a slow operation on one device does not hold up operations on other devices.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-rhal/internal/task"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Close.
var ErrServerClosed = errors.New("rhal: server closed")

// Server is a rhal server.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	logger logger.Logger
	reg    *Registry

	mu       sync.Mutex
	listener net.Listener
	conns    map[uint64]*serverConn
	closed   atomic.Bool
	connID   atomic.Uint64

	metrics Metrics
}

// NewServer creates a server that executes requests against reg.
//
// The server stops when ctx is done or Close is called.
func NewServer(ctx context.Context, cfg *Config, reg *Registry) (*Server, error) {
	if cfg == nil {
		return nil, rhal.ErrConfigNil
	}
	if reg == nil {
		return nil, errors.New("registry is nil")
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.logger,
		reg:    reg,
		conns:  make(map[uint64]*serverConn),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	return s, nil
}

// Registry returns the registry the server executes requests against.
func (s *Server) Registry() *Registry { return s.reg }

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics { return &s.metrics }

// Addr returns the address the server listens on, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on the configured TCP address and serves connections until the server closes.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until the server closes. It always returns a non-nil error,
// ErrServerClosed after Close or context cancellation.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	stop := context.AfterFunc(s.ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("rhal server listening", "addr", l.Addr().String())

	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn("accept error, retrying", "method", "Serve", "error", err, "retry_in", backoff)
				time.Sleep(backoff)
				continue
			}

			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		s.serveConn(conn)
	}
}

// Close stops accepting connections, closes every connection and waits for their tasks to exit.
// Bindings are left in the registry; close the registry to release them.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Debug("closing server")
	s.cancel()

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	conns := make([]*serverConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) serveConn(conn net.Conn) {
	id := s.connID.Add(1)
	c := &serverConn{
		id:        id,
		srv:       s,
		conn:      conn,
		logger:    s.logger.With("conn_id", id, "remote", conn.RemoteAddr().String()),
		enc:       rhal.NewEncoder(conn),
		dec:       rhal.NewDecoder(conn),
		sendQueue: make(chan *rhal.Response, s.cfg.senderQueueSize),
		sem:       make(chan struct{}, s.cfg.maxInflight),
	}
	c.taskMgr = task.NewManager(s.ctx, c.logger)

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conns[id] = c
	s.mu.Unlock()

	s.metrics.incConnAcceptCount()
	s.metrics.incConnActiveGauge()
	c.logger.Info("connection accepted")

	if err := task.StartSender(c.taskMgr, "senderTask", c.senderTask, c.closeAsync, c.sendQueue); err != nil {
		c.logger.Error("failed to start sender task", "error", err)
		c.closeAsync()
		return
	}
	if err := c.taskMgr.StartReceiver("receiverTask", c.receiverTask, c.closeAsync); err != nil {
		c.logger.Error("failed to start receiver task", "error", err)
		c.closeAsync()
	}
}

func (s *Server) removeConn(id uint64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// serverConn is one client connection of a Server.
type serverConn struct {
	id      uint64
	srv     *Server
	conn    net.Conn
	logger  logger.Logger
	taskMgr *task.Manager

	enc       *rhal.Encoder
	dec       *rhal.Decoder
	sendQueue chan *rhal.Response
	sem       chan struct{}

	closeOnce sync.Once
}

// receiverTask reads one request and hands it to a handler goroutine.
func (c *serverConn) receiverTask() bool {
	var req rhal.Request
	if err := c.dec.Decode(&req); err != nil {
		if rhal.IsMalformed(err) {
			c.srv.metrics.incMalformedCount()
			c.logger.Warn("drop malformed request", "method", "receiverTask", "error", err)
			return true
		}

		if !isClosedErr(err) {
			c.logger.Error("failed to read request", "method", "receiverTask", "error", err)
		}
		return false
	}

	c.srv.metrics.incRequestCount()

	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("request received", "method", "receiverTask", "id", req.ID, "device", req.Device, "kind", rhal.KindString(req.Kind))
	}

	ctx := c.taskMgr.Context()
	select {
	case <-ctx.Done():
		return false
	case c.sem <- struct{}{}:
	}

	c.srv.metrics.incInflightCount()
	err := c.taskMgr.Go("handlerTask", func() {
		defer func() {
			c.srv.metrics.decInflightCount()
			<-c.sem
		}()
		c.handle(&req)
	})
	if err != nil {
		c.srv.metrics.decInflightCount()
		<-c.sem
		return false
	}

	return true
}

func (c *serverConn) handle(req *rhal.Request) {
	kind := c.srv.reg.handle(c.id, req.Device, req.Kind)
	if errRsp, ok := kind.(rhal.ErrorRsp); ok {
		c.srv.metrics.incDriverErrCount()
		c.logger.Warn("request failed", "id", req.ID, "device", req.Device, "kind", rhal.KindString(req.Kind), "error", errRsp.Message)
	}

	rsp := rhal.NewResponse(req, kind)

	ctx := c.taskMgr.Context()
	select {
	case <-ctx.Done():
		c.logger.Debug("drop response of closed connection", "id", req.ID)
	case c.sendQueue <- rsp:
	}
}

// senderTask writes one response. A write failure ends the connection.
func (c *serverConn) senderTask(rsp *rhal.Response) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.writeTimeout)); err != nil {
		if !isClosedErr(err) {
			c.logger.Error("failed to set write deadline", "method", "senderTask", "error", err)
		}
		return false
	}

	if err := c.enc.Encode(rsp); err != nil {
		if !isClosedErr(err) {
			c.logger.Error("failed to send response", "method", "senderTask", "id", rsp.ID, "error", err)
		}
		return false
	}

	c.srv.metrics.incResponseSendCount()
	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("response sent", "method", "senderTask", "id", rsp.ID, "kind", rhal.KindString(rsp.Kind))
	}

	return true
}

// closeAsync closes the connection from within one of its own tasks, which must not wait for themselves.
func (c *serverConn) closeAsync() {
	go c.close()
}

func (c *serverConn) close() {
	c.closeOnce.Do(func() {
		c.taskMgr.Stop()
		_ = c.conn.Close()
		c.taskMgr.Wait()

		if c.srv.cfg.releaseOnDisconnect {
			if n := c.srv.reg.ReleaseOwner(c.id); n > 0 {
				c.logger.Info("released bindings of connection", "count", n)
			}
		}

		c.srv.removeConn(c.id)
		c.srv.metrics.decConnActiveGauge()
		c.logger.Info("connection closed")
	})
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
