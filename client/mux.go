package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-rhal/internal/task"
	"github.com/arloliu/go-rhal/internal/timer"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

type result struct {
	kind rhal.ResponseKind
	err  error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Mux multiplexes concurrent requests over one connection and routes each response
// to the call that issued the request with the same id.
//
// A Mux owns two tasks: a sender that writes queued requests, and a receiver that
// decodes responses and resolves pending calls. Every call ends with exactly one of
// its response, rhal.ErrTimeout, the caller's context error or rhal.ErrConnClosed.
type Mux struct {
	cfg    *Config
	logger logger.Logger
	conn   io.ReadWriteCloser

	enc       *rhal.Encoder
	dec       *rhal.Decoder
	taskMgr   *task.Manager
	sendQueue chan *rhal.Request

	pending *xsync.MapOf[uint64, chan result]

	done      chan struct{}
	closeOnce sync.Once

	metrics Metrics
}

// NewMux creates a Mux over conn and starts its sender and receiver tasks.
//
// The Mux owns conn from then on and closes it on Close or on the first transport error.
func NewMux(ctx context.Context, conn io.ReadWriteCloser, cfg *Config) (*Mux, error) {
	if cfg == nil {
		return nil, rhal.ErrConfigNil
	}

	m := &Mux{
		cfg:       cfg,
		logger:    cfg.logger,
		conn:      conn,
		enc:       rhal.NewEncoder(conn),
		dec:       rhal.NewDecoder(conn),
		sendQueue: make(chan *rhal.Request, cfg.senderQueueSize),
		pending:   xsync.NewMapOf[uint64, chan result](),
		done:      make(chan struct{}),
	}
	m.taskMgr = task.NewManager(ctx, m.logger)

	if err := task.StartSender(m.taskMgr, "senderTask", m.senderTask, m.shutdown, m.sendQueue); err != nil {
		m.shutdown()
		return nil, err
	}
	if err := m.taskMgr.StartReceiver("receiverTask", m.receiverTask, m.shutdown); err != nil {
		_ = m.Close()
		return nil, err
	}

	return m, nil
}

// Metrics returns the connection metrics.
func (m *Mux) Metrics() *Metrics { return &m.metrics }

// Pending returns the number of calls waiting for a response.
func (m *Mux) Pending() int { return m.pending.Size() }

// Done returns a channel that is closed when the Mux shuts down.
func (m *Mux) Done() <-chan struct{} { return m.done }

// Request sends a request for device and waits for its response.
//
// An rhal.ErrorRsp answer is returned as *rhal.RemoteError, every other answer is returned as is.
// The call fails with rhal.ErrTimeout when no answer arrives within the request timeout,
// with the context's error when ctx ends first, and with rhal.ErrConnClosed when the
// connection closes first. A timed out or canceled call is forgotten at once, and an
// answer arriving later is dropped.
func (m *Mux) Request(ctx context.Context, device string, kind rhal.RequestKind) (rhal.ResponseKind, error) {
	if kind == nil {
		return nil, errors.New("request kind is nil")
	}

	select {
	case <-m.done:
		return nil, rhal.ErrConnClosed
	default:
	}

	id, ch := m.addPending()
	req := &rhal.Request{ID: id, Device: device, Kind: kind}

	m.metrics.incInflightCount()
	defer m.metrics.decInflightCount()

	t := timer.Get(m.cfg.requestTimeout)
	defer timer.Put(t)

	select {
	case m.sendQueue <- req:
	case <-t.C:
		return nil, m.timeout(req)
	case <-ctx.Done():
		m.pending.Delete(id)
		return nil, ctx.Err()
	case <-m.done:
		m.pending.Delete(id)
		return nil, rhal.ErrConnClosed
	}

	select {
	case res := <-ch:
		return m.resolve(res)
	case <-t.C:
		return nil, m.timeout(req)
	case <-ctx.Done():
		m.pending.Delete(id)
		return nil, ctx.Err()
	case <-m.done:
		m.pending.Delete(id)
		// the answer may have arrived right before the shutdown
		select {
		case res := <-ch:
			return m.resolve(res)
		default:
			return nil, rhal.ErrConnClosed
		}
	}
}

// addPending registers a result slot under a fresh id, drawing again while the id is outstanding.
func (m *Mux) addPending() (uint64, chan result) {
	ch := make(chan result, 1)
	for {
		id := rhal.GenerateID()
		if _, loaded := m.pending.LoadOrStore(id, ch); !loaded {
			return id, ch
		}
	}
}

func (m *Mux) resolve(res result) (rhal.ResponseKind, error) {
	if res.err != nil {
		return nil, res.err
	}
	if errRsp, ok := res.kind.(rhal.ErrorRsp); ok {
		return nil, &rhal.RemoteError{Message: errRsp.Message}
	}
	return res.kind, nil
}

func (m *Mux) timeout(req *rhal.Request) error {
	m.pending.Delete(req.ID)
	m.metrics.incTimeoutCount()
	m.logger.Warn("request timeout", "method", "Request", "id", req.ID, "device", req.Device,
		"kind", rhal.KindString(req.Kind), "timeout", m.cfg.requestTimeout)

	return rhal.ErrTimeout
}

// Close shuts the Mux down, fails every pending call with rhal.ErrConnClosed,
// and waits for the sender and receiver tasks to exit.
func (m *Mux) Close() error {
	m.shutdown()
	m.taskMgr.Wait()
	return nil
}

// shutdown may run inside the Mux's own tasks, so it must not wait for them.
func (m *Mux) shutdown() {
	m.closeOnce.Do(func() {
		m.logger.Debug("shutdown connection", "pending", m.pending.Size())

		close(m.done)
		m.taskMgr.Stop()
		_ = m.conn.Close()

		m.pending.Range(func(id uint64, _ chan result) bool {
			if ch, ok := m.pending.LoadAndDelete(id); ok {
				ch <- result{err: rhal.ErrConnClosed}
			}
			return true
		})
	})
}

func (m *Mux) senderTask(req *rhal.Request) bool {
	if wd, ok := m.conn.(writeDeadliner); ok {
		if err := wd.SetWriteDeadline(time.Now().Add(m.cfg.writeTimeout)); err != nil {
			if !isClosedErr(err) {
				m.logger.Error("failed to set write deadline", "method", "senderTask", "error", err)
			}
			return false
		}
	}

	if err := m.enc.Encode(req); err != nil {
		if !isClosedErr(err) {
			m.logger.Error("failed to send request", "method", "senderTask", "id", req.ID, "error", err)
		}
		return false
	}

	m.metrics.incRequestSendCount()
	if m.logger.Level() == logger.DebugLevel {
		m.logger.Debug("request sent", "method", "senderTask", "id", req.ID, "device", req.Device, "kind", rhal.KindString(req.Kind))
	}

	return true
}

func (m *Mux) receiverTask() bool {
	var rsp rhal.Response
	if err := m.dec.Decode(&rsp); err != nil {
		if rhal.IsMalformed(err) {
			m.metrics.incDecodeErrCount()
			m.logger.Warn("drop malformed response", "method", "receiverTask", "error", err)
			return true
		}

		if !isClosedErr(err) {
			m.logger.Error("failed to read response", "method", "receiverTask", "error", err)
		}
		return false
	}

	m.metrics.incResponseRecvCount()

	ch, ok := m.pending.LoadAndDelete(rsp.ID)
	if !ok {
		m.metrics.incResponseDropCount()
		m.logger.Warn("drop response with unknown id", "method", "receiverTask", "id", rsp.ID, "kind", rhal.KindString(rsp.Kind))
		return true
	}

	if m.logger.Level() == logger.DebugLevel {
		m.logger.Debug("response received", "method", "receiverTask", "id", rsp.ID, "kind", rhal.KindString(rsp.Kind))
	}

	// one slot, and only the receiver or shutdown ever sends after a LoadAndDelete
	ch <- result{kind: rsp.Kind}

	return true
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
