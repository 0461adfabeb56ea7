// Package task manages the goroutines that pump frames in and out of a connection.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-rhal/logger"
)

// ErrStopped is returned when a task is started on a stopped Manager.
var ErrStopped = errors.New("task manager already stopped")

const startTimeout = 5 * time.Second

// Func is the body of a looping task. It returns true to run again, false to stop the goroutine.
type Func func() bool

// CancelFunc is called once when a task's goroutine exits, for any reason.
type CancelFunc func()

// Manager manages the lifecycle of a group of goroutines sharing one cancellation scope.
//
// Stop cancels every task, Wait blocks until all of them returned and re-arms the
// manager so it can be reused:
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.StartReceiver("receiver", recvOne, onRecvExit)
//	_ = task.StartSender(mgr, "sender", sendOne, nil, queue)
//	...
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel, and task creation against Stop()
	waitMu sync.Mutex   // serialize Wait()
}

// NewManager creates a Manager whose tasks are canceled when ctx is done.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs fn in a loop on a new goroutine until it returns false or the manager stops.
func (mgr *Manager) Start(name string, fn Func) error {
	return mgr.StartReceiver(name, fn, nil)
}

// StartReceiver is like Start, and calls cancelFn when the goroutine exits.
func (mgr *Manager) StartReceiver(name string, fn Func, cancelFn CancelFunc) error {
	mgr.logger.Debug("start task", "name", name)

	starter := mgr.newStarter(name)
	if err := starter.run(func() {
		if cancelFn != nil {
			defer cancelFn()
		}
		mgr.loop(name, fn)
	}); err != nil {
		return err
	}

	return starter.waitForStart()
}

// StartSender starts a goroutine that calls fn for every item received from input.
//
// The goroutine exits when fn returns false, input is closed, or the manager stops.
// cancelFn, when not nil, is called on exit.
func StartSender[T any](mgr *Manager, name string, fn func(T) bool, cancelFn CancelFunc, input <-chan T) error {
	mgr.logger.Debug("start sender task", "name", name)

	if input == nil {
		return fmt.Errorf("input channel of %s is nil", name)
	}

	starter := mgr.newStarter(name)
	if err := starter.run(func() {
		if cancelFn != nil {
			defer cancelFn()
		}

		for {
			ctx := mgr.Context()
			select {
			case <-ctx.Done():
				return
			case item, ok := <-input:
				if !ok {
					mgr.logger.Debug("input channel closed", "name", name)
					return
				}
				if !mgr.callWithRecover(name, func() bool { return fn(item) }) {
					return
				}
			}
		}
	}); err != nil {
		return err
	}

	return starter.waitForStart()
}

// Go runs fn once on a new goroutine tracked by the manager. A panic in fn is logged and recovered.
func (mgr *Manager) Go(name string, fn func()) error {
	starter := mgr.newStarter(name)
	if err := starter.run(func() {
		mgr.callWithRecover(name, func() bool {
			fn()
			return false
		})
	}); err != nil {
		return err
	}

	return starter.waitForStart()
}

// Stop signals all running goroutines to exit.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate, then re-arms the manager.
//
// A task may start other tasks while Wait runs. Once Stop returned, those starts fail
// with ErrStopped.
func (mgr *Manager) Wait() {
	mgr.waitMu.Lock()
	defer mgr.waitMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) callWithRecover(name string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}

func (mgr *Manager) loop(name string, fn Func) {
	for {
		ctx := mgr.Context()
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecover(name, fn) {
				return
			}
		}
	}
}

type starter struct {
	mgr     *Manager
	name    string
	started chan struct{}
}

func (mgr *Manager) newStarter(name string) *starter {
	return &starter{mgr: mgr, name: name, started: make(chan struct{})}
}

// run spawns body unless the manager is stopped. The check and wg.Add happen under mu,
// so no task is added after Stop returned.
func (s *starter) run(body func()) error {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()

	select {
	case <-s.mgr.ctx.Done():
		return fmt.Errorf("start %s: %w", s.name, ErrStopped)
	default:
	}

	s.mgr.wg.Add(1)
	s.mgr.count.Add(1)

	go func() {
		defer s.mgr.wg.Done()
		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug("task terminated", "name", s.name, "task_count", s.mgr.TaskCount())
		}()

		close(s.started)
		body()
	}()

	return nil
}

func (s *starter) waitForStart() error {
	select {
	case <-s.started:
		return nil
	case <-time.After(startTimeout):
		return fmt.Errorf("timeout waiting for %s to start", s.name)
	}
}
