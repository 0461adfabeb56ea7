package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-rhal/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(context.Background(), logger.NewPermissiveMockLogger())
}

func TestManager_StartStopWait(t *testing.T) {
	require := require.New(t)
	mgr := newTestManager(t)

	var runs atomic.Int32
	var exited atomic.Bool
	require.NoError(mgr.StartReceiver("loop", func() bool {
		runs.Add(1)
		time.Sleep(time.Millisecond)
		return true
	}, func() { exited.Store(true) }))

	require.Eventually(func() bool { return runs.Load() > 3 }, time.Second, time.Millisecond)
	require.Equal(1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()

	require.True(exited.Load())
	require.Equal(0, mgr.TaskCount())

	// re-armed after Wait
	require.NoError(mgr.Start("once", func() bool { return false }))
	mgr.Wait()
}

func TestManager_StartAfterStop(t *testing.T) {
	require := require.New(t)
	mgr := newTestManager(t)

	mgr.Stop()
	require.ErrorIs(mgr.Start("late", func() bool { return false }), ErrStopped)
	require.ErrorIs(mgr.Go("late", func() {}), ErrStopped)
}

func TestManager_GoFromTaskDuringWait(t *testing.T) {
	require := require.New(t)
	mgr := newTestManager(t)

	release := make(chan struct{})
	goErr := make(chan error, 1)
	require.NoError(mgr.Go("spawner", func() {
		<-release
		goErr <- mgr.Go("child", func() {})
	}))

	mgr.Stop()
	waited := make(chan struct{})
	go func() {
		mgr.Wait()
		close(waited)
	}()

	// let Wait block on the spawner before it starts its child
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.ErrorIs(<-goErr, ErrStopped)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		require.FailNow("Wait did not return")
	}
	require.Equal(0, mgr.TaskCount())
}

func TestManager_ParentCancel(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewManager(ctx, logger.NewPermissiveMockLogger())
	require.NoError(mgr.Start("loop", func() bool {
		time.Sleep(time.Millisecond)
		return true
	}))

	cancel()
	mgr.Wait()
	require.Equal(0, mgr.TaskCount())
}

func TestStartSender(t *testing.T) {
	require := require.New(t)
	mgr := newTestManager(t)

	input := make(chan int, 4)
	var sum atomic.Int32
	done := make(chan struct{})
	require.NoError(StartSender(mgr, "sender", func(v int) bool {
		sum.Add(int32(v))
		return v != 0
	}, func() { close(done) }, input))

	input <- 1
	input <- 2
	input <- 3
	input <- 0

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender did not exit")
	}
	require.Equal(int32(6), sum.Load())

	require.Error(StartSender[int](mgr, "nil", func(int) bool { return true }, nil, nil))
}

func TestManager_RecoversPanic(t *testing.T) {
	require := require.New(t)
	mgr := newTestManager(t)

	require.NoError(mgr.Go("panics", func() { panic("boom") }))
	mgr.Wait()
	require.Equal(0, mgr.TaskCount())
}
