package rhal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateID_Unique(t *testing.T) {
	require := require.New(t)

	const goroutines, perGoroutine = 16, 1000
	ids := make(chan uint64, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- GenerateID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]struct{}, goroutines*perGoroutine)
	for id := range ids {
		_, dup := seen[id]
		require.False(dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestGenerateID_Increments(t *testing.T) {
	gen := newIDGenerator()
	first := gen.next()
	require.Equal(t, first+1, gen.next())
}
