package rhal

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
)

// idGenerator hands out request correlation ids.
//
// The starting value is drawn from a cryptographically secure random source so ids of
// different processes do not line up, and each id is derived by atomically incrementing
// the previous one, so a process never issues the same id twice until the uint64 space wraps.
type idGenerator struct {
	id atomic.Uint64
}

func newIDGenerator() *idGenerator {
	inst := &idGenerator{}
	var buf [8]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return inst
	}
	inst.id.Store(binary.LittleEndian.Uint64(buf[:]))
	return inst
}

func (g *idGenerator) next() uint64 {
	return g.id.Add(1)
}

var (
	genInst *idGenerator
	genOnce sync.Once
)

func getIDGenerator() *idGenerator {
	genOnce.Do(func() {
		genInst = newIDGenerator()
	})
	return genInst
}

// GenerateID returns a new request correlation id.
func GenerateID() uint64 {
	return getIDGenerator().next()
}
