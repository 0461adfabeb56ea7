package rhal

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRawFrame(buf *bytes.Buffer, payload []byte) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	buf.Write(hdr[:])
	buf.Write(payload)
}

func TestCodec_RoundTrip(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	reqs := []*Request{
		NewRequest("/dev/spidev0.0", SpiConnectReq{Baud: 500000, Mode: SpiMode0}),
		NewRequest("/dev/spidev0.0", SpiTransferReq{WriteData: Data{0x9f, 0x00, 0x00}}),
		NewRequest("/sys/class/gpio/gpio17", PinSetReq{Value: true}),
	}
	for _, req := range reqs {
		require.NoError(enc.Encode(req))
	}

	// header carries the payload length
	require.Greater(buf.Len(), 4)
	n := binary.BigEndian.Uint32(buf.Bytes()[:4])
	require.Positive(n)

	dec := NewDecoder(&buf)
	for _, want := range reqs {
		var got Request
		require.NoError(dec.Decode(&got))
		require.Equal(*want, got)
	}

	var req Request
	require.ErrorIs(dec.Decode(&req), io.EOF)
}

func TestDecoder_MalformedPayload(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	writeRawFrame(&buf, []byte("not json"))
	writeRawFrame(&buf, []byte(`{"id":3,"kind":{"type":"nope"}}`))
	writeRawFrame(&buf, []byte(`{"id":4,"kind":{"type":"ok"}}`))

	dec := NewDecoder(&buf)

	var rsp Response
	err := dec.Decode(&rsp)
	require.ErrorIs(err, ErrMalformedMessage)
	require.True(IsMalformed(err))

	err = dec.Decode(&rsp)
	require.ErrorIs(err, ErrMalformedMessage)

	// the stream stays in sync after malformed frames
	require.NoError(dec.Decode(&rsp))
	require.Equal(Response{ID: 4, Kind: OkRsp{}}, rsp)
}

func TestDecoder_InvalidFrameLength(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	_, err := NewDecoder(&buf).ReadFrame()
	require.ErrorIs(err, ErrInvalidFrameLength)
	require.False(IsMalformed(err))

	buf.Reset()
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], MaxFrameSize+1)
	buf.Write(hdr[:])
	_, err = NewDecoder(&buf).ReadFrame()
	require.ErrorIs(err, ErrInvalidFrameLength)
}

func TestDecoder_TruncatedFrame(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 10)
	buf.Write(hdr[:])
	buf.WriteString("abc")

	_, err := NewDecoder(&buf).ReadFrame()
	require.ErrorIs(err, io.ErrUnexpectedEOF)

	buf.Reset()
	buf.Write([]byte{0, 0})
	_, err = NewDecoder(&buf).ReadFrame()
	require.ErrorIs(err, io.ErrUnexpectedEOF)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestEncoder_ConcurrentWriters(t *testing.T) {
	require := require.New(t)

	var out lockedBuffer
	enc := NewEncoder(&out)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_ = enc.Encode(NewRequest("/dev/spidev0.0", SpiWriteReq{WriteData: Data{byte(j)}}))
			}
		}()
	}
	wg.Wait()

	dec := NewDecoder(&out.buf)
	seen := make(map[uint64]struct{})
	for i := 0; i < writers*perWriter; i++ {
		var req Request
		require.NoError(dec.Decode(&req))
		require.Equal(SpiWriteType, req.Kind.Type())
		seen[req.ID] = struct{}{}
	}
	require.Len(seen, writers*perWriter)
}
