package wire_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/wire"
)

func sampleHeartbeat() models.Heartbeat {
	return models.Heartbeat{
		ServerID:         42,
		IP:               "10.0.0.5",
		Timestamp:        time.Unix(1700000000, 123000),
		CPUUsage:         37.5,
		StorageUsed:      1024,
		StorageTotal:     4096,
		NetworkBandwidth: 12.25,
	}
}

func TestRoundTripFraming(t *testing.T) {
	hb := sampleHeartbeat()
	frame := wire.Encode(hb)

	got, err := wire.ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)

	assert.Equal(t, hb.ServerID, got.ServerID)
	assert.Equal(t, hb.IP, got.IP)
	assert.Equal(t, hb.Timestamp.Unix(), got.Timestamp.Unix())
	assert.Equal(t, hb.CPUUsage, got.CPUUsage)
	assert.Equal(t, hb.StorageUsed, got.StorageUsed)
	assert.Equal(t, hb.StorageTotal, got.StorageTotal)
	assert.Equal(t, hb.NetworkBandwidth, got.NetworkBandwidth)
}

func TestStreamReassemblyArbitraryChunking(t *testing.T) {
	var buf bytes.Buffer
	const n = 5
	for i := 0; i < n; i++ {
		hb := sampleHeartbeat()
		hb.ServerID = uint64(i)
		buf.Write(wire.Encode(hb))
	}

	full := buf.Bytes()
	// Split into arbitrary 3-byte pieces fed through a pipe-like reader to
	// exercise ReadFrame's io.ReadFull-based accumulation.
	r := &chunkedReader{data: full, step: 3}

	for i := 0; i < n; i++ {
		hb, err := wire.ReadFrame(r)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), hb.ServerID) //nolint:gosec // test fixture index
	}
}

func TestDecodeRejectsMissingServerID(t *testing.T) {
	body := []byte{} // no fields at all
	_, err := wire.Decode(body)
	require.Error(t, err)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var lenBuf [4]byte
	lenBuf[0] = 0xFF
	lenBuf[1] = 0xFF
	lenBuf[2] = 0xFF
	lenBuf[3] = 0xFF
	_, err := wire.ReadFrame(bytes.NewReader(lenBuf[:]))
	require.ErrorIs(t, err, wire.ErrOversizedLength)
}

func TestReadFrameRejectsTruncatedBody(t *testing.T) {
	frame := wire.Encode(sampleHeartbeat())
	truncated := frame[:len(frame)-2]
	_, err := wire.ReadFrame(bytes.NewReader(truncated))
	require.Error(t, err)
}

// TestDecodeRejectsOversizedStringLength feeds a crafted IP-field length
// that decodes to a full 10-byte varint in [2^63, 2^64): cast to int on a
// 64-bit platform that lands negative, which must be rejected outright
// rather than reaching the slice expression that index would panic on.
func TestDecodeRejectsOversizedStringLength(t *testing.T) {
	body := []byte{
		1, 1, 42, // tagServerID, typeVarUint, value 42 (required field)
		2, 2, // tagIP, typeString
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01, // varint for 2^64-1
	}
	_, err := wire.Decode(body)
	require.Error(t, err)
}

// chunkedReader serves data in fixed-size pieces regardless of the
// requested read length, to exercise partial-read accumulation.
type chunkedReader struct {
	data []byte
	step int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.step
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}
