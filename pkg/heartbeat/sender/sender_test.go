package sender_test

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/heartbeat/sender"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/reactor"
)

func TestSenderEmitsFramedHeartbeats(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	r, err := reactor.New()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	s := sender.New(r, 1, "127.0.0.1", ln.Addr().String(), 20*time.Millisecond, func() (float64, float64, float64, float64) {
		return 10, 100, 1000, 5
	})

	stop := make(chan struct{})
	runErr := make(chan error, 1)
	r.Spawn()
	go func() {
		defer r.Done()
		runErr <- s.Run(stop)
	}()

	go func() { _ = r.Run() }()

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("sender never connected")
	}
	defer func() { _ = conn.Close() }()

	var lenBuf [4]byte
	_, err = io.ReadFull(conn, lenBuf[:])
	require.NoError(t, err)
	n := binary.BigEndian.Uint32(lenBuf[:])
	require.Greater(t, n, uint32(0))
	require.Less(t, n, uint32(1<<20))

	body := make([]byte, n)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)

	close(stop)
}
