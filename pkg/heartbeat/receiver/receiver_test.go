package receiver_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/heartbeat/receiver"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metrics"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/wire"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestBasicReceipt(t *testing.T) {
	sink := metrics.NewAtomicSink()
	var mu sync.Mutex
	var got []models.Heartbeat

	recv := receiver.New(2, sink, func(hb models.Heartbeat) {
		mu.Lock()
		got = append(got, hb)
		mu.Unlock()
	})

	addr := freeAddr(t)
	require.NoError(t, recv.Listen(addr))
	go recv.Run()
	defer recv.Stop()

	conn, err := net.Dial("tcp4", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	frame := wire.Encode(models.Heartbeat{ServerID: 42, IP: "10.0.0.9"})
	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := sink.Snapshot()
		return snap.TotalReceivedMessages == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.EqualValues(t, 42, got[0].ServerID)

	snap := sink.Snapshot()
	require.EqualValues(t, 1, snap.TotalClientsConnected)
	require.EqualValues(t, len(frame), snap.TotalBytesReceived)
}

func TestPartialWriteTolerance(t *testing.T) {
	sink := metrics.NewAtomicSink()
	var mu sync.Mutex
	var count int

	recv := receiver.New(2, sink, func(models.Heartbeat) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	addr := freeAddr(t)
	require.NoError(t, recv.Listen(addr))
	go recv.Run()
	defer recv.Stop()

	conn, err := net.Dial("tcp4", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	frame := wire.Encode(models.Heartbeat{ServerID: 7})
	half := len(frame) / 2

	_, err = conn.Write(frame[:half])
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	_, err = conn.Write(frame[half:])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count, "exactly one heartbeat must be parsed from a frame split across two writes")
}

func TestConcurrentClients(t *testing.T) {
	const clientCount = 50
	sink := metrics.NewAtomicSink()

	recv := receiver.New(4, sink, func(models.Heartbeat) {})

	addr := freeAddr(t)
	require.NoError(t, recv.Listen(addr))
	go recv.Run()
	defer recv.Stop()

	var wg sync.WaitGroup
	for i := 0; i < clientCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn, err := net.Dial("tcp4", addr)
			if err != nil {
				return
			}
			defer func() { _ = conn.Close() }()
			frame := wire.Encode(models.Heartbeat{ServerID: uint64(id)}) //nolint:gosec // test fixture index
			_, _ = conn.Write(frame)
			time.Sleep(50 * time.Millisecond)
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return sink.Snapshot().TotalReceivedMessages >= uint64(clientCount*95/100)
	}, 2*time.Second, 20*time.Millisecond)
}
