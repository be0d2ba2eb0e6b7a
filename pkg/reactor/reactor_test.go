package reactor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/reactor"
)

func TestWaitReadableResumesOnData(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}()

	r, err := reactor.New()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	resumed := make(chan error, 1)
	r.Spawn()
	go func() {
		defer r.Done()
		resumed <- r.WaitReadable(fds[0])
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = unix.Write(fds[1], []byte("x"))
	}()

	go func() {
		_ = r.Run()
	}()

	select {
	case err := <-resumed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitReadable did not resume")
	}
}

func TestSleepForResumesAfterDuration(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	start := time.Now()
	done := make(chan error, 1)
	r.Spawn()
	go func() {
		defer r.Done()
		done <- r.SleepFor((50 * time.Millisecond).Nanoseconds())
	}()

	go func() { _ = r.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("SleepFor did not resume")
	}
}
