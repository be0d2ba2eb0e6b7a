// Package receiver implements the heartbeat receiver: one acceptor
// goroutine, a fixed worker pool draining a ready queue, and one janitor
// goroutine sweeping stale connections, all built directly on epoll via
// golang.org/x/sys/unix.
package receiver

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metrics"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/wire"
)

const (
	// DefaultJanitorInterval is how often the janitor sweeps the
	// connections table for stale entries.
	DefaultJanitorInterval = 30 * time.Second
	// DefaultClientTimeout is how long without a heartbeat before a
	// connection is considered stale and removed.
	DefaultClientTimeout = 60 * time.Second
	// acceptPollTimeoutMs bounds how long the acceptor blocks in epoll_wait
	// so shutdown is observed promptly.
	acceptPollTimeoutMs = 200
)

// clientInfo is the receiver-owned per-connection state. Workers only ever
// hold a shared, non-owning reference while processing one readiness event.
type clientInfo struct {
	fd            int
	addr          string
	lastHeartbeat time.Time
	decodeBuf     []byte // accumulates partial frames across readiness events
}

// Handler receives each successfully decoded heartbeat, in arrival order
// per connection.
type Handler func(models.Heartbeat)

// Receiver is the heartbeat receiver.
type Receiver struct {
	epfd       int
	listenFd   int
	numWorkers int
	sink       metrics.Sink
	handler    Handler

	clientTimeout   time.Duration
	janitorInterval time.Duration

	tableMu sync.RWMutex
	clients map[int]*clientInfo

	readyQueue chan int

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Receiver with numWorkers worker goroutines. If numWorkers
// is <= 0 it defaults to the number of logical CPUs.
func New(numWorkers int, sink metrics.Sink, handler Handler) *Receiver {
	if numWorkers <= 0 {
		numWorkers = defaultWorkerCount()
	}
	return &Receiver{
		listenFd:        -1,
		numWorkers:      numWorkers,
		sink:            sink,
		handler:         handler,
		clientTimeout:   DefaultClientTimeout,
		janitorInterval: DefaultJanitorInterval,
		clients:         make(map[int]*clientInfo),
		readyQueue:      make(chan int, 4096),
		stop:            make(chan struct{}),
	}
}

// Listen binds and listens on addr ("host:port" or ":port"), creating the
// epoll instance the acceptor and workers share. Bind/listen/epoll-creation
// failures are fatal.
func (r *Receiver) Listen(addr string) error {
	fd, err := listenNonBlocking(addr)
	if err != nil {
		return err
	}
	r.listenFd = fd

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return err
	}
	r.epfd = epfd

	event := unix.EpollEvent{Fd: int32(r.listenFd), Events: unix.EPOLLIN} //nolint:gosec // fd is a small OS descriptor
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, r.listenFd, &event); err != nil {
		return err
	}

	return nil
}

// Run starts the acceptor, janitor, and worker pool, and blocks until Stop
// is called.
func (r *Receiver) Run() {
	for i := 0; i < r.numWorkers; i++ {
		r.wg.Add(1)
		go r.workerLoop()
	}

	r.wg.Add(1)
	go r.janitorLoop()

	r.wg.Add(1)
	go r.acceptorLoop()

	<-r.stop
}

// Stop signals the acceptor, workers, and janitor to drain and exit, then
// waits for them and closes every remaining client descriptor. Idempotent.
func (r *Receiver) Stop() {
	select {
	case <-r.stop:
		return // already stopped
	default:
		close(r.stop)
	}
	r.wg.Wait()

	r.tableMu.Lock()
	for fd, ci := range r.clients {
		_ = unix.Close(ci.fd)
		delete(r.clients, fd)
	}
	r.tableMu.Unlock()

	if r.listenFd >= 0 {
		_ = unix.Close(r.listenFd)
	}
	if r.epfd >= 0 {
		_ = unix.Close(r.epfd)
	}
}

// acceptorLoop owns the listening descriptor, polls epoll with a short
// timeout so Stop is observed, accepts new connections in a loop until
// EAGAIN, and pushes readiness on existing connections onto the ready
// queue.
func (r *Receiver) acceptorLoop() {
	defer r.wg.Done()

	events := make([]unix.EpollEvent, 128)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, acceptPollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Error().Err(err).Msg("receiver: epoll_wait failed")
			continue
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.listenFd {
				r.acceptLoop()
				continue
			}
			r.enqueueReady(fd)
		}
	}
}

// acceptLoop accepts in a loop until EAGAIN, matching accept4-until-drained
// from the original acceptor.
func (r *Receiver) acceptLoop() {
	for {
		connFd, sa, err := unix.Accept4(r.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			log.Warn().Err(err).Msg("receiver: accept failed, skipping")
			return
		}

		addr := sockaddrString(sa)
		ci := &clientInfo{fd: connFd, addr: addr, lastHeartbeat: time.Now()}

		r.tableMu.Lock()
		r.clients[connFd] = ci
		r.tableMu.Unlock()

		r.sink.IncClientsConnected()

		event := unix.EpollEvent{ //nolint:gosec // fd is a small OS descriptor
			Fd:     int32(connFd),
			Events: unix.EPOLLIN | unix.EPOLLONESHOT | unix.EPOLLRDHUP,
		}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, connFd, &event); err != nil {
			log.Warn().Err(err).Msg("receiver: epoll_ctl add failed, dropping connection")
			r.removeClient(connFd)
		}
	}
}

func (r *Receiver) enqueueReady(fd int) {
	select {
	case r.readyQueue <- fd:
	case <-r.stop:
	}
}

// workerLoop blocks on the ready queue; on wake, drains the descriptor with
// non-blocking receive until EAGAIN, feeding bytes through the
// per-connection streaming decoder, then re-arms the one-shot subscription.
func (r *Receiver) workerLoop() {
	defer r.wg.Done()

	buf := make([]byte, 64*1024)
	for {
		var fd int
		select {
		case fd = <-r.readyQueue:
		case <-r.stop:
			// drain whatever is still queued before exiting
			for {
				select {
				case fd = <-r.readyQueue:
					r.processReady(fd, buf)
				default:
					return
				}
			}
		}

		start := time.Now()
		r.processReady(fd, buf)
		r.sink.ObserveProcessingTime(time.Since(start))
	}
}

func (r *Receiver) processReady(fd int, buf []byte) {
	r.tableMu.RLock()
	ci, ok := r.clients[fd]
	r.tableMu.RUnlock()
	if !ok {
		return
	}

	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			r.sink.AddBytesReceived(int64(n))
			ci.decodeBuf = append(ci.decodeBuf, buf[:n]...)
			ci.lastHeartbeat = time.Now()
			r.drainFrames(ci)
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			r.sink.IncError("read_error")
			r.removeClient(fd)
			return
		}
		if n == 0 {
			r.sink.IncError("peer_closed")
			r.removeClient(fd)
			return
		}
	}

	r.rearm(fd)
}

// drainFrames decodes as many complete frames as are currently buffered,
// handing each off to the handler in arrival order.
func (r *Receiver) drainFrames(ci *clientInfo) {
	for {
		if len(ci.decodeBuf) < wire.LengthPrefixSize {
			return
		}
		length := uint32(ci.decodeBuf[0])<<24 | uint32(ci.decodeBuf[1])<<16 | //nolint:gosec // reconstructing big-endian length
			uint32(ci.decodeBuf[2])<<8 | uint32(ci.decodeBuf[3])

		if length > wire.MaxPayloadSize {
			r.sink.IncError("oversized_length")
			r.removeClient(ci.fd)
			return
		}

		total := wire.LengthPrefixSize + int(length)
		if len(ci.decodeBuf) < total {
			return // wait for more bytes
		}

		body := ci.decodeBuf[wire.LengthPrefixSize:total]
		hb, err := wire.Decode(body)
		ci.decodeBuf = ci.decodeBuf[total:]

		if err != nil {
			r.sink.IncError("malformed_frame")
			continue
		}

		r.sink.IncMessagesReceived()
		if r.handler != nil {
			r.handler(hb)
		}
	}
}

func (r *Receiver) rearm(fd int) {
	event := unix.EpollEvent{Fd: int32(fd), Events: unix.EPOLLIN | unix.EPOLLONESHOT | unix.EPOLLRDHUP} //nolint:gosec // fd is a small OS descriptor
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		r.removeClient(fd)
	}
}

// removeClient atomically deregisters fd from the multiplexer, closes it,
// and drops it from the connections table.
func (r *Receiver) removeClient(fd int) {
	r.tableMu.Lock()
	ci, ok := r.clients[fd]
	if ok {
		delete(r.clients, fd)
	}
	r.tableMu.Unlock()
	if !ok {
		return
	}

	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	_ = unix.Close(ci.fd)
	r.sink.DecClientsConnected()
}

// janitorLoop scans the connections table every janitorInterval, removing
// clients whose last heartbeat is older than clientTimeout. Removes each
// by its own lock acquisition, not one big lock, to bound worst-case
// latency.
func (r *Receiver) janitorLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweepStaleClients()
		}
	}
}

func (r *Receiver) sweepStaleClients() {
	now := time.Now()

	r.tableMu.RLock()
	stale := make([]int, 0)
	for fd, ci := range r.clients {
		if now.Sub(ci.lastHeartbeat) > r.clientTimeout {
			stale = append(stale, fd)
		}
	}
	r.tableMu.RUnlock()

	for _, fd := range stale {
		r.removeClient(fd)
	}
}

func defaultWorkerCount() int {
	n := numCPU()
	if n < 1 {
		return 1
	}
	return n
}
