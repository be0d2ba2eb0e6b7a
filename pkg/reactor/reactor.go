// Package reactor implements the single-threaded, edge-triggered readiness
// multiplexer used by the heartbeat sender: one goroutine owns an epoll
// instance and a set of pending suspensions, and resumes exactly one waiter
// per readiness event, FIFO within a descriptor+direction pair.
package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// direction identifies which half of a descriptor a waiter is suspended on.
type direction int

const (
	readable direction = iota
	writable
)

// waiter is a single suspended continuation. resume is a buffered,
// capacity-1 channel: the reactor sends on it exactly once to wake the
// suspended goroutine (nil, or an error if the descriptor hung up or
// errored), then the waiter is dropped.
type waiter struct {
	resume chan error
}

// Reactor drives the heartbeat sender's single-threaded cooperative
// readiness model: it owns one epoll fd and dispatches readiness events to
// the goroutine that is currently blocked reading from the resume channel
// of the relevant waiter. Suspension points run on their callers'
// goroutines: they add their waiter to the waiter or timer map under mu,
// register or re-arm the descriptor with epoll, then block on their resume
// channel. Only Run's goroutine waits on the epoll fd and resumes waiters,
// so event dispatch stays single-threaded.
type Reactor struct {
	epfd int

	mu      sync.Mutex
	waiters map[int]map[direction][]*waiter // fd -> direction -> FIFO queue
	timers  map[int]*timerWaiter            // timerfd -> waiter

	tasks   sync.WaitGroup
	active  int
	done    chan struct{}
	closing bool
}

type timerWaiter struct {
	fd     int
	resume chan error
}

// New creates a Reactor with a fresh epoll instance.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{
		epfd:    epfd,
		waiters: make(map[int]map[direction][]*waiter),
		timers:  make(map[int]*timerWaiter),
		done:    make(chan struct{}),
	}, nil
}

// Spawn registers one active task with the reactor. Run returns only once
// every spawned task has called Done.
func (r *Reactor) Spawn() {
	r.mu.Lock()
	r.active++
	r.mu.Unlock()
	r.tasks.Add(1)
}

// Done marks one spawned task as finished.
func (r *Reactor) Done() {
	r.mu.Lock()
	r.active--
	remaining := r.active
	r.mu.Unlock()
	r.tasks.Done()
	if remaining <= 0 {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
}

// Close releases the epoll descriptor. It must be called after Run returns.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

// WaitReadable suspends the calling goroutine until fd is readable or
// hung up. It installs a one-shot epoll subscription; draining to EAGAIN
// after resumption and re-suspending is the caller's responsibility.
func (r *Reactor) WaitReadable(fd int) error {
	return r.wait(fd, readable)
}

// WaitWritable suspends the calling goroutine until fd is writable, used
// for non-blocking connect completion and backpressure.
func (r *Reactor) WaitWritable(fd int) error {
	return r.wait(fd, writable)
}

func (r *Reactor) wait(fd int, dir direction) error {
	w := &waiter{resume: make(chan error, 1)}

	r.mu.Lock()
	if r.waiters[fd] == nil {
		r.waiters[fd] = make(map[direction][]*waiter)
	}
	firstForFD := len(r.waiters[fd][readable])+len(r.waiters[fd][writable]) == 0
	r.waiters[fd][dir] = append(r.waiters[fd][dir], w)
	r.mu.Unlock()

	if firstForFD {
		event := unix.EpollEvent{Fd: int32(fd)} //nolint:gosec // fd is a small OS descriptor
		event.Events = unix.EPOLLONESHOT | unix.EPOLLRDHUP
		if dir == writable {
			event.Events |= unix.EPOLLOUT
		} else {
			event.Events |= unix.EPOLLIN
		}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			r.removeWaiter(fd, dir, w)
			return fmt.Errorf("reactor: epoll_ctl add: %w", err)
		}
	} else {
		r.rearm(fd)
	}

	return <-w.resume
}

// SleepFor suspends the calling goroutine until duration has elapsed,
// implemented via a Linux timerfd registered with the same epoll instance
// used for descriptor readiness, so sleeps and I/O share one wait loop.
func (r *Reactor) SleepFor(ns int64) error {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("reactor: timerfd_create: %w", err)
	}

	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(ns),
	}
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		_ = unix.Close(tfd)
		return fmt.Errorf("reactor: timerfd_settime: %w", err)
	}

	tw := &timerWaiter{fd: tfd, resume: make(chan error, 1)}
	r.mu.Lock()
	r.timers[tfd] = tw
	r.mu.Unlock()

	event := unix.EpollEvent{Fd: int32(tfd), Events: unix.EPOLLIN | unix.EPOLLONESHOT} //nolint:gosec // fd is a small OS descriptor
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, tfd, &event); err != nil {
		r.mu.Lock()
		delete(r.timers, tfd)
		r.mu.Unlock()
		_ = unix.Close(tfd)
		return fmt.Errorf("reactor: epoll_ctl add timer: %w", err)
	}

	err = <-tw.resume
	_ = unix.Close(tfd)
	return err
}

func (r *Reactor) rearm(fd int) {
	r.mu.Lock()
	dirs := r.waiters[fd]
	var events uint32 = unix.EPOLLONESHOT | unix.EPOLLRDHUP
	if len(dirs[readable]) > 0 {
		events |= unix.EPOLLIN
	}
	if len(dirs[writable]) > 0 {
		events |= unix.EPOLLOUT
	}
	r.mu.Unlock()

	event := unix.EpollEvent{Fd: int32(fd), Events: events} //nolint:gosec // fd is a small OS descriptor
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &event)
}

func (r *Reactor) removeWaiter(fd int, dir direction, target *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.waiters[fd][dir]
	for i, w := range list {
		if w == target {
			r.waiters[fd][dir] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Run is the reactor's event loop: it blocks in epoll_wait and resumes
// exactly one FIFO waiter per ready descriptor/direction until every
// spawned task has finished.
func (r *Reactor) Run() error {
	events := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-r.done:
			return nil
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			mask := events[i].Events

			r.mu.Lock()
			if tw, ok := r.timers[fd]; ok {
				delete(r.timers, fd)
				r.mu.Unlock()
				_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
				tw.resume <- nil
				continue
			}
			r.mu.Unlock()

			var hangup error
			if mask&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0 {
				hangup = fmt.Errorf("reactor: fd %d hung up or errored", fd)
			}

			if mask&unix.EPOLLIN != 0 || hangup != nil {
				r.resumeOne(fd, readable, hangup)
			}
			if mask&unix.EPOLLOUT != 0 || hangup != nil {
				r.resumeOne(fd, writable, hangup)
			}
		}
	}
}

func (r *Reactor) resumeOne(fd int, dir direction, resumeErr error) {
	r.mu.Lock()
	list := r.waiters[fd][dir]
	if len(list) == 0 {
		r.mu.Unlock()
		return
	}
	w := list[0]
	r.waiters[fd][dir] = list[1:]
	remaining := len(r.waiters[fd][readable]) + len(r.waiters[fd][writable])
	r.mu.Unlock()

	if remaining > 0 {
		r.rearm(fd)
	} else {
		r.mu.Lock()
		delete(r.waiters, fd)
		r.mu.Unlock()
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}

	w.resume <- resumeErr
}
