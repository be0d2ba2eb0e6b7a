package receiver

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func numCPU() int {
	return runtime.NumCPU()
}

// listenNonBlocking creates, binds, and listens on a non-blocking TCP
// socket with SO_REUSEADDR, matching the original's
// create_listening_socket.
func listenNonBlocking(addr string) (int, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return -1, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	if host != "" && host != "0.0.0.0" {
		ip := net.ParseIP(host)
		if ip == nil {
			_ = unix.Close(fd)
			return -1, fmt.Errorf("invalid bind address %q", host)
		}
		ip4 := ip.To4()
		if ip4 == nil {
			_ = unix.Close(fd)
			return -1, fmt.Errorf("bind address %q is not IPv4", host)
		}
		copy(sa.Addr[:], ip4)
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("bind: %w", err)
	}

	const backlog = 128
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}

	return fd, nil
}

func splitHostPort(addr string) (string, string, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("address %q missing port", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(v.Addr[:])
		return fmt.Sprintf("%s:%d", ip.String(), v.Port)
	default:
		return "unknown"
	}
}
