package sender

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// resolveAndSocket resolves addr ("host:port") to an IPv4 sockaddr and
// creates a non-blocking TCP socket, without blocking on DNS if addr is
// already a literal IP.
func resolveAndSocket(addr string) (unix.Sockaddr, int, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return nil, -1, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, -1, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return nil, -1, fmt.Errorf("resolve %q: %w", host, err)
		}
		ip = resolved.IP
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return nil, -1, fmt.Errorf("address %q is not IPv4", host)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, -1, fmt.Errorf("socket: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)

	return sa, fd, nil
}

func splitHostPort(addr string) (string, string, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("address %q missing port", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}
