package walstream

import (
	"time"

	"golang.org/x/sys/unix"
)

// waitLatchOrSocketImpl is the platform half of WaitLatchOrSocket: one
// poll(2) call across the latch's self-pipe and, optionally, a socket
// file descriptor. This is the piece spec.md §9 calls out by name: "The
// latch primitive should be built on a self-pipe / eventfd / equivalent
// so it composes with socket readiness in one wait call."
func waitLatchOrSocketImpl(l *Latch, sockFD int, timeout time.Duration) (latchSet, sockReady bool, err error) {
	fds := []unix.PollFd{
		{Fd: int32(l.fd()), Events: unix.POLLIN},
	}
	sockSlot := -1
	if sockFD >= 0 {
		fds = append(fds, unix.PollFd{Fd: int32(sockFD), Events: unix.POLLIN})
		sockSlot = 1
	}

	millis := pollInfiniteTimeout
	if timeout > 0 {
		millis = int(timeout.Milliseconds())
		if millis <= 0 {
			millis = 1
		}
	}

	for {
		n, perr := unix.Poll(fds, millis)
		if perr == unix.EINTR {
			continue
		}
		if perr != nil {
			return false, false, perr
		}
		_ = n
		break
	}

	if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		latchSet = l.IsSet()
	}
	if sockSlot >= 0 && fds[sockSlot].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		sockReady = true
	}
	return latchSet, sockReady, nil
}
