package bgpio

import (
	"errors"
	"io"
	"syscall"

	"golang.org/x/sys/unix"
)

// classification mirrors the core spec's §6 soft/hard I/O taxonomy, used
// to pick which FSM event an I/O completion becomes.
type classification int

const (
	classSoft classification = iota
	classHard
	classRetryBelowFSM
)

// classifyIOError classifies an error observed on an already-established
// connection (read/write failure, not a connect attempt): soft errors
// become TCP_connection_closed, everything else becomes TCP_fatal_error.
// EAGAIN/EWOULDBLOCK/EINTR are classRetryBelowFSM: TCPConn.Write reports
// them as a queued write and ReadLoop treats them as a soft close;
// neither retries the call.
func classifyIOError(err error) classification {
	if errors.Is(err, io.EOF) {
		return classSoft
	}
	switch errnoOf(err) {
	case unix.ECONNRESET, unix.ENETDOWN, unix.ENETUNREACH, unix.EPIPE, unix.ETIMEDOUT:
		return classSoft
	case unix.EAGAIN, unix.EINTR:
		return classRetryBelowFSM
	default:
		return classHard
	}
}

// classifyConnectError classifies an error observed while the outbound
// connect attempt itself was in flight: a narrower soft set than
// established-connection I/O, per the core spec's §6 "connect-time soft
// set".
func classifyConnectError(err error) classification {
	switch errnoOf(err) {
	case unix.ECONNREFUSED, unix.ECONNRESET, unix.EHOSTUNREACH, unix.ETIMEDOUT:
		return classSoft
	case unix.EAGAIN, unix.EINTR:
		return classRetryBelowFSM
	default:
		return classHard
	}
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
