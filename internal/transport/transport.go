// Package transport carries framed bytes between the scheduler loop and the
// host. All implementations are non-blocking: the loop never waits on a
// slow or absent host.
package transport

// Transport is a byte pipe to the host. TryWrite may write fewer bytes than
// given (the rest of the frame is dropped; the framing layer re-aligns on
// the host side). TryRead returns 0 when nothing is pending.
type Transport interface {
	TryWrite(p []byte) (int, error)
	TryRead(p []byte) (int, error)
	Close() error
}
