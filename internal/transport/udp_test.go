package transport

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

type fakeConn struct {
	writes   [][]byte
	writeErr error
	closed   bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	cp := append([]byte(nil), p...)
	c.writes = append(c.writes, cp)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestNewUDP_DialsResolvedAddr(t *testing.T) {
	var gotNetwork string
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}

	resolve := func(network, address string) (*net.UDPAddr, error) {
		return net.ResolveUDPAddr(network, address)
	}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		gotNetwork = network
		gotRaddr = raddr
		return fc, nil
	}

	u, err := newUDP("127.0.0.1:4000", resolve, dial)
	if err != nil {
		t.Fatalf("newUDP() error: %v", err)
	}
	defer u.Close()

	if gotNetwork != "udp" {
		t.Fatalf("network=%q want %q", gotNetwork, "udp")
	}
	if gotRaddr == nil || gotRaddr.Port != 4000 || !gotRaddr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("raddr=%v want 127.0.0.1:4000", gotRaddr)
	}
}

func TestNewUDP_ResolveError(t *testing.T) {
	resolve := func(network, address string) (*net.UDPAddr, error) {
		return nil, errors.New("no such host")
	}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		t.Fatalf("dial should not be called")
		return nil, nil
	}
	if _, err := newUDP("bogus:1", resolve, dial); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUDP_TryWrite(t *testing.T) {
	fc := &fakeConn{}
	u := &UDP{dest: "x", conn: fc}

	n, err := u.TryWrite([]byte{1, 2, 3})
	if err != nil || n != 3 {
		t.Fatalf("TryWrite()=%d,%v want 3,nil", n, err)
	}
	if len(fc.writes) != 1 || !bytes.Equal(fc.writes[0], []byte{1, 2, 3}) {
		t.Fatalf("writes=%v", fc.writes)
	}

	// Empty writes never hit the socket.
	n, err = u.TryWrite(nil)
	if err != nil || n != 0 {
		t.Fatalf("TryWrite(nil)=%d,%v want 0,nil", n, err)
	}
	if len(fc.writes) != 1 {
		t.Fatalf("empty write hit the socket")
	}
}

func TestUDP_TryReadAlwaysEmpty(t *testing.T) {
	u := &UDP{conn: &fakeConn{}}
	var buf [16]byte
	n, err := u.TryRead(buf[:])
	if n != 0 || err != nil {
		t.Fatalf("TryRead()=%d,%v want 0,nil", n, err)
	}
}

func TestUDP_CloseIdempotent(t *testing.T) {
	fc := &fakeConn{}
	u := &UDP{conn: fc}
	if err := u.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !fc.closed {
		t.Fatalf("conn not closed")
	}
	if err := u.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}
