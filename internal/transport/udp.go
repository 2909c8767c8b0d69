package transport

import (
	"fmt"
	"net"
)

// UDP is a write-only telemetry fan-out to a fixed destination (unicast or
// broadcast). Inbound commands do not arrive this way; TryRead always
// reports nothing pending.
type UDP struct {
	dest string
	conn udpConn
}

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

func OpenUDP(dest string) (*UDP, error) {
	return newUDP(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newUDP(dest string, resolve resolveFunc, dial dialFunc) (*UDP, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", dest, err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial udp %s: %w", dest, err)
	}
	return &UDP{dest: dest, conn: conn}, nil
}

func (u *UDP) TryWrite(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return u.conn.Write(p)
}

func (u *UDP) TryRead(p []byte) (int, error) {
	return 0, nil
}

func (u *UDP) Close() error {
	if u == nil || u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}
