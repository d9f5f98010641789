package webbox

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	// DefaultPort is the UDP port the Webbox RPC service listens on.
	DefaultPort = 34268
	// DefaultTimeout bounds the wait for a response datagram.
	DefaultTimeout = 5 * time.Second

	maxDatagramSize = 64 * 1024
)

// Transport moves raw request/response payloads to and from one device.
type Transport interface {
	Send(payload []byte) error
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// UDPTransport owns a single connected UDP socket per device instance.
// The socket is opened lazily on first use and reused across calls.
type UDPTransport struct {
	addr string

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool
}

func NewUDPTransport(host string, port uint) *UDPTransport {
	return &UDPTransport{
		addr: net.JoinHostPort(host, fmt.Sprintf("%d", port)),
	}
}

func (t *UDPTransport) open() (*net.UDPConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if t.conn != nil {
		return t.conn, nil
	}
	raddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

func (t *UDPTransport) Send(payload []byte) error {
	conn, err := t.open()
	if err != nil {
		return err
	}
	_, err = conn.Write(payload)
	return err
}

// Receive waits for the next datagram from the device. The wait is bounded
// by timeout and can be interrupted early through ctx.
func (t *UDPTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	conn, err := t.open()
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	// poke the read deadline so ctx cancellation does not wait out the timeout
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	buf := make([]byte, maxDatagramSize)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return buf[:n], nil
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn == nil {
		return nil
	}
	conn := t.conn
	t.conn = nil
	return conn.Close()
}
