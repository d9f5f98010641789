package webbox

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// udpEcho answers every datagram with a fixed payload.
func udpEcho(t *testing.T, reply []byte) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, maxDatagramSize)
		for {
			_, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_, _ = conn.WriteToUDP(reply, addr)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func TestUDPTransportRoundTrip(t *testing.T) {
	addr := udpEcho(t, []byte("pong"))

	transport := NewUDPTransport("127.0.0.1", uint(addr.Port))
	defer transport.Close()

	require.NoError(t, transport.Send([]byte("ping")))
	data, err := transport.Receive(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), data)
}

func TestUDPTransportReceiveTimeout(t *testing.T) {
	// a listening socket that never answers
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	transport := NewUDPTransport("127.0.0.1", uint(conn.LocalAddr().(*net.UDPAddr).Port))
	defer transport.Close()

	require.NoError(t, transport.Send([]byte("ping")))
	start := time.Now()
	_, err = transport.Receive(context.Background(), 100*time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestUDPTransportReceiveCancel(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	transport := NewUDPTransport("127.0.0.1", uint(conn.LocalAddr().(*net.UDPAddr).Port))
	defer transport.Close()

	require.NoError(t, transport.Send([]byte("ping")))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = transport.Receive(ctx, 10*time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestUDPTransportCloseUnblocksReceive(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	transport := NewUDPTransport("127.0.0.1", uint(conn.LocalAddr().(*net.UDPAddr).Port))
	require.NoError(t, transport.Send([]byte("ping")))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = transport.Close()
	}()

	start := time.Now()
	_, err = transport.Receive(context.Background(), 10*time.Second)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestUDPTransportClosed(t *testing.T) {
	transport := NewUDPTransport("127.0.0.1", DefaultPort)
	require.NoError(t, transport.Close())

	assert.True(t, errors.Is(transport.Send([]byte("x")), ErrClosed))
	_, err := transport.Receive(context.Background(), time.Second)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.NoError(t, transport.Close())
}

func TestClientAgainstUDPResponder(t *testing.T) {
	reply := frame(`{"id":"1","result":{"totalDevicesReturned":0,"devices":[]}}`)
	addr := udpEcho(t, reply)

	client, err := CreateClient("127.0.0.1", uint(addr.Port), time.Second, nil)
	require.NoError(t, err)
	defer client.Close()

	result, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalDevicesReturned)
}

func TestCreateClientRequiresHost(t *testing.T) {
	_, err := CreateClient("", 0, 0, nil)
	assert.Error(t, err)
}
