package webbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptTransport answers each Send with a queue of canned datagrams. The
// reply function sees the decoded request so it can echo the right id.
type scriptTransport struct {
	sent  []rpcRequest
	reply func(req rpcRequest) [][]byte

	pending [][]byte
}

func (t *scriptTransport) Send(payload []byte) error {
	var req rpcRequest
	if err := json.Unmarshal(decodeFrame(payload), &req); err != nil {
		return err
	}
	t.sent = append(t.sent, req)
	t.pending = t.reply(req)
	return nil
}

func (t *scriptTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if len(t.pending) == 0 {
		return nil, ErrTimeout
	}
	next := t.pending[0]
	t.pending = t.pending[1:]
	return next, nil
}

func (t *scriptTransport) Close() error {
	return nil
}

func frame(s string) []byte {
	framed := make([]byte, 0, len(s)*2)
	for _, b := range []byte(s) {
		framed = append(framed, b, 0)
	}
	return framed
}

func TestClientDiscardsStaleCorrelationID(t *testing.T) {
	transport := &scriptTransport{
		reply: func(req rpcRequest) [][]byte {
			return [][]byte{
				frame(`{"id":"999","result":{"totalDevicesReturned":9,"devices":[]}}`),
				frame(fmt.Sprintf(`{"id":%q,"result":{"totalDevicesReturned":1,"devices":[{"key":"INV1","name":"Inverter"}]}}`, req.ID)),
			}
		},
	}
	client := CreateClientWithTransport(transport, time.Second, nil)

	result, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalDevicesReturned)
	require.Len(t, result.Devices, 1)
	assert.Equal(t, "INV1", result.Devices[0].Key)
}

func TestClientSkipsUndecodableDatagram(t *testing.T) {
	transport := &scriptTransport{
		reply: func(req rpcRequest) [][]byte {
			return [][]byte{
				{0xFF, 0x00, 0x01},
				frame(fmt.Sprintf(`{"id":%q,"result":{"overview":[]}}`, req.ID)),
			}
		},
	}
	client := CreateClientWithTransport(transport, time.Second, nil)

	_, err := client.GetPlantOverview(context.Background())
	assert.NoError(t, err)
}

func TestClientDeviceError(t *testing.T) {
	transport := &scriptTransport{
		reply: func(req rpcRequest) [][]byte {
			return [][]byte{
				frame(fmt.Sprintf(`{"id":%q,"error":{"code":300,"message":"General Error"}}`, req.ID)),
			}
		},
	}
	client := CreateClientWithTransport(transport, time.Second, nil)

	_, err := client.GetDevices(context.Background())
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, 300, devErr.Code)
	assert.Equal(t, "General Error", devErr.Message)
}

func TestClientTimesOutWithoutReply(t *testing.T) {
	transport := &scriptTransport{
		reply: func(req rpcRequest) [][]byte { return nil },
	}
	client := CreateClientWithTransport(transport, 50*time.Millisecond, nil)

	_, err := client.GetDevices(context.Background())
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestClientIncrementsRequestID(t *testing.T) {
	transport := &scriptTransport{
		reply: func(req rpcRequest) [][]byte {
			return [][]byte{
				frame(fmt.Sprintf(`{"id":%q,"result":{"overview":[]}}`, req.ID)),
			}
		},
	}
	client := CreateClientWithTransport(transport, time.Second, nil)
	// skip the inter-request gap for the second call
	client.lastCall = time.Now().Add(-2 * minRequestGap)

	_, err := client.GetPlantOverview(context.Background())
	require.NoError(t, err)
	client.lastCall = time.Now().Add(-2 * minRequestGap)
	_, err = client.GetPlantOverview(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.sent, 2)
	assert.Equal(t, "1", transport.sent[0].ID)
	assert.Equal(t, "2", transport.sent[1].ID)
	assert.Equal(t, rpcFormat, transport.sent[0].Format)
}

func TestClientChannelListingUnwrapsDeviceKey(t *testing.T) {
	transport := &scriptTransport{
		reply: func(req rpcRequest) [][]byte {
			return [][]byte{
				frame(fmt.Sprintf(`{"id":%q,"result":{"INV1":["DC","AC"]}}`, req.ID)),
			}
		},
	}
	client := CreateClientWithTransport(transport, time.Second, nil)

	channels, err := client.GetProcessDataChannels(context.Background(), "INV1")
	require.NoError(t, err)
	assert.Equal(t, []string{"DC", "AC"}, channels)

	client.lastCall = time.Now().Add(-2 * minRequestGap)
	_, err = client.GetProcessDataChannels(context.Background(), "INV2")
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}
