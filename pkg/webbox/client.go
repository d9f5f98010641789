package webbox

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// minRequestGap paces RPCs; the device manual asks for spacing between
// consecutive queries.
const minRequestGap = 1 * time.Second

// DeviceClient is the RPC surface the poller depends on. Implemented by
// *Client against a real Webbox and by TestDeviceClient for tests.
type DeviceClient interface {
	GetPlantOverview(ctx context.Context) (*OverviewResult, error)
	GetDevices(ctx context.Context) (*DevicesResult, error)
	GetProcessDataChannels(ctx context.Context, deviceKey string) ([]string, error)
	GetProcessData(ctx context.Context, deviceKey string, channels []string) (*ProcessDataResult, error)
	Close() error
}

// Client speaks the Webbox UDP JSON-RPC protocol over a Transport.
type Client struct {
	transport Transport
	timeout   time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	requestID uint64
	lastCall  time.Time
}

func CreateClient(host string, port uint, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if host == "" {
		return nil, errors.New("webbox: host must not be empty")
	}
	if port == 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport: NewUDPTransport(host, port),
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// CreateClientWithTransport is used by tests and by callers that manage
// the socket themselves.
func CreateClientWithTransport(transport Transport, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport: transport,
		timeout:   timeout,
		logger:    logger,
	}
}

func (c *Client) Close() error {
	return c.transport.Close()
}

// call performs one request/response exchange. Calls are serialized on the
// shared socket; responses with a stale correlation id are discarded and
// the wait continues until the matching one arrives or the bound expires.
func (c *Client) call(ctx context.Context, proc string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	c.lastCall = time.Now()

	c.requestID++
	id := strconv.FormatUint(c.requestID, 10)

	payload, err := encodeFrame(rpcRequest{
		Version: rpcVersion,
		Proc:    proc,
		ID:      id,
		Format:  rpcFormat,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("webbox rpc request", zap.String("proc", proc), zap.String("id", id))
	if err := c.transport.Send(payload); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		data, err := c.transport.Receive(ctx, remaining)
		if err != nil {
			return nil, err
		}
		env, err := decodeEnvelope(data)
		if err != nil {
			c.logger.Warn("webbox rpc discarding undecodable datagram", zap.Error(err))
			continue
		}
		if env.ID != id {
			c.logger.Warn("webbox rpc discarding response with stale id",
				zap.String("expected", id), zap.String("got", env.ID))
			continue
		}
		if env.Error != nil {
			return nil, &DeviceError{Code: env.Error.Code, Message: env.Error.Message}
		}
		return env.Result, nil
	}
}

func (c *Client) pace(ctx context.Context) error {
	wait := minRequestGap - time.Since(c.lastCall)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) GetPlantOverview(ctx context.Context) (*OverviewResult, error) {
	raw, err := c.call(ctx, procGetPlantOverview, nil)
	if err != nil {
		return nil, err
	}
	var result OverviewResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, parseErrorf("overview", "%s", err)
	}
	return &result, nil
}

func (c *Client) GetDevices(ctx context.Context) (*DevicesResult, error) {
	raw, err := c.call(ctx, procGetDevices, nil)
	if err != nil {
		return nil, err
	}
	var result DevicesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, parseErrorf("devices", "%s", err)
	}
	return &result, nil
}

func (c *Client) GetProcessDataChannels(ctx context.Context, deviceKey string) ([]string, error) {
	raw, err := c.call(ctx, procGetProcessDataChannels, map[string]any{"device": deviceKey})
	if err != nil {
		return nil, err
	}
	var result map[string][]string
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, parseErrorf("channels", "%s", err)
	}
	channels, ok := result[deviceKey]
	if !ok {
		return nil, parseErrorf("channels", "device %s missing from channel listing", deviceKey)
	}
	return channels, nil
}

func (c *Client) GetProcessData(ctx context.Context, deviceKey string, channels []string) (*ProcessDataResult, error) {
	params := map[string]any{
		"devices": []map[string]any{
			{"key": deviceKey, "channels": channels},
		},
	}
	raw, err := c.call(ctx, procGetProcessData, params)
	if err != nil {
		return nil, err
	}
	var result ProcessDataResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, parseErrorf("processdata", "%s", err)
	}
	return &result, nil
}
