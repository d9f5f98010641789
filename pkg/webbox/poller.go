package webbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is the scan cadence used when none is configured.
const DefaultPollInterval = 30 * time.Second

// PollerState tracks the poll loop lifecycle. Stopped is terminal.
type PollerState int32

const (
	PollerIdle PollerState = iota
	PollerPolling
	PollerFailed
	PollerStopped
)

func (s PollerState) String() string {
	switch s {
	case PollerIdle:
		return "idle"
	case PollerPolling:
		return "polling"
	case PollerFailed:
		return "failed"
	case PollerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// plantModel is the device/channel layout discovered once at startup and
// reused for every poll afterwards.
type plantModel struct {
	devices  []DeviceEntry
	channels map[string][]string
}

// Poller drives the periodic scan cycle against one device. Consumers read
// the latest snapshot lock-free through Snapshot(); on a failed cycle the
// previous snapshot stays published so readers see stale data rather than
// none.
type Poller struct {
	client   DeviceClient
	interval time.Duration
	logger   *zap.Logger

	// OnUpdate, when set, is invoked after each successful snapshot swap.
	OnUpdate func(*Snapshot)

	model plantModel

	snapshot atomic.Pointer[Snapshot]
	state    atomic.Int32

	mu          sync.Mutex
	lastSuccess time.Time
	lastError   error
	stopOnce    sync.Once
	stopped     chan struct{}
}

func NewPoller(client DeviceClient, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client:   client,
		interval: interval,
		logger:   logger,
		stopped:  make(chan struct{}),
	}
}

func (p *Poller) State() PollerState {
	return PollerState(p.state.Load())
}

// Snapshot returns the most recently published snapshot, or nil before the
// first successful poll.
func (p *Poller) Snapshot() *Snapshot {
	return p.snapshot.Load()
}

func (p *Poller) LastSuccess() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess
}

func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// Devices exposes the discovered device listing.
func (p *Poller) Devices() []DeviceEntry {
	return p.model.devices
}

// BuildModel discovers the plant layout: the device listing plus the
// channel set of every device and child device. It must complete before
// the first poll and is not retried per cycle because the layout of an
// installation does not change at runtime.
func (p *Poller) BuildModel(ctx context.Context) error {
	devices, err := p.client.GetDevices(ctx)
	if err != nil {
		return err
	}
	model := plantModel{
		devices:  devices.Devices,
		channels: make(map[string][]string),
	}
	if err := p.discoverChannels(ctx, devices.Devices, model.channels); err != nil {
		return err
	}
	p.model = model
	p.logger.Info("webbox plant model built",
		zap.Int("devices", len(model.devices)),
		zap.Int("channel_sets", len(model.channels)))
	return nil
}

func (p *Poller) discoverChannels(ctx context.Context, devices []DeviceEntry, out map[string][]string) error {
	for _, dev := range devices {
		channels, err := p.client.GetProcessDataChannels(ctx, dev.Key)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				p.logger.Warn("webbox device has no channel listing, skipping",
					zap.String("device", dev.Key), zap.Error(err))
				continue
			}
			return err
		}
		out[dev.Key] = channels
		if err := p.discoverChannels(ctx, dev.Children, out); err != nil {
			return err
		}
	}
	return nil
}

// PollOnce runs one full scan cycle: the plant overview plus the process
// data of every known device. On success the new snapshot replaces the
// published one atomically; on a transport or device failure the old
// snapshot is kept and the poller transitions to Failed until a later
// cycle succeeds.
func (p *Poller) PollOnce(ctx context.Context) (*Snapshot, error) {
	if p.State() == PollerStopped {
		return nil, ErrClosed
	}
	p.state.Store(int32(PollerPolling))

	snap, err := p.scan(ctx)
	if err != nil {
		p.mu.Lock()
		p.lastError = err
		p.mu.Unlock()
		if p.State() != PollerStopped {
			p.state.Store(int32(PollerFailed))
		}
		p.logger.Warn("webbox poll cycle failed", zap.Error(err))
		return nil, err
	}

	p.snapshot.Store(snap)
	p.mu.Lock()
	p.lastSuccess = snap.TakenAt
	p.lastError = nil
	p.mu.Unlock()
	if p.State() != PollerStopped {
		p.state.Store(int32(PollerIdle))
	}
	p.logger.Debug("webbox poll cycle done", zap.Int("readings", snap.Len()))

	if p.OnUpdate != nil {
		p.OnUpdate(snap)
	}
	return snap, nil
}

func (p *Poller) scan(ctx context.Context) (*Snapshot, error) {
	at := time.Now()

	overview, err := p.client.GetPlantOverview(ctx)
	if err != nil {
		return nil, err
	}
	plant := PlantNode{
		Overview: ParseOverview(overview, at, p.logger),
	}

	if err := p.fetchProcessData(ctx, p.model.devices, at, &plant); err != nil {
		return nil, err
	}

	return Flatten(plant, at), nil
}

// fetchProcessData issues one GetProcessData call per device key, parents
// and children alike. The device answers only the requested key, so child
// telemetry needs its own request.
func (p *Poller) fetchProcessData(ctx context.Context, devices []DeviceEntry, at time.Time, plant *PlantNode) error {
	for _, dev := range devices {
		if channels, ok := p.model.channels[dev.Key]; ok {
			result, err := p.client.GetProcessData(ctx, dev.Key, channels)
			if err != nil {
				return err
			}
			for _, data := range result.Devices {
				node, err := ParseDeviceData(data, at, p.logger)
				if err != nil {
					p.logger.Warn("webbox skipping unkeyed device in poll",
						zap.Error(err))
					continue
				}
				plant.Devices = append(plant.Devices, node)
			}
		}
		if err := p.fetchProcessData(ctx, dev.Children, at, plant); err != nil {
			return err
		}
	}
	return nil
}

// Run polls on the configured interval until ctx is cancelled or Stop is
// called. Cycles are strictly serialized; a cycle that overruns the
// interval delays the next tick rather than overlapping it.
func (p *Poller) Run(ctx context.Context) error {
	if _, err := p.PollOnce(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopped:
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// Stop ends the poll loop, marks the poller terminal and closes the
// underlying client, which interrupts an in-flight receive. The published
// snapshot stays readable after Stop.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.state.Store(int32(PollerStopped))
		close(p.stopped)
		if err := p.client.Close(); err != nil {
			p.logger.Warn("webbox client close failed", zap.Error(err))
		}
	})
}
