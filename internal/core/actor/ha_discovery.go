package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/webbox2mqtt/internal/config"
	"github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/internal/core/events"
	"github.com/berfenger/webbox2mqtt/internal/util/actorutil"
	"github.com/berfenger/webbox2mqtt/pkg/webbox"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// RepublishDiscovery asks for a fresh round of discovery configs, used
// when Home Assistant restarts.
type RepublishDiscovery struct {
}

// HADiscoveryActor derives the Home Assistant discovery configs from the
// first snapshot and pushes them through the MQTT actor. Discovery needs
// real data because the sensor set is exactly the reading set.
type HADiscoveryActor struct {
	config             *config.Config
	behavior           actor.Behavior
	stash              *actorutil.Stash
	webboxActor        *actor.PID
	mqttActor          *actor.PID
	webboxActorHealthy bool
	mqttActorHealthy   bool
	healthyRecv        int
	plantDevices       []webbox.DeviceEntry

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, webboxActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		webboxActor: webboxActor,
		mqttActor:   mqttActor,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check Webbox and MQTT actor healthy
		state.healthyRecv = 0
		state.webboxActorHealthy = false
		state.mqttActorHealthy = false
		// Webbox Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.webboxActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_WEBBOX,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_WEBBOX:
				state.webboxActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.webboxActorHealthy && state.mqttActorHealthy {
				// Ask Webbox for the plant layout
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.webboxActor, domain.GetPlantInfoRequest{}, 2*time.Second), func(err error) any {
					return domain.GetPlantInfoResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingInfoReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Webbox Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetPlantInfoResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@info: GetPlantInfoResponse", zap.Int("devices", len(msg.Devices)))
		state.plantDevices = msg.Devices

		// discovery needs one snapshot to know the full sensor set
		state.requestSnapshot(ctx)
		state.behavior.Become(state.WaitingSnapshotReceive)
	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingSnapshotReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PollSnapshotResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@snapshot: PollSnapshotResponse")
		state.publishDiscovery(ctx, msg.Snapshot)
		state.behavior.Become(state.DoneReceive)
	default:
		state.logger.Debug("hadiscovery@snapshot: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) DoneReceive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case RepublishDiscovery:
		state.logger.Debug("hadiscovery@done: RepublishDiscovery")
		state.requestSnapshot(ctx)
		state.behavior.Become(state.WaitingSnapshotReceive)
	}
}

func (state *HADiscoveryActor) requestSnapshot(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.webboxActor, domain.PollSnapshotRequest{}, pollRequestTimeout), func(err error) any {
		return domain.PollSnapshotResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *HADiscoveryActor) publishDiscovery(ctx actor.Context, snap *webbox.Snapshot) {
	var sensors []domain.GenericSensor

	bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors = append(sensors, events.BridgeSensors(bridgeDevice)...)

	snapshotSensors := events.SnapshotSensors(snap, state.plantDevices, bridgeDevice)
	seenDevices := map[string]bool{}
	for i := range snapshotSensors {
		// only the first sensor of each device carries the full device info
		devId := snapshotSensors[i].Device.Id
		if seenDevices[devId] {
			snapshotSensors[i].Device = events.IdDevice(snapshotSensors[i].Device)
		}
		seenDevices[devId] = true
		sensors = append(sensors, snapshotSensors[i])
	}

	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: sensors,
	})
}
