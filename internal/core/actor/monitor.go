package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/webbox2mqtt/internal/config"
	"github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/internal/core/events"
	. "github.com/berfenger/webbox2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// pollRequestTimeout must outlive the adapter's own scan budget so slow
// cycles surface as a response, not a dropped future.
const pollRequestTimeout = 150 * time.Second

// MonitorActor drives the scan cadence: on every tick it asks the webbox
// actor for a fresh snapshot and publishes the resulting sensor updates to
// the event stream.
type MonitorActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	webboxActor  *actor.PID
	config       *config.Config
	eventStream  *eventstream.EventStream
	bridgeOnline bool

	logger *zap.Logger
}

type monitorTick struct {
}

func NewMonitorActor(config *config.Config, webboxActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *MonitorActor {
	act := &MonitorActor{
		config:      config,
		webboxActor: webboxActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_MONITOR, logger),
		eventStream: eventStream,
		// the MQTT adapter already announced online on connect
		bridgeOnline: true,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MonitorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MonitorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("monitor@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		// first scan right away, next ones on the configured interval
		state.scheduler.RequestOnce(1*time.Second, ctx.Self(), monitorTick{})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("monitor@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MonitorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("monitor@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MONITOR,
			Healthy: true,
			State:   "idle",
		})
	case monitorTick:
		state.logger.Debug("monitor@default tick")
		// request a fresh snapshot
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.webboxActor, domain.PollSnapshotRequest{}, pollRequestTimeout), func(err error) any {
			return domain.PollSnapshotResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})

		// schedule next tick
		state.scheduler.RequestOnce(state.config.Webbox.PollInterval(), ctx.Self(), monitorTick{})
		state.behavior.BecomeStacked(state.WaitingSnapshotReceive)
	default:
		state.logger.Debug("monitor@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MonitorActor) WaitingSnapshotReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PollSnapshotResponse:
		if msg.HasResponseError() {
			state.logger.Error("monitor@waiting PollSnapshotResponse error", zap.Error(msg.GetResponseError()))
			state.publishBridgeState(false)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Debug("monitor@waiting PollSnapshotResponse")
		state.publishBridgeState(true)
		if msg.Snapshot != nil {
			evs := events.SnapshotToUpdateEvents(msg.Snapshot)
			for _, ev := range evs {
				state.eventStream.Publish(ev)
			}
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("monitor@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// publishBridgeState emits only on transitions so the availability topic
// does not flap on every tick.
func (state *MonitorActor) publishBridgeState(online bool) {
	if state.bridgeOnline == online {
		return
	}
	state.bridgeOnline = online
	state.eventStream.Publish(events.BridgeStateToUpdateEvent(online))
}
