package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/internal/util/actorutil"
	"github.com/berfenger/webbox2mqtt/pkg/webbox"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// pollTaskTimeout bounds one full scan cycle. The device paces RPCs to one
// per second, so a plant with many devices needs a generous budget.
const pollTaskTimeout = 120 * time.Second

// buildModelTimeout bounds the startup layout discovery.
const buildModelTimeout = 60 * time.Second

type WebboxActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	poller   *webbox.Poller
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewWebboxActor(poller *webbox.Poller, logger *zap.Logger) *WebboxActor {
	act := &WebboxActor{
		poller:   poller,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_WEBBOX, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *WebboxActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *WebboxActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("webbox@starting started")
		tctx, cancel := context.WithTimeout(context.Background(), buildModelTimeout)
		defer cancel()
		if err := state.poller.BuildModel(tctx); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.poller.Stop()
	default:
		state.logger.Debug("webbox@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *WebboxActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("webbox@default: ActorHealthRequest")
		pollerState := state.poller.State()
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_WEBBOX,
			Healthy: pollerState != webbox.PollerFailed && pollerState != webbox.PollerStopped,
			State:   pollerState.String(),
		})
	case domain.GetPlantInfoRequest:
		state.logger.Debug("webbox@default: GetPlantInfoRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetPlantInfoResponse{
			Devices: state.poller.Devices(),
		})
	case domain.GetSnapshotRequest:
		state.logger.Debug("webbox@default: GetSnapshotRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetSnapshotResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: state.poller.LastError(),
			},
			Snapshot:    state.poller.Snapshot(),
			PollerState: state.poller.State().String(),
		})
	case domain.PollSnapshotRequest:
		state.logger.Debug("webbox@default: PollSnapshotRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.pollOnce),
			mapTaskResult[domain.PollSnapshotResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.PollSnapshotResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(pollTaskTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingWebbox)
	case *actor.Stopping:
		state.poller.Stop()
	default:
		state.logger.Debug("webbox@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// WaitingWebbox holds new requests while one scan cycle is in flight so
// cycles never overlap.
func (state *WebboxActor) WaitingWebbox(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("webbox@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.poller.Stop()
	default:
		state.logger.Debug("webbox@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *WebboxActor) pollOnce() (*domain.PollSnapshotResponse, error) {
	tctx, cancel := context.WithTimeout(context.Background(), pollTaskTimeout)
	defer cancel()
	snap, err := state.poller.PollOnce(tctx)
	if err != nil {
		return nil, err
	}
	return &domain.PollSnapshotResponse{
		Snapshot: snap,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
