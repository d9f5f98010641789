package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "github.com/berfenger/webbox2mqtt/internal/adapter/actor"
	"github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/internal/util"
	"github.com/berfenger/webbox2mqtt/pkg/webbox"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.WebboxActor {
			client, err := webbox.CreateTestDeviceClient()
			if err != nil {
				panic(err)
			}
			poller := webbox.NewPoller(client, webbox.DefaultPollInterval, logger)
			return adactor.NewWebboxActor(poller, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	// plant info requests are forwarded to the webbox child
	res, err = context.RequestFuture(pid, domain.GetPlantInfoRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	infoResp, ok := res.(domain.GetPlantInfoResponse)
	assert.True(t, ok)
	assert.NotEmpty(t, infoResp.Devices, "device listing")

	// snapshot requests too; the monitor triggers the first poll shortly
	// after boot so a snapshot should already be published
	res, err = context.RequestFuture(pid, domain.GetSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	snapResp, ok := res.(domain.GetSnapshotResponse)
	assert.True(t, ok)
	assert.NotNil(t, snapResp.Snapshot, "published snapshot")

	context.Stop(pid)

	as.Shutdown()
}
