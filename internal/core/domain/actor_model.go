package domain

import "github.com/berfenger/webbox2mqtt/pkg/webbox"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_WEBBOX       = "webbox"
	ACTOR_ID_MONITOR      = "monitor"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetPlantInfoRequest struct {
	ActorRequestMixIn
}

type GetPlantInfoResponse struct {
	ActorResponseMixIn
	Devices []webbox.DeviceEntry
}

type PollSnapshotRequest struct {
	ActorRequestMixIn
}

type PollSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot *webbox.Snapshot
}

type GetSnapshotRequest struct {
	ActorRequestMixIn
}

type GetSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot    *webbox.Snapshot
	PollerState string
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
