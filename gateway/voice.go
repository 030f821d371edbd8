package gateway

import (
	"context"
)

// VoiceHandle is the externally owned voice session for a guild (or a group
// call channel). the engine only routes the two voice events to it and
// rebinds it on shard reconnect; connection lifecycle is not managed here.
type VoiceHandle interface {
	OnVoiceStateUpdate(ctx context.Context, data *VoiceStatePayload) error
	OnVoiceServerUpdate(ctx context.Context, data *VoiceServerUpdatePayload) error

	// called when the owning shard produced a fresh connection
	RebindShard(shardID int)
}

func (self *State) RegisterVoiceHandle(id Snowflake, handle VoiceHandle) {
	self.store().addVoiceHandle(id, handle)
}

func (self *State) UnregisterVoiceHandle(id Snowflake) {
	self.store().removeVoiceHandle(id)
}

func (self *State) VoiceHandle(id Snowflake) VoiceHandle {
	return self.store().VoiceHandle(id)
}
