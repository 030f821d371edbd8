package gateway

import (
	"context"
)

// component and modal interaction payloads are forwarded opaquely to these
// registries. they live outside the engine and survive Clear across
// reconnects.

type ComponentRouter interface {
	DispatchComponent(componentType int, customID string, interaction *InteractionPayload)

	// a message update carrying components refreshes any tracked message
	TracksMessage(messageID Snowflake) bool
	UpdateFromMessage(messageID Snowflake, components []byte)
}

type ModalRouter interface {
	DispatchModal(ctx context.Context, userID Snowflake, customID string, interaction *InteractionPayload) error
}

func (self *State) SetComponentRouter(router ComponentRouter) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.components = router
}

func (self *State) SetModalRouter(router ModalRouter) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.modals = router
}
