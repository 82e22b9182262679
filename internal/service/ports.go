package service

import (
	"context"

	"ai-bookingchat-be/pkg/engine/flow"
)

// FlowController is the external goal/flow processing collaborator. It
// is only consulted when the session is not operator-controlled.
// flow.Registry is the in-repo implementation surface.
type FlowController interface {
	Process(ctx context.Context, turn flow.Turn) (flow.Result, error)
}

// ChannelSender delivers payloads to a channel address, for bot replies
// and proxy-relayed operator messages alike.
type ChannelSender interface {
	Send(ctx context.Context, destination, payload, origin string) (string, error)
}
