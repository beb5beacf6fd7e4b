package ports

import (
	"context"

	"github.com/proofwatch/proofwatch/core"
)

// Transport is one best-effort channel between execution contexts. Send gives
// no delivery guarantee and must tolerate the peer being entirely absent;
// Subscribe delivers every envelope seen on the channel, including the
// sender's own broadcasts on loopback-style transports.
type Transport interface {
	Send(ctx context.Context, env core.Envelope) error
	Subscribe(handler func(env core.Envelope)) (cancel func())
	Close() error
}
