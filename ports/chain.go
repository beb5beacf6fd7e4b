package ports

import (
	"context"

	"github.com/proofwatch/proofwatch/core"
)

// ChainClient is the opaque RPC surface of the chain node.
type ChainClient interface {
	// PutDeploy submits a signed deploy and returns its hash as accepted by
	// the node. Failures map to core.ErrSubmission or core.ErrUpstream.
	PutDeploy(ctx context.Context, deploy *core.Deploy) (string, error)

	// GetDeploy fetches the current status of a submitted deploy. Returns
	// core.ErrNotFound for hashes the node does not recognize.
	GetDeploy(ctx context.Context, hash string) (*core.DeployStatus, error)
}
