package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

// RPCClient talks JSON-RPC to a chain node. The node is treated as opaque:
// deploys go in, status records come out.
type RPCClient struct {
	client *rpc.Client
}

// Dial connects to the node RPC endpoint.
func Dial(ctx context.Context, url string) (*RPCClient, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return &RPCClient{client: client}, nil
}

var _ ports.ChainClient = (*RPCClient)(nil)

type putDeployResult struct {
	DeployHash string `json:"deploy_hash"`
}

type deployInfoResult struct {
	Deploy struct {
		Hash   string `json:"hash"`
		Header struct {
			Timestamp string `json:"timestamp"`
		} `json:"header"`
	} `json:"deploy"`
	ExecutionResults []struct {
		BlockHash string `json:"block_hash"`
		Result    struct {
			Success *struct {
				Cost string `json:"cost"`
			} `json:"Success,omitempty"`
			Failure *struct {
				ErrorMessage string `json:"error_message"`
			} `json:"Failure,omitempty"`
		} `json:"result"`
	} `json:"execution_results"`
}

// PutDeploy submits a signed deploy.
func (c *RPCClient) PutDeploy(ctx context.Context, deploy *core.Deploy) (string, error) {
	var result putDeployResult
	if err := c.client.CallContext(ctx, &result, "account_put_deploy", deploy); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			// The node accepted the connection but rejected the deploy; pass
			// its message through verbatim.
			return "", fmt.Errorf("%w: %v", core.ErrSubmission, err)
		}
		return "", fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	if result.DeployHash == "" {
		return "", fmt.Errorf("%w: node returned no deploy hash", core.ErrSubmission)
	}
	return result.DeployHash, nil
}

// GetDeploy queries the current status of a deploy. Always hits the node;
// status changes over time and must never be served stale.
func (c *RPCClient) GetDeploy(ctx context.Context, hash string) (*core.DeployStatus, error) {
	var result deployInfoResult
	if err := c.client.CallContext(ctx, &result, "info_get_deploy", map[string]string{"deploy_hash": hash}); err != nil {
		return nil, mapDeployQueryError(err)
	}
	if result.Deploy.Hash == "" {
		return nil, core.ErrNotFound
	}

	status := &core.DeployStatus{
		Hash:      result.Deploy.Hash,
		Timestamp: parseTimestamp(result.Deploy.Header.Timestamp),
	}
	if len(result.ExecutionResults) > 0 {
		first := result.ExecutionResults[0]
		status.Executed = true
		status.BlockHash = first.BlockHash
		if first.Result.Success != nil {
			status.Success = true
		} else if first.Result.Failure != nil {
			status.ErrorMessage = first.Result.Failure.ErrorMessage
		}
	}
	return status, nil
}

// The node reports an unknown deploy hash with its own error code. Anything
// else coming back as an rpc.Error (invalid params, internal node failure) is
// upstream trouble, not a missing deploy.
const noSuchDeployCode = -32000

func mapDeployQueryError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == noSuchDeployCode {
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", core.ErrUpstream, err)
}

func parseTimestamp(s string) int64 {
	if s == "" {
		return 0
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return ts.UnixMilli()
}

// Close releases the underlying RPC connection.
func (c *RPCClient) Close() {
	c.client.Close()
}
