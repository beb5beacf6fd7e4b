package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/proofwatch/proofwatch/core"
)

// codedError mimics the node's JSON-RPC error responses.
type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestMapDeployQueryError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unknown deploy hash", codedError{noSuchDeployCode, "no such deploy"}, core.ErrNotFound},
		{"invalid params", codedError{-32602, "invalid params"}, core.ErrUpstream},
		{"internal node error", codedError{-32603, "internal error"}, core.ErrUpstream},
		{"transport failure", fmt.Errorf("connection refused"), core.ErrUpstream},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapDeployQueryError(tc.err)
			assert.True(t, errors.Is(got, tc.want), "got %v, want %v", got, tc.want)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	assert.Equal(t, int64(0), parseTimestamp(""))
	assert.Equal(t, int64(0), parseTimestamp("not a time"))
	assert.Equal(t, int64(1700000000000), parseTimestamp("2023-11-14T22:13:20Z"))
}
