package core

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrKeyFormat          = errors.New("invalid public key format")
	ErrSubmission         = errors.New("deploy submission failed")
	ErrUpstream           = errors.New("chain node unreachable")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBridgeTimeout      = errors.New("no peer responded within the wait bound")
	ErrWalletTimeout      = errors.New("wallet did not respond within the wait bound")
	ErrInvalidSession     = errors.New("invalid session payload")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrTokenExpired       = errors.New("session token has expired")
	ErrInvalidSignature   = errors.New("invalid signature")
)
