package ports

import "github.com/proofwatch/proofwatch/core"

// Tokenizer converts sessions to and from their signed wire form, used when a
// session payload crosses a transport the receiving context cannot trust.
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
